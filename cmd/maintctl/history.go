package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyProfileID string
	historyLimit     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect persisted run history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past runs, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var profileID *string
		if historyProfileID != "" {
			profileID = &historyProfileID
		}
		records, err := a.History.GetRuns(cmdContext(cmd), profileID, historyLimit)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("#%d  %-20s  %s -> %s  processed=%d failed=%d skipped=%d rebuilt=%d reorganized=%d\n",
				r.ID, r.ProfileName, r.StartedAt, r.FinishedAt,
				r.DatabasesProcessed, r.DatabasesFailed, r.DatabasesSkipped,
				r.TotalIndexesRebuilt, r.TotalIndexesReorganized)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete persisted run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var profileID *string
		if historyProfileID != "" {
			profileID = &historyProfileID
		}
		if err := a.History.DeleteRuns(cmdContext(cmd), profileID); err != nil {
			return err
		}
		fmt.Println("history cleared")
		return nil
	},
}

func init() {
	historyListCmd.Flags().StringVar(&historyProfileID, "profile", "", "restrict to one profile id (default: all)")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of runs to show")
	historyClearCmd.Flags().StringVar(&historyProfileID, "profile", "", "restrict to one profile id (default: all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
