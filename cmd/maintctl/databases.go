package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var databasesProfileID string

func init() {
	databasesCmd.Flags().StringVar(&databasesProfileID, "profile", "", "profile id to query (required)")
	databasesCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(databasesCmd)

	testConnectionCmd.Flags().StringVar(&databasesProfileID, "profile", "", "profile id to test (required)")
	testConnectionCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(testConnectionCmd)
}

var databasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List user databases reachable through a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.GetDatabases(cmdContext(cmd), databasesProfileID)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Verify a profile's credentials and reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.TestConnection(cmdContext(cmd), databasesProfileID); err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
		fmt.Println("connection ok")
		return nil
	},
}
