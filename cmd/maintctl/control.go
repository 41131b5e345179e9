package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pauseCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(skipCmd())
	rootCmd.AddCommand(stopCmd())
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <profile-id>",
		Short: "Pause an in-progress run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Coordinator.Pause(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s: paused\n", args[0])
			return nil
		},
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <profile-id>",
		Short: "Resume a paused run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Coordinator.Resume(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s: resumed\n", args[0])
			return nil
		},
	}
}

func skipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <profile-id>",
		Short: "Skip the database currently being processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Coordinator.SkipDatabase(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s: skipping current database\n", args[0])
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <profile-id>",
		Short: "Stop an in-progress run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Coordinator.Stop(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s: stopping\n", args[0])
			return nil
		},
	}
}
