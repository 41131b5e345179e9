package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dev.helix.sqlmaint/internal/maintenance"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved connection profiles",
}

var (
	profileID                     string
	profileName                   string
	profileServer                 string
	profilePort                   uint16
	profileUsername               string
	profilePassword               string
	profileEncrypt                bool
	profileTrustServerCertificate bool
)

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new connection profile (or overwrite an existing id)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := profileID
		if id == "" {
			id = uuid.NewString()
		}
		p := maintenance.ServerProfile{
			ID:                     id,
			Name:                   profileName,
			Server:                 profileServer,
			Port:                   profilePort,
			AuthType:               maintenance.AuthSQLServer,
			Username:               profileUsername,
			Password:               profilePassword,
			Encrypt:                profileEncrypt,
			TrustServerCertificate: profileTrustServerCertificate,
		}
		if err := a.SaveProfile(p); err != nil {
			return err
		}
		fmt.Printf("saved profile %s\n", p.ID)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		profiles, err := a.Profiles.List()
		if err != nil {
			return err
		}
		for _, p := range profiles {
			fmt.Printf("%s  %-20s  %s:%d  user=%s\n", p.ID, p.Name, p.Server, p.Port, p.Username)
		}
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <profile-id>",
	Short: "Delete a saved profile and its stored password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteProfile(args[0]); err != nil {
			return err
		}
		fmt.Printf("removed profile %s\n", args[0])
		return nil
	},
}

func init() {
	profileAddCmd.Flags().StringVar(&profileID, "id", "", "profile id (default: a generated uuid)")
	profileAddCmd.Flags().StringVar(&profileName, "name", "", "display name (required)")
	profileAddCmd.Flags().StringVar(&profileServer, "server", "", "hostname or address (required)")
	profileAddCmd.Flags().Uint16Var(&profilePort, "port", 1433, "TCP port")
	profileAddCmd.Flags().StringVar(&profileUsername, "username", "", "SQL Server login (required)")
	profileAddCmd.Flags().StringVar(&profilePassword, "password", "", "SQL Server login password (required)")
	profileAddCmd.Flags().BoolVar(&profileEncrypt, "encrypt", true, "require an encrypted connection")
	profileAddCmd.Flags().BoolVar(&profileTrustServerCertificate, "trust-server-certificate", false, "skip TLS certificate verification")
	profileAddCmd.MarkFlagRequired("name")
	profileAddCmd.MarkFlagRequired("server")
	profileAddCmd.MarkFlagRequired("username")
	profileAddCmd.MarkFlagRequired("password")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	rootCmd.AddCommand(profileCmd)
}
