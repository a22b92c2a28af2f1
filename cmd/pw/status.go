package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "auth",
	Short:   "Check backend connectivity and the cached session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		ctx := cmd.Context()

		health, err := app.client.Health(ctx)
		if err != nil {
			return fmt.Errorf("backend unreachable at %s: %w", app.cfg.BackendURL, err)
		}
		fmt.Printf("Backend: %s", app.cfg.BackendURL)
		if health.Version != "" {
			fmt.Printf(" (%s %s)", health.Name, health.Version)
		}
		fmt.Println()

		app.start(ctx)
		if ident, ok := app.session.Identity(); ok {
			fmt.Printf("Session: signed in as %s\n", ident.Email)
		} else {
			fmt.Println("Session: not signed in")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
