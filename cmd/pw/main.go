// Command pw is the Planward terminal client.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pw",
	Short: "Planward personal task planner",
	Long: `Planward is a personal task planner backed by a hosted service.

Tasks are grouped into categories and tracked through the statuses
upcoming, overdue, completed, and canceled. All data lives on the
backend; pw keeps an in-memory view synchronized with it, including
live updates pushed from other devices in watch mode.

Configuration: set PLANWARD_BACKEND_URL and PLANWARD_ANON_KEY, or
create ~/.planward/config.yaml. A .env file in the working directory
is read automatically.`,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "auth", Title: "Authentication:"},
		&cobra.Group{ID: "data", Title: "Tasks and categories:"},
		&cobra.Group{ID: "views", Title: "Views and reports:"},
	)
}

func main() {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
