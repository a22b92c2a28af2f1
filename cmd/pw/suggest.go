package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planward/planward/internal/assist"
)

var suggestModel string

var suggestCmd = &cobra.Command{
	Use:     "suggest",
	GroupID: "views",
	Short:   "Ask for a prioritized plan over your open tasks",
	Long: `Send a compact summary of your open tasks to the Anthropic API and
print a short prioritized plan. Requires ANTHROPIC_API_KEY.

Only task titles, statuses, category names, and due dates are sent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		advisor, err := assist.New(suggestModel)
		if err != nil {
			return err
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		ctx := cmd.Context()
		app.start(ctx)
		if _, err := app.requireIdentity(ctx); err != nil {
			return err
		}

		out, err := advisor.Suggest(ctx, app.store.Tasks(), app.store.Categories())
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	suggestCmd.Flags().StringVar(&suggestModel, "model", "", "Anthropic model to use")
	rootCmd.AddCommand(suggestCmd)
}
