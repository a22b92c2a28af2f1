package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/planward/planward/internal/stats"
	"github.com/planward/planward/internal/ui"
)

var viewLayout string

var viewCmd = &cobra.Command{
	Use:     "view",
	GroupID: "views",
	Short:   "Show tasks in a layout (list, kanban, week, month)",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		layout := viewLayout
		if layout == "" {
			layout = app.currentPrefs().View
		}
		out, err := renderLayout(app, layout)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var reportsCmd = &cobra.Command{
	Use:     "reports",
	GroupID: "views",
	Short:   "Show productivity statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		tasks := app.store.Tasks()
		categories := app.store.Categories()
		overview := stats.Overviews(tasks)
		top := stats.TopCategories(tasks, categories, 5)
		weekly := stats.WeeklyActivity(tasks, time.Now(), app.currentPrefs().WeekStartsMonday)
		r := newRenderer(app)
		fmt.Print(r.Reports(overview, top, weekly))

		if due := stats.DuePreview(tasks, time.Now()); len(due) > 0 {
			fmt.Println("\nDue tomorrow:")
			for _, t := range due {
				fmt.Printf("  %s (%s)\n", t.Title, t.DueAt.Format("15:04"))
			}
		}
		return nil
	},
}

func newRenderer(app *app) *ui.Renderer {
	return ui.NewRenderer(app.currentPrefs().Color)
}

func renderLayout(app *app, layout string) (string, error) {
	tasks := app.store.Tasks()
	categories := app.store.Categories()
	r := newRenderer(app)
	switch layout {
	case "list":
		return r.List(tasks, categories), nil
	case "kanban":
		return r.Kanban(tasks, categories), nil
	case "week":
		return r.Week(tasks, time.Now(), app.currentPrefs().WeekStartsMonday), nil
	case "month":
		return r.Month(tasks, time.Now()), nil
	default:
		return "", fmt.Errorf("unknown layout %q (want list, kanban, week, or month)", layout)
	}
}

func init() {
	viewCmd.Flags().StringVar(&viewLayout, "layout", "", "list|kanban|week|month (default from prefs)")
	rootCmd.AddCommand(viewCmd, reportsCmd)
}
