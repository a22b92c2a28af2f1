package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/planward/planward/internal/model"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "data",
	Short:   "Create and manage tasks",
}

var (
	taskTitle    string
	taskDesc     string
	taskCategory string
	taskDue      string
	taskStatus   string
)

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a task",
	Long: `Create a task. With no arguments an interactive form is shown.

Due dates accept natural language, e.g.:
  pw task add "Buy milk" --due "tomorrow 5pm"
  pw task add "File taxes" --due "next friday" --category Finance`,
	Args: cobra.MaximumNArgs(1),
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

		if len(args) > 0 {
			taskTitle = args[0]
		}
		if taskTitle == "" {
			if err := taskForm(app); err != nil {
				return err
			}
		}

		catID, err := resolveCategory(app, taskCategory)
		if err != nil {
			return err
		}
		nt := model.NewTask{
			Title:       taskTitle,
			Description: taskDesc,
			Status:      model.StatusUpcoming,
			CategoryID:  catID,
		}
		if taskDue != "" {
			due, err := parseDue(taskDue)
			if err != nil {
				return err
			}
			nt.DueAt = &due
		}
		if err := app.store.AddTask(ctx, nt); err != nil {
			return err
		}
		fmt.Printf("Added %q\n", nt.Title)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks grouped by category",
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
		fmt.Print(newRenderer(app).List(app.store.Tasks(), app.store.Categories()))
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task's fields",
	Args:  cobra.ExactArgs(1),
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

		var patch model.TaskPatch
		if taskTitle != "" {
			patch.Title = model.Ptr(taskTitle)
		}
		if taskDesc != "" {
			patch.Description = model.Ptr(taskDesc)
		}
		if taskStatus != "" {
			status := model.TaskStatus(taskStatus)
			patch.Status = &status
		}
		if taskCategory != "" {
			catID, err := resolveCategory(app, taskCategory)
			if err != nil {
				return err
			}
			patch.CategoryID = model.Ptr(catID)
		}
		if taskDue != "" {
			due, err := parseDue(taskDue)
			if err != nil {
				return err
			}
			patch.DueAt = &due
		}
		if err := app.store.UpdateTask(ctx, args[0], patch); err != nil {
			return err
		}
		fmt.Println("Task updated")
		return nil
	},
}

func statusCommand(use, short string, status model.TaskStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
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
			patch := model.TaskPatch{Status: model.Ptr(status)}
			if err := app.store.UpdateTask(ctx, args[0], patch); err != nil {
				return err
			}
			fmt.Printf("Task marked %s\n", status)
			return nil
		},
	}
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
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
		if err := app.store.DeleteTask(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Task deleted")
		return nil
	},
}

// taskForm collects the task interactively.
func taskForm(app *app) error {
	options := make([]huh.Option[string], 0)
	for _, c := range app.store.Categories() {
		options = append(options, huh.NewOption(c.Name, c.Name))
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Title").Value(&taskTitle),
		huh.NewText().Title("Description").Value(&taskDesc),
		huh.NewSelect[string]().Title("Category").Options(options...).Value(&taskCategory),
		huh.NewInput().Title("Due (optional, e.g. \"tomorrow 5pm\")").Value(&taskDue),
	))
	return form.Run()
}

// resolveCategory maps a name (or id) to a category id. Empty means the
// default category.
func resolveCategory(app *app, nameOrID string) (string, error) {
	cats := app.store.Categories()
	if nameOrID == "" {
		for _, c := range cats {
			if c.IsDefault {
				return c.ID, nil
			}
		}
		return "", fmt.Errorf("no default category found")
	}
	for _, c := range cats {
		if c.Name == nameOrID || c.ID == nameOrID {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("category %q not found", nameOrID)
}

// parseDue understands natural language ("tomorrow 5pm") and RFC 3339.
func parseDue(s string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	if r, err := w.Parse(s, time.Now()); err == nil && r != nil {
		return r.Time, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("could not understand due date %q", s)
}

func init() {
	for _, c := range []*cobra.Command{taskAddCmd, taskUpdateCmd} {
		c.Flags().StringVar(&taskTitle, "title", "", "task title")
		c.Flags().StringVar(&taskDesc, "desc", "", "description")
		c.Flags().StringVar(&taskCategory, "category", "", "category name or id")
		c.Flags().StringVar(&taskDue, "due", "", "due date (natural language ok)")
	}
	taskUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "upcoming|overdue|completed|canceled")

	taskCmd.AddCommand(
		taskAddCmd,
		taskListCmd,
		taskUpdateCmd,
		statusCommand("done", "Mark a task completed", model.StatusCompleted),
		statusCommand("cancel", "Mark a task canceled", model.StatusCanceled),
		taskDeleteCmd,
	)
	rootCmd.AddCommand(taskCmd)
}
