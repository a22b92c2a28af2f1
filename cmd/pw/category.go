package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planward/planward/internal/model"
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	GroupID: "data",
	Short:   "Manage categories",
}

var categoryColor string

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a category",
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
		if err := app.store.AddCategory(ctx, args[0], categoryColor); err != nil {
			return err
		}
		fmt.Printf("Added category %q\n", args[0])
		return nil
	},
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
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
		for _, c := range app.store.Categories() {
			marker := " "
			if c.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %-20s %-8s %s\n", marker, c.Name, c.Color, c.ID)
		}
		return nil
	},
}

var categoryRenameCmd = &cobra.Command{
	Use:   "rename <name-or-id> <new-name>",
	Short: "Rename a category",
	Args:  cobra.ExactArgs(2),
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
		id, err := resolveCategory(app, args[0])
		if err != nil {
			return err
		}
		patch := model.CategoryPatch{Name: model.Ptr(args[1])}
		if categoryColor != "" {
			patch.Color = model.Ptr(categoryColor)
		}
		if err := app.store.UpdateCategory(ctx, id, patch); err != nil {
			return err
		}
		fmt.Println("Category updated")
		return nil
	},
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete <name-or-id>",
	Short: "Delete a category, moving its tasks to the default category",
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
		id, err := resolveCategory(app, args[0])
		if err != nil {
			return err
		}
		if err := app.store.DeleteCategory(ctx, id); err != nil {
			return err
		}
		fmt.Println("Category deleted; its tasks moved to the default category")
		return nil
	},
}

func init() {
	categoryAddCmd.Flags().StringVar(&categoryColor, "color", "", "display color, e.g. #3b82f6")
	categoryRenameCmd.Flags().StringVar(&categoryColor, "color", "", "display color, e.g. #3b82f6")

	categoryCmd.AddCommand(categoryAddCmd, categoryListCmd, categoryRenameCmd, categoryDeleteCmd)
	rootCmd.AddCommand(categoryCmd)
}
