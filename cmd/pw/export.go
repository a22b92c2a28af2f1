package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/planward/planward/internal/model"
)

var exportFormat string

// exportDoc is the export file layout: both collections in one document.
type exportDoc struct {
	Categories []model.Category `json:"categories" yaml:"categories"`
	Tasks      []model.Task     `json:"tasks" yaml:"tasks"`
}

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "views",
	Short:   "Export tasks and categories to stdout (json or yaml)",
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

		doc := exportDoc{
			Categories: app.store.Categories(),
			Tasks:      app.store.Tasks(),
		}
		switch exportFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			return enc.Encode(doc)
		default:
			return fmt.Errorf("unknown format %q (want json or yaml)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json|yaml")
	rootCmd.AddCommand(exportCmd)
}
