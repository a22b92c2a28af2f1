package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Prefs are terminal client preferences, kept separate from Config because
// they are user-editable and hot-reloaded in watch mode.
type Prefs struct {
	// View is the default layout: list, kanban, week, or month.
	View string `toml:"view"`

	// Color enables styled output. Disabled automatically when the
	// terminal does not support it.
	Color bool `toml:"color"`

	// WeekStartsMonday shifts the week layout's first column.
	WeekStartsMonday bool `toml:"week_starts_monday"`
}

// DefaultPrefs returns the preferences used when no prefs file exists.
func DefaultPrefs() *Prefs {
	return &Prefs{
		View:             "list",
		Color:            true,
		WeekStartsMonday: true,
	}
}

// PrefsPath returns ~/.planward/prefs.toml.
func PrefsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prefs.toml"), nil
}

// LoadPrefs reads the prefs file at path. A missing file yields defaults.
func LoadPrefs(path string) (*Prefs, error) {
	prefs := DefaultPrefs()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return prefs, nil
	}
	if _, err := toml.DecodeFile(path, prefs); err != nil {
		return nil, fmt.Errorf("failed to parse prefs %s: %w", path, err)
	}
	switch prefs.View {
	case "list", "kanban", "week", "month":
	default:
		return nil, fmt.Errorf("prefs %s: unknown view %q", path, prefs.View)
	}
	return prefs, nil
}
