package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/planward/planward/internal/bridge"
	"github.com/planward/planward/internal/config"
	"github.com/planward/planward/internal/sweep"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "views",
	Short:   "Live view that follows changes from other devices",
	Long: `Render the current layout and keep it fresh.

watch arms the realtime subscriptions so changes made anywhere (another
device, another terminal) refresh the view, and runs the overdue
sweeper so tasks whose due date passes while watching move to overdue.
Editing ~/.planward/prefs.toml takes effect without restarting.

Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()
		ctx := cmd.Context()
		app.start(ctx)
		ident, err := app.requireIdentity(ctx)
		if err != nil {
			return err
		}

		// Subscriptions arm only now, after the bootstrap in
		// requireIdentity has completed.
		conn, err := app.client.DialRealtime(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		br := bridge.New(conn, app.store, app.sink.Logger("bridge"))
		if err := br.Arm(ctx, ident.ID); err != nil {
			return err
		}
		defer br.Close(ctx)

		unfollow := app.followSession(ctx, br)
		defer unfollow()

		sweeper := sweep.New(app.store, app.sink.Logger("sweep"))
		if err := sweeper.Start("* * * * *"); err != nil {
			return err
		}
		defer sweeper.Stop()

		if path, err := config.PrefsPath(); err == nil {
			if prefsWatcher := watchPrefs(app, path); prefsWatcher != nil {
				defer prefsWatcher.Close()
			}
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()

		redraw := func() {
			out, err := renderLayout(app, app.currentPrefs().View)
			if err != nil {
				out = err.Error() + "\n"
			}
			// Clear and repaint.
			fmt.Print("\033[2J\033[H" + out)
		}
		redraw()

		for {
			select {
			case <-sig:
				fmt.Println("\nStopped")
				return nil
			case <-ticker.C:
				redraw()
			}
		}
	},
}

// watchPrefs reloads preferences when the prefs file at path changes. Best
// effort: a failed watcher just means no hot reload.
func watchPrefs(app *app, path string) *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil
	}
	if err := watcher.Add(path); err != nil {
		// The file may not exist yet; watch the directory instead.
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			watcher.Close()
			return nil
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if event.Name != path {
					continue
				}
				prefs, err := config.LoadPrefs(path)
				if err != nil {
					continue
				}
				app.setPrefs(prefs)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return watcher
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
