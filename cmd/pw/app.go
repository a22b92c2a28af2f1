package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/planward/planward/internal/backend"
	"github.com/planward/planward/internal/bridge"
	"github.com/planward/planward/internal/config"
	"github.com/planward/planward/internal/logging"
	"github.com/planward/planward/internal/model"
	"github.com/planward/planward/internal/session"
	"github.com/planward/planward/internal/store"
)

// app wires the stores together for one command invocation. Commands that
// need the backend call newApp, then start, then requireIdentity when the
// operation needs a signed-in user.
type app struct {
	cfg     *config.Config
	sink    *logging.Sink
	client  *backend.Client
	session *session.Store
	store   *store.Store

	// prefs is hot-reloaded in watch mode; access only via currentPrefs
	// and setPrefs.
	prefsMu sync.RWMutex
	prefs   *config.Prefs
}

func (a *app) currentPrefs() *config.Prefs {
	a.prefsMu.RLock()
	defer a.prefsMu.RUnlock()
	return a.prefs
}

func (a *app) setPrefs(p *config.Prefs) {
	a.prefsMu.Lock()
	a.prefs = p
	a.prefsMu.Unlock()
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	sink := logging.NewSink(cfg.Log)

	client, err := backend.New(cfg, sink.Logger("backend"))
	if err != nil {
		sink.Close()
		return nil, err
	}
	if dir, dirErr := config.Dir(); dirErr == nil {
		client.EnableSessionPersistence(filepath.Join(dir, "session.json"))
	}

	prefsPath, _ := config.PrefsPath()
	prefs, err := config.LoadPrefs(prefsPath)
	if err != nil {
		sink.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		prefs:  prefs,
		sink:   sink,
		client: client,
	}
	a.session = session.NewStore(client, client, cfg.Timeouts, sink.Logger("session"))
	a.store = store.New(client, cfg.Timeouts, sink.Logger("store"))
	return a, nil
}

// start resolves any persisted session. Returns once resolving has
// cleared, bounded by the session-resolve timeout.
func (a *app) start(ctx context.Context) {
	a.session.Start(ctx)
}

// requireIdentity returns the signed-in identity and bootstraps the store
// for it.
func (a *app) requireIdentity(ctx context.Context) (model.Identity, error) {
	ident, ok := a.session.Identity()
	if !ok {
		return model.Identity{}, fmt.Errorf("not signed in (run: pw login)")
	}
	a.store.Bind(ctx, ident.ID)
	return ident, nil
}

// followSession keeps the sync store, and the bridge when one is running,
// scoped to the session's identity. A sign-out from anywhere (another
// device, an expired refresh token) tears the subscriptions down and clears
// the collections; a new identity re-binds. br may be nil outside watch
// mode. Returns the unsubscribe function.
func (a *app) followSession(ctx context.Context, br *bridge.Bridge) func() {
	logger := a.sink.Logger("app")
	return a.session.OnChange(func() {
		ident, ok := a.session.Identity()
		boundID, bound := a.store.Bound()
		switch {
		case !ok && bound:
			if br != nil {
				if err := br.Disarm(ctx); err != nil {
					logger.Printf("WARNING: failed to tear down subscriptions: %v", err)
				}
			}
			a.store.Unbind()
		case ok && ident.ID != boundID:
			a.store.Bind(ctx, ident.ID)
			if br != nil {
				if err := br.Arm(ctx, ident.ID); err != nil {
					logger.Printf("WARNING: failed to arm subscriptions for %s: %v", ident.ID, err)
				}
			}
		}
	})
}

func (a *app) close() {
	a.store.Close()
	a.session.Close()
	_ = a.sink.Close()
}
