// Package session tracks the authenticated identity and its profile.
//
// The store resolves any persisted backend session on startup, bounded by a
// hard timeout so consumers are never left hanging on an unreachable
// backend. Profile resolution runs behind a separate, shorter bound and
// never blocks the resolving flag from clearing. An identity with no
// profile row gets a provisional local profile immediately while the real
// row is created in the background.
package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/planward/planward/internal/await"
	"github.com/planward/planward/internal/backend"
	"github.com/planward/planward/internal/config"
	"github.com/planward/planward/internal/model"
)

// AuthAPI is the slice of the backend auth surface the store needs.
type AuthAPI interface {
	CurrentSession(ctx context.Context) (*model.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context) error
	OnAuthChange(fn func(backend.AuthEvent)) func()
}

// ProfileAPI is the slice of the backend row surface the store needs.
type ProfileAPI interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	InsertProfile(ctx context.Context, p model.Profile) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) error
}

// Store is the session store. It is constructed once at application start
// and shared by every consumer.
type Store struct {
	auth     AuthAPI
	profiles ProfileAPI
	timeouts config.Timeouts
	logger   *log.Logger

	mu        sync.RWMutex
	identity  *model.Identity
	profile   *model.Profile
	resolving bool
	gen       uint64 // bumped on every identity change; guards stale callbacks
	listeners map[int]func()
	nextID    int

	unsubscribe func()
	wg          sync.WaitGroup
}

// NewStore creates a session store. If logger is nil a default stderr
// logger is used.
func NewStore(auth AuthAPI, profiles ProfileAPI, timeouts config.Timeouts, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	return &Store{
		auth:      auth,
		profiles:  profiles,
		timeouts:  timeouts,
		logger:    logger,
		resolving: true,
		listeners: make(map[int]func()),
	}
}

// Start resolves any existing backend session and arms the auth-change
// subscription. Resolving flips to false within the session-resolve bound
// no matter what the backend does.
func (s *Store) Start(ctx context.Context) {
	s.unsubscribe = s.auth.OnAuthChange(s.handleAuthEvent)

	res := await.First(s.timeouts.SessionResolve, func() (*model.Session, error) {
		return s.auth.CurrentSession(ctx)
	})
	switch {
	case res.TimedOut:
		s.logger.Printf("WARNING: session resolution timed out after %s, continuing unauthenticated", s.timeouts.SessionResolve)
	case res.Err != nil:
		s.logger.Printf("WARNING: session resolution failed: %v", res.Err)
	case res.Value != nil:
		s.installIdentity(&res.Value.User)
	}

	s.mu.Lock()
	s.resolving = false
	s.mu.Unlock()
	s.notify()
}

// Close removes the auth subscription and waits for background work.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.wg.Wait()
}

// Identity returns the current identity, if any.
func (s *Store) Identity() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return model.Identity{}, false
	}
	return *s.identity, true
}

// Profile returns the current profile, if any. The value may be a
// provisional profile that has not been persisted yet.
func (s *Store) Profile() (model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return model.Profile{}, false
	}
	return *s.profile, true
}

// Resolving reports whether the initial session resolution is still
// running. Consumers should not render authenticated state while true.
func (s *Store) Resolving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolving
}

// OnChange registers a listener invoked after any identity or profile
// change. The returned function removes it.
func (s *Store) OnChange(fn func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SignInWithPassword authenticates with email/password. Errors are returned
// to the caller; state updates arrive through the auth-change subscription.
func (s *Store) SignInWithPassword(ctx context.Context, email, password string) error {
	if _, err := s.auth.SignInWithPassword(ctx, email, password); err != nil {
		return err
	}
	return nil
}

// SignUp registers a new email/password identity.
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	if _, err := s.auth.SignUp(ctx, email, password); err != nil {
		return err
	}
	return nil
}

// SignOut clears the session. Identity, profile, and derived state are gone
// by the time this returns.
func (s *Store) SignOut(ctx context.Context) error {
	return s.auth.SignOut(ctx)
}

// UpdateProfile writes a profile patch and reloads the stored profile.
func (s *Store) UpdateProfile(ctx context.Context, patch model.ProfilePatch) error {
	ident, ok := s.Identity()
	if !ok {
		return fmt.Errorf("not signed in")
	}
	if err := s.profiles.UpdateProfile(ctx, ident.ID, patch); err != nil {
		return err
	}

	res := await.First(s.timeouts.ProfileLoad, func() (*model.Profile, error) {
		return s.profiles.GetProfile(ctx, ident.ID)
	})
	if res.Err == nil && !res.TimedOut && res.Value != nil {
		s.mu.Lock()
		if s.identity != nil && s.identity.ID == ident.ID {
			s.profile = res.Value
		}
		s.mu.Unlock()
		s.notify()
	}
	return nil
}

// handleAuthEvent reacts to backend session changes: local sign-in/out and
// asynchronous events such as token refresh or external sign-out.
func (s *Store) handleAuthEvent(ev backend.AuthEvent) {
	switch ev.Type {
	case backend.AuthSignedOut:
		s.mu.Lock()
		s.identity = nil
		s.profile = nil
		s.gen++
		s.mu.Unlock()
		s.notify()
	case backend.AuthSignedIn, backend.AuthTokenRefreshed:
		if ev.Session != nil {
			s.installIdentity(&ev.Session.User)
			s.notify()
		}
	}
}

// installIdentity sets the identity and kicks off the profile load. A
// repeat install of the same identity (token refresh) keeps the profile.
func (s *Store) installIdentity(ident *model.Identity) {
	s.mu.Lock()
	same := s.identity != nil && s.identity.ID == ident.ID
	s.identity = ident
	if !same {
		s.profile = nil
		s.gen++
	}
	gen := s.gen
	s.mu.Unlock()

	if !same {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loadProfile(gen, ident.ID, ident.Email)
		}()
	}
}

// loadProfile fetches the profile behind its own bound. When no row exists
// a provisional profile is installed immediately and the persisted row is
// created in the background; the persisted row replaces the provisional one
// only if the store is still bound to the same identity.
func (s *Store) loadProfile(gen uint64, userID, email string) {
	res := await.First(s.timeouts.ProfileLoad, func() (*model.Profile, error) {
		return s.profiles.GetProfile(context.Background(), userID)
	})

	if res.TimedOut {
		s.logger.Printf("WARNING: profile load timed out after %s", s.timeouts.ProfileLoad)
	} else if res.Err != nil {
		s.logger.Printf("WARNING: profile load failed: %v", res.Err)
	}

	if res.Value != nil {
		s.installProfile(gen, res.Value)
		return
	}

	// No persisted profile. Install a provisional one now and reconcile
	// with the backend in the background; callers never see this fail.
	provisional := model.ProvisionalProfile(userID, email)
	s.installProfile(gen, &provisional)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		created, err := s.profiles.InsertProfile(context.Background(), provisional)
		if err != nil {
			if backend.IsConflict(err) {
				// Another client created the row first; fetch theirs.
				if existing, getErr := s.profiles.GetProfile(context.Background(), userID); getErr == nil && existing != nil {
					s.installProfile(gen, existing)
				}
				return
			}
			s.logger.Printf("WARNING: background profile creation failed: %v", err)
			return
		}
		s.installProfile(gen, created)
	}()
}

// installProfile sets the profile if-and-only-if the store is still on the
// generation the load started under. Stale callbacks from a since-replaced
// identity are dropped here.
func (s *Store) installProfile(gen uint64, p *model.Profile) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.profile = p
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
