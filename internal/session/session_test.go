package session

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/planward/planward/internal/backend"
	"github.com/planward/planward/internal/config"
	"github.com/planward/planward/internal/model"
)

type fakeAuth struct {
	mu       sync.Mutex
	session  *model.Session
	listener func(backend.AuthEvent)

	currentFn func(ctx context.Context) (*model.Session, error)
}

func (f *fakeAuth) CurrentSession(ctx context.Context) (*model.Session, error) {
	if f.currentFn != nil {
		return f.currentFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	sess := &model.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        model.Identity{ID: "uid-" + email, Email: email},
	}
	f.mu.Lock()
	f.session = sess
	f.mu.Unlock()
	f.fire(backend.AuthEvent{Type: backend.AuthSignedIn, Session: sess})
	return sess, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	return f.SignInWithPassword(ctx, email, password)
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()
	f.fire(backend.AuthEvent{Type: backend.AuthSignedOut})
	return nil
}

func (f *fakeAuth) OnAuthChange(fn func(backend.AuthEvent)) func() {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.listener = nil
		f.mu.Unlock()
	}
}

func (f *fakeAuth) fire(ev backend.AuthEvent) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

type fakeProfiles struct {
	mu        sync.Mutex
	rows      map[string]model.Profile
	insertErr error
	inserts   int

	getFn func(ctx context.Context, userID string) (*model.Profile, error)
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: make(map[string]model.Profile)}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if f.getFn != nil {
		return f.getFn(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeProfiles) InsertProfile(ctx context.Context, p model.Profile) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	p.CreatedAt = time.Now()
	f.rows[p.ID] = p
	return &p, nil
}

func (f *fakeProfiles) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[userID]
	if !ok {
		return fmt.Errorf("profile %s not found", userID)
	}
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.PhoneNumber != nil {
		p.PhoneNumber = *patch.PhoneNumber
	}
	if patch.AvatarURL != nil {
		p.AvatarURL = *patch.AvatarURL
	}
	f.rows[userID] = p
	return nil
}

func testTimeouts() config.Timeouts {
	return config.Timeouts{
		SessionResolve: 300 * time.Millisecond,
		ProfileLoad:    500 * time.Millisecond,
	}
}

func newTestStore(t *testing.T) (*Store, *fakeAuth, *fakeProfiles) {
	t.Helper()
	auth := &fakeAuth{}
	profiles := newFakeProfiles()
	s := NewStore(auth, profiles, testTimeouts(), log.New(os.Stderr, "[test] ", 0))
	return s, auth, profiles
}

func TestStartResolvesPersistedSession(t *testing.T) {
	s, auth, profiles := newTestStore(t)
	auth.session = &model.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        model.Identity{ID: "u1", Email: "alice@example.com"},
	}
	profiles.rows["u1"] = model.Profile{ID: "u1", Email: "alice@example.com", DisplayName: "Alice", CreatedAt: time.Now()}

	s.Start(context.Background())
	s.Close()

	if s.Resolving() {
		t.Error("resolving still true after Start returned")
	}
	ident, ok := s.Identity()
	if !ok || ident.ID != "u1" {
		t.Fatalf("identity not resolved: %+v ok=%v", ident, ok)
	}
	p, ok := s.Profile()
	if !ok || p.DisplayName != "Alice" {
		t.Errorf("persisted profile not loaded: %+v ok=%v", p, ok)
	}
	if profiles.inserts != 0 {
		t.Errorf("no insert expected when a profile row exists, got %d", profiles.inserts)
	}
}

func TestStartUnauthenticated(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.Start(context.Background())
	s.Close()

	if s.Resolving() {
		t.Error("resolving still true")
	}
	if _, ok := s.Identity(); ok {
		t.Error("identity present with no persisted session")
	}
}

func TestStartTimeoutBound(t *testing.T) {
	s, auth, _ := newTestStore(t)
	block := make(chan struct{})
	defer close(block)
	auth.currentFn = func(ctx context.Context) (*model.Session, error) {
		<-block
		return nil, nil
	}

	start := time.Now()
	s.Start(context.Background())
	elapsed := time.Since(start)

	if s.Resolving() {
		t.Error("resolving still true after the resolve bound")
	}
	if _, ok := s.Identity(); ok {
		t.Error("identity present after timed-out resolution")
	}
	if elapsed > testTimeouts().SessionResolve+200*time.Millisecond {
		t.Errorf("Start took %s, should be bounded by %s", elapsed, testTimeouts().SessionResolve)
	}
}

func TestProvisionalProfileCreatedInBackground(t *testing.T) {
	s, auth, profiles := newTestStore(t)
	auth.session = &model.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        model.Identity{ID: "u1", Email: "alice@example.com"},
	}

	s.Start(context.Background())
	s.Close()

	p, ok := s.Profile()
	if !ok {
		t.Fatal("no profile after Start")
	}
	if p.DisplayName != "alice" {
		t.Errorf("provisional display name = %q, want the email local part", p.DisplayName)
	}
	profiles.mu.Lock()
	_, created := profiles.rows["u1"]
	profiles.mu.Unlock()
	if !created {
		t.Error("profile row was not persisted in the background")
	}
}

func TestProfileConflictFetchesExisting(t *testing.T) {
	s, auth, profiles := newTestStore(t)
	auth.session = &model.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        model.Identity{ID: "u1", Email: "alice@example.com"},
	}
	profiles.insertErr = &backend.APIError{Status: 409, Code: "23505", Message: "duplicate key"}

	existing := model.Profile{ID: "u1", Email: "alice@example.com", DisplayName: "Alice Prime", CreatedAt: time.Now()}
	var calls int
	var mu sync.Mutex
	profiles.getFn = func(ctx context.Context, userID string) (*model.Profile, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return nil, nil // row appears between the miss and the insert
		}
		out := existing
		return &out, nil
	}

	s.Start(context.Background())
	s.Close()

	p, ok := s.Profile()
	if !ok || p.DisplayName != "Alice Prime" {
		t.Errorf("conflict should resolve to the existing row, got %+v ok=%v", p, ok)
	}
}

func TestStaleProfileDropped(t *testing.T) {
	s, _, profiles := newTestStore(t)
	release := make(chan struct{})
	profiles.getFn = func(ctx context.Context, userID string) (*model.Profile, error) {
		if userID == "uid-a@example.com" {
			<-release
			return &model.Profile{ID: userID, DisplayName: "Stale A"}, nil
		}
		return &model.Profile{ID: userID, DisplayName: "Fresh B"}, nil
	}

	s.Start(context.Background())
	if err := s.SignInWithPassword(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if err := s.SignOut(context.Background()); err != nil {
		t.Fatalf("sign-out failed: %v", err)
	}
	if err := s.SignInWithPassword(context.Background(), "b@example.com", "pw"); err != nil {
		t.Fatalf("second sign-in failed: %v", err)
	}
	close(release)
	s.Close()

	p, ok := s.Profile()
	if !ok {
		t.Fatal("no profile after second sign-in")
	}
	if p.DisplayName != "Fresh B" {
		t.Errorf("stale profile from the replaced identity was installed: %+v", p)
	}
}

func TestSignOutClearsState(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.Start(context.Background())
	if err := s.SignInWithPassword(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if _, ok := s.Identity(); !ok {
		t.Fatal("identity missing after sign-in")
	}

	if err := s.SignOut(context.Background()); err != nil {
		t.Fatalf("sign-out failed: %v", err)
	}
	s.Close()

	if _, ok := s.Identity(); ok {
		t.Error("identity survives sign-out")
	}
	if _, ok := s.Profile(); ok {
		t.Error("profile survives sign-out")
	}
}

func TestTokenRefreshKeepsProfile(t *testing.T) {
	s, auth, profiles := newTestStore(t)
	profiles.rows["u1"] = model.Profile{ID: "u1", DisplayName: "Alice", CreatedAt: time.Now()}
	sess := &model.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        model.Identity{ID: "u1", Email: "alice@example.com"},
	}
	auth.session = sess

	s.Start(context.Background())
	s.Close()
	before, _ := s.Profile()

	refreshed := *sess
	refreshed.AccessToken = "tok2"
	auth.fire(backend.AuthEvent{Type: backend.AuthTokenRefreshed, Session: &refreshed})
	s.Close()

	after, ok := s.Profile()
	if !ok || after.DisplayName != before.DisplayName {
		t.Errorf("token refresh disturbed the profile: before=%+v after=%+v", before, after)
	}
}

func TestOnChangeNotifies(t *testing.T) {
	s, _, _ := newTestStore(t)
	var mu sync.Mutex
	fired := 0
	unsub := s.OnChange(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	s.Start(context.Background())
	s.Close()
	mu.Lock()
	n := fired
	mu.Unlock()
	if n == 0 {
		t.Error("listener never fired")
	}

	unsub()
	if err := s.SignInWithPassword(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	s.Close()
	mu.Lock()
	defer mu.Unlock()
	if fired != n {
		t.Error("listener fired after unsubscribe")
	}
}

func TestUpdateProfileRequiresIdentity(t *testing.T) {
	s, _, _ := newTestStore(t)
	err := s.UpdateProfile(context.Background(), model.ProfilePatch{DisplayName: model.Ptr("x")})
	if err == nil {
		t.Fatal("expected error with no identity")
	}
}

func TestUpdateProfileReloads(t *testing.T) {
	s, auth, profiles := newTestStore(t)
	auth.session = &model.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        model.Identity{ID: "u1", Email: "alice@example.com"},
	}
	profiles.rows["u1"] = model.Profile{ID: "u1", Email: "alice@example.com", DisplayName: "Alice", CreatedAt: time.Now()}

	s.Start(context.Background())
	s.Close()

	err := s.UpdateProfile(context.Background(), model.ProfilePatch{DisplayName: model.Ptr("Alice R")})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	p, _ := s.Profile()
	if p.DisplayName != "Alice R" {
		t.Errorf("profile not reloaded after update: %+v", p)
	}
}
