// Package store owns the in-memory task and category collections for the
// active identity and keeps them synchronized with the backend.
//
// The store never patches collections incrementally: every mutation writes
// through to the backend and then re-fetches both collections wholesale.
// That costs a round trip per mutation but guarantees the collections never
// drift from backend-computed fields. Push notifications converge on the
// same refresh path.
//
// Every fetch is bounded. A collection that does not arrive in time is
// replaced by an empty one and the store moves on; a slow backend degrades
// the view, it never freezes it. Timed-out fetches keep running in the
// background and their late results are discarded by the refresh sequence
// guard.
package store

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

// RowAPI is the slice of the backend row surface the store needs. Tests
// inject fakes; production wires *backend.Client.
type RowAPI interface {
	ListCategories(ctx context.Context, userID string) ([]model.Category, error)
	FindDefaultCategory(ctx context.Context, userID string) (*model.Category, error)
	InsertCategory(ctx context.Context, cat model.Category) (*model.Category, error)
	UpdateCategory(ctx context.Context, id string, patch model.CategoryPatch) error
	DeleteCategory(ctx context.Context, id string) error

	ListTasks(ctx context.Context, userID string) ([]model.Task, error)
	InsertTask(ctx context.Context, task model.Task) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error
	DeleteTask(ctx context.Context, id string) error
}

// State is the store's position in its per-identity lifecycle.
type State int

const (
	// StateEmpty means no identity is bound and the collections are empty.
	StateEmpty State = iota
	// StateBootstrapping means the initial load for an identity is running.
	StateBootstrapping
	// StateReady means the collections are populated and mutable.
	StateReady
	// StateRefreshing means a re-fetch is in flight over a Ready store.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBootstrapping:
		return "bootstrapping"
	case StateReady:
		return "ready"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Store is the synchronization store. Collections are scoped to exactly one
// identity at a time; Bind switches identities, Unbind clears everything.
type Store struct {
	api      RowAPI
	timeouts config.Timeouts
	logger   *log.Logger

	mu         sync.RWMutex
	userID     string
	tasks      []model.Task
	categories []model.Category
	loading    bool
	err        error
	state      State
	probed     bool // default-category probe already ran for this identity

	// Refresh sequencing: each refresh takes a number at start and may only
	// install results if no later refresh has installed first. Without this
	// two overlapping refreshes completing out of order could let stale
	// data overwrite fresh data.
	seq       uint64
	installed uint64

	wg sync.WaitGroup
}

// New creates a store. If logger is nil a default stderr logger is used.
func New(api RowAPI, timeouts config.Timeouts, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &Store{
		api:      api,
		timeouts: timeouts,
		logger:   logger,
		state:    StateEmpty,
	}
}

// Tasks returns a copy of the current task collection.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Categories returns a copy of the current category collection.
func (s *Store) Categories() []model.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// Loading reports whether the bootstrap load is still in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the most recent background synchronization error, if any.
// Mutation errors are returned to their callers, not stored here.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// State returns the store's lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Bound returns the identity the collections are scoped to.
func (s *Store) Bound() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.userID != ""
}

// Bind scopes the store to an identity and runs the bootstrap load. It
// returns once the collections are populated or the bootstrap bound
// expires, whichever comes first; loading is false either way.
func (s *Store) Bind(ctx context.Context, userID string) {
	s.mu.Lock()
	if s.userID == userID && s.state != StateEmpty {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	s.tasks = nil
	s.categories = nil
	s.err = nil
	s.probed = false
	s.loading = true
	s.state = StateBootstrapping
	s.installed = 0
	s.seq = 0
	s.mu.Unlock()

	s.logger.Printf("bootstrapping collections for user %s", userID)

	// The absolute bound guards the whole sequence; natural completion or
	// the timer, whichever is first, flips loading exactly once below.
	res := await.First(s.timeouts.Bootstrap, func() (struct{}, error) {
		s.load(ctx, userID, true)
		return struct{}{}, nil
	})
	if res.TimedOut {
		s.logger.Printf("WARNING: bootstrap timed out after %s, continuing with partial data", s.timeouts.Bootstrap)
	}

	s.mu.Lock()
	if s.userID == userID {
		s.loading = false
		if s.state == StateBootstrapping {
			s.state = StateReady
		}
	}
	s.mu.Unlock()
}

// Unbind clears the identity and both collections. Called on sign-out.
func (s *Store) Unbind() {
	s.mu.Lock()
	s.userID = ""
	s.tasks = nil
	s.categories = nil
	s.err = nil
	s.loading = false
	s.probed = false
	s.state = StateEmpty
	s.mu.Unlock()
	s.logger.Printf("collections cleared")
}

// Close waits for background reconciliation to finish. Test support; the
// store has no resources of its own.
func (s *Store) Close() {
	s.wg.Wait()
}

// Refresh re-fetches both collections and replaces them wholesale. It is
// idempotent and safe to call concurrently; overlapping refreshes are
// resolved by the sequence guard.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	if userID == "" {
		s.mu.Unlock()
		return fmt.Errorf("no identity bound")
	}
	if s.state == StateReady {
		s.state = StateRefreshing
	}
	s.mu.Unlock()

	s.load(ctx, userID, false)

	s.mu.Lock()
	if s.userID == userID && s.state == StateRefreshing {
		s.state = StateReady
	}
	s.mu.Unlock()
	return nil
}

// load fetches categories then tasks, each behind its own bound, and
// installs whatever arrives. On the first load for an identity it also
// kicks off the default-category check in the background.
func (s *Store) load(ctx context.Context, userID string, initial bool) {
	seq := s.nextSeq()

	if initial {
		s.mu.Lock()
		probe := !s.probed
		s.probed = true
		s.mu.Unlock()
		if probe {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.ensureDefaultCategory(ctx, userID)
			}()
		}
	}

	catRes := await.First(s.timeouts.CollectionLoad, func() ([]model.Category, error) {
		return s.api.ListCategories(ctx, userID)
	})
	switch {
	case catRes.TimedOut:
		s.logger.Printf("WARNING: category load timed out after %s", s.timeouts.CollectionLoad)
		s.installCategories(seq, userID, []model.Category{})
	case catRes.Err != nil:
		s.logger.Printf("WARNING: category load failed: %v", catRes.Err)
		s.setErr(userID, catRes.Err)
	default:
		s.installCategories(seq, userID, catRes.Value)
	}

	taskRes := await.First(s.timeouts.CollectionLoad, func() ([]model.Task, error) {
		return s.api.ListTasks(ctx, userID)
	})
	switch {
	case taskRes.TimedOut:
		s.logger.Printf("WARNING: task load timed out after %s", s.timeouts.CollectionLoad)
		s.installTasks(seq, userID, []model.Task{})
	case taskRes.Err != nil:
		s.logger.Printf("WARNING: task load failed: %v", taskRes.Err)
		s.setErr(userID, taskRes.Err)
	default:
		s.installTasks(seq, userID, taskRes.Value)
	}
}

// ensureDefaultCategory checks for the identity's default category and
// creates it when absent. Best effort: failures and duplicate creation
// races are logged, never surfaced. The backend's uniqueness constraint
// makes a concurrent double-create collapse into one row.
func (s *Store) ensureDefaultCategory(ctx context.Context, userID string) {
	res := await.First(s.timeouts.DefaultCategoryProbe, func() (*model.Category, error) {
		return s.api.FindDefaultCategory(ctx, userID)
	})
	if res.Value != nil {
		return
	}
	if res.TimedOut {
		s.logger.Printf("WARNING: default category probe timed out after %s, attempting create", s.timeouts.DefaultCategoryProbe)
	} else if res.Err != nil {
		s.logger.Printf("WARNING: default category probe failed: %v", res.Err)
	}

	created, err := s.api.InsertCategory(ctx, model.Category{
		Name:      model.DefaultCategoryName,
		Color:     model.DefaultCategoryColor,
		UserID:    userID,
		IsDefault: true,
	})
	if err != nil {
		if backend.IsConflict(err) {
			s.logger.Printf("default category already created elsewhere")
		} else {
			s.logger.Printf("WARNING: default category creation failed: %v", err)
		}
		return
	}

	s.logger.Printf("created default category %s", created.ID)
	s.mu.Lock()
	if s.userID == userID && !hasDefault(s.categories, created.ID) {
		s.categories = append([]model.Category{*created}, s.categories...)
	}
	s.mu.Unlock()
}

// hasDefault reports whether cats already carries a default category or the
// row with the given ID. A refresh that raced the create may have installed
// the committed row before this append runs.
func hasDefault(cats []model.Category, id string) bool {
	for _, c := range cats {
		if c.IsDefault || c.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Store) installCategories(seq uint64, userID string, cats []model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != userID || seq < s.installed {
		return // superseded by a later refresh or an identity switch
	}
	s.installed = seq
	s.categories = cats
	s.err = nil
}

func (s *Store) installTasks(seq uint64, userID string, tasks []model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != userID || seq < s.installed {
		return
	}
	s.installed = seq
	s.tasks = tasks
	s.err = nil
}

func (s *Store) setErr(userID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == userID {
		s.err = err
	}
}
