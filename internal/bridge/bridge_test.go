package bridge

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/planward/planward/internal/backend"
)

type fakeChannels struct {
	mu       sync.Mutex
	handlers map[string]func(backend.ChangeEvent) // keyed table|user
	joins    []string
	leaves   []string
	joinErr  map[string]error
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{
		handlers: make(map[string]func(backend.ChangeEvent)),
		joinErr:  make(map[string]error),
	}
}

func key(table, userID string) string { return table + "|" + userID }

func (f *fakeChannels) Join(ctx context.Context, table, userID string, handler func(backend.ChangeEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.joinErr[table]; err != nil {
		return err
	}
	f.handlers[key(table, userID)] = handler
	f.joins = append(f.joins, key(table, userID))
	return nil
}

func (f *fakeChannels) Leave(ctx context.Context, table, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, key(table, userID))
	f.leaves = append(f.leaves, key(table, userID))
	return nil
}

func (f *fakeChannels) push(table, userID string, ev backend.ChangeEvent) {
	f.mu.Lock()
	fn := f.handlers[key(table, userID)]
	f.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

type countingRefresher struct {
	mu    sync.Mutex
	count int
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *countingRefresher) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func newTestBridge(t *testing.T) (*Bridge, *fakeChannels, *countingRefresher) {
	t.Helper()
	ch := newFakeChannels()
	ref := &countingRefresher{}
	return New(ch, ref, log.New(os.Stderr, "[test] ", 0)), ch, ref
}

func TestArmSubscribesBothTables(t *testing.T) {
	b, ch, _ := newTestBridge(t)
	if err := b.Arm(context.Background(), "u1"); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.handlers) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(ch.handlers))
	}
	for _, table := range []string{"tasks", "categories"} {
		if ch.handlers[key(table, "u1")] == nil {
			t.Errorf("no subscription for %s", table)
		}
	}
}

func TestChangeEventTriggersRefresh(t *testing.T) {
	b, ch, ref := newTestBridge(t)
	if err := b.Arm(context.Background(), "u1"); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	ch.push("tasks", "u1", backend.ChangeEvent{Table: "tasks", Type: backend.ChangeInsert})
	ch.push("categories", "u1", backend.ChangeEvent{Table: "categories", Type: backend.ChangeDelete})
	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := ref.calls(); got != 2 {
		t.Errorf("expected 2 refreshes, got %d", got)
	}
}

func TestDisarmStopsRefreshes(t *testing.T) {
	b, ch, ref := newTestBridge(t)
	if err := b.Arm(context.Background(), "u1"); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}

	// Keep a handler reference around to model an event that was already in
	// flight when the teardown ran.
	ch.mu.Lock()
	stale := ch.handlers[key("tasks", "u1")]
	ch.mu.Unlock()

	if err := b.Disarm(context.Background()); err != nil {
		t.Fatalf("Disarm failed: %v", err)
	}
	stale(backend.ChangeEvent{Table: "tasks", Type: backend.ChangeUpdate})

	time.Sleep(50 * time.Millisecond)
	if got := ref.calls(); got != 0 {
		t.Errorf("disarmed bridge refreshed %d times", got)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.leaves) != 2 {
		t.Errorf("expected 2 leaves on disarm, got %v", ch.leaves)
	}
}

func TestArmSwitchesIdentity(t *testing.T) {
	b, ch, ref := newTestBridge(t)
	if err := b.Arm(context.Background(), "u1"); err != nil {
		t.Fatalf("first Arm failed: %v", err)
	}
	if err := b.Arm(context.Background(), "u2"); err != nil {
		t.Fatalf("second Arm failed: %v", err)
	}

	ch.mu.Lock()
	_, oldAlive := ch.handlers[key("tasks", "u1")]
	_, newAlive := ch.handlers[key("tasks", "u2")]
	ch.mu.Unlock()
	if oldAlive {
		t.Error("previous identity's subscription was not torn down")
	}
	if !newAlive {
		t.Error("new identity's subscription missing")
	}

	ch.push("tasks", "u2", backend.ChangeEvent{Table: "tasks", Type: backend.ChangeInsert})
	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := ref.calls(); got != 1 {
		t.Errorf("expected 1 refresh for the new identity, got %d", got)
	}
}

func TestArmSameIdentityIsNoop(t *testing.T) {
	b, ch, _ := newTestBridge(t)
	if err := b.Arm(context.Background(), "u1"); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if err := b.Arm(context.Background(), "u1"); err != nil {
		t.Fatalf("re-Arm failed: %v", err)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.joins) != 2 {
		t.Errorf("re-arming the same identity joined again: %v", ch.joins)
	}
}

func TestArmRollsBackPartialJoin(t *testing.T) {
	b, ch, _ := newTestBridge(t)
	ch.joinErr["categories"] = fmt.Errorf("channel error")

	if err := b.Arm(context.Background(), "u1"); err == nil {
		t.Fatal("expected Arm to fail")
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.handlers) != 0 {
		t.Errorf("partial arm left %d subscriptions alive", len(ch.handlers))
	}
}

func TestDisarmWhenIdleIsNoop(t *testing.T) {
	b, ch, _ := newTestBridge(t)
	if err := b.Disarm(context.Background()); err != nil {
		t.Fatalf("idle Disarm failed: %v", err)
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.leaves) != 0 {
		t.Errorf("idle disarm issued leaves: %v", ch.leaves)
	}
}
