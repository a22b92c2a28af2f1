// Package bridge connects backend push notifications to the
// synchronization store.
//
// For the active identity it holds two channel subscriptions, one per
// collection, and answers every change event the same way: a full refresh.
// Event payloads are never inspected; refresh is the only reconciliation
// strategy, so a missed delta can never leave the store stale for longer
// than one event.
package bridge

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/planward/planward/internal/backend"
)

// ChannelAPI is the slice of the realtime surface the bridge needs.
type ChannelAPI interface {
	Join(ctx context.Context, table, userID string, handler func(backend.ChangeEvent)) error
	Leave(ctx context.Context, table, userID string) error
}

// Refresher re-fetches the store's collections.
type Refresher interface {
	Refresh(ctx context.Context) error
}

var watchedTables = []string{"tasks", "categories"}

// Bridge manages the subscription lifecycle for one identity at a time.
// Arm only after the store's bootstrap has completed, so a push event never
// refreshes into an uninitialized store.
type Bridge struct {
	channels  ChannelAPI
	refresher Refresher
	logger    *log.Logger

	mu     sync.Mutex
	userID string // armed identity, empty when disarmed
	wg     sync.WaitGroup
}

// New creates a bridge. If logger is nil a default stderr logger is used.
func New(channels ChannelAPI, refresher Refresher, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.New(os.Stderr, "[bridge] ", log.LstdFlags)
	}
	return &Bridge{
		channels:  channels,
		refresher: refresher,
		logger:    logger,
	}
}

// Arm opens both subscriptions for userID. An already-armed bridge is
// disarmed first, so switching identities never leaks a subscription.
func (b *Bridge) Arm(ctx context.Context, userID string) error {
	b.mu.Lock()
	prev := b.userID
	b.mu.Unlock()
	if prev == userID {
		return nil
	}
	if prev != "" {
		if err := b.Disarm(ctx); err != nil {
			return err
		}
	}

	var joined []string
	for _, table := range watchedTables {
		table := table
		err := b.channels.Join(ctx, table, userID, func(ev backend.ChangeEvent) {
			b.handleChange(userID, ev)
		})
		if err != nil {
			// Roll back the partial arm; half a bridge is worse than none.
			for _, t := range joined {
				if leaveErr := b.channels.Leave(ctx, t, userID); leaveErr != nil {
					b.logger.Printf("WARNING: failed to leave %s during rollback: %v", t, leaveErr)
				}
			}
			return fmt.Errorf("failed to subscribe to %s changes: %w", table, err)
		}
		joined = append(joined, table)
	}

	b.mu.Lock()
	b.userID = userID
	b.mu.Unlock()
	b.logger.Printf("subscriptions armed for user %s", userID)
	return nil
}

// Disarm tears down the active subscriptions synchronously. Safe to call
// when nothing is armed.
func (b *Bridge) Disarm(ctx context.Context) error {
	b.mu.Lock()
	userID := b.userID
	b.userID = ""
	b.mu.Unlock()
	if userID == "" {
		return nil
	}

	var firstErr error
	for _, table := range watchedTables {
		if err := b.channels.Leave(ctx, table, userID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to unsubscribe from %s: %w", table, err)
		}
	}
	b.logger.Printf("subscriptions torn down for user %s", userID)
	return firstErr
}

// Close disarms and waits for in-flight refreshes.
func (b *Bridge) Close(ctx context.Context) error {
	err := b.Disarm(ctx)
	b.wg.Wait()
	return err
}

// handleChange runs on the realtime read goroutine; the refresh happens on
// its own goroutine so the socket is never blocked behind a fetch.
func (b *Bridge) handleChange(userID string, ev backend.ChangeEvent) {
	b.mu.Lock()
	armed := b.userID == userID
	b.mu.Unlock()
	if !armed {
		return // stale event from a subscription being torn down
	}

	b.logger.Printf("change event: %s %s", ev.Table, ev.Type)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.refresher.Refresh(context.Background()); err != nil {
			b.logger.Printf("WARNING: refresh after change event failed: %v", err)
		}
	}()
}
