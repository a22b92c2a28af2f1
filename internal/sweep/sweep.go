// Package sweep moves past-due tasks to the overdue status.
//
// The backend stores overdue as a plain status value; nothing server-side
// transitions tasks into it. The sweeper runs the transition on a schedule,
// going through the store's normal update path so each change writes
// through and refreshes like any other mutation.
package sweep

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/planward/planward/internal/model"
)

// TaskSource provides the snapshot and the update path. The sync store
// satisfies this.
type TaskSource interface {
	Tasks() []model.Task
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) error
}

// Sweeper periodically marks due-passed upcoming tasks overdue.
type Sweeper struct {
	source TaskSource
	logger *log.Logger
	cron   *cron.Cron

	now func() time.Time // test hook
}

// New creates a sweeper. If logger is nil a default stderr logger is used.
func New(source TaskSource, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.New(os.Stderr, "[sweep] ", log.LstdFlags)
	}
	return &Sweeper{
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules the sweep on the given cron spec (e.g. "* * * * *" for
// every minute) and runs one sweep immediately.
func (s *Sweeper) Start(spec string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.Sweep(context.Background())
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep runs one pass. Individual update failures are logged and the pass
// continues; the next scheduled run retries naturally.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()
	moved := 0
	for _, t := range s.source.Tasks() {
		if t.Status != model.StatusUpcoming || t.DueAt == nil || t.DueAt.After(now) {
			continue
		}
		patch := model.TaskPatch{Status: model.Ptr(model.StatusOverdue)}
		if err := s.source.UpdateTask(ctx, t.ID, patch); err != nil {
			s.logger.Printf("WARNING: failed to mark task %s overdue: %v", t.ID, err)
			continue
		}
		moved++
	}
	if moved > 0 {
		s.logger.Printf("marked %d tasks overdue", moved)
	}
}
