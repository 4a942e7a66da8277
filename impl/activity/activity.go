// Package activity is the audit sink. Recording is fire-and-forget: a
// storage failure is logged and dropped, never surfaced to the operation
// being audited.
package activity

import (
	"context"
	"log/slog"
	"gatepass/entity"
	"gatepass/lib/clock"
	"gatepass/lib/sl"

	"github.com/google/uuid"
)

type Store interface {
	InsertActivity(ctx context.Context, activity *entity.Activity) error
	ListActivity(ctx context.Context, filter entity.ActivityFilter) (*entity.ActivityPage, error)
}

type Recorder struct {
	store Store
	clock clock.Clock
	log   *slog.Logger
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func New(store Store, clk clock.Clock, log *slog.Logger) *Recorder {
	return &Recorder{
		store: store,
		clock: clk,
		log:   log.With(sl.Module("activity")),
	}
}

// Record persists one audit entry. Never returns an error.
func (r *Recorder) Record(ctx context.Context, actor string, action entity.ActivityAction, details entity.ActivityDetails, outcome entity.ActivityOutcome) {
	entry := &entity.Activity{
		ID:        uuid.NewString(),
		Actor:     actor,
		Action:    action,
		Details:   details,
		Outcome:   outcome,
		Timestamp: r.clock.Now(),
	}
	if err := r.store.InsertActivity(ctx, entry); err != nil {
		r.log.Warn("record activity", slog.String("action", string(action)), sl.Err(err))
	}
}

// Logs returns one page of the audit log for the admin surface.
func (r *Recorder) Logs(ctx context.Context, filter entity.ActivityFilter) (*entity.ActivityPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	return r.store.ListActivity(ctx, filter)
}
