package activity_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"gatepass/entity"
	"gatepass/impl/activity"
	"gatepass/lib/clock"
)

var testTime = time.Date(2026, 4, 25, 10, 0, 0, 0, time.UTC)

type activityStore struct {
	entries   []*entity.Activity
	insertErr error
	filter    entity.ActivityFilter
}

func (s *activityStore) InsertActivity(_ context.Context, entry *entity.Activity) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *activityStore) ListActivity(_ context.Context, filter entity.ActivityFilter) (*entity.ActivityPage, error) {
	s.filter = filter
	return &entity.ActivityPage{}, nil
}

func newRecorder(store *activityStore) *activity.Recorder {
	return activity.New(store, clock.NewFixed(testTime), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("persists a stamped entry", func(t *testing.T) {
		t.Parallel()
		store := &activityStore{}
		rec := newRecorder(store)

		rec.Record(ctx, "operator1", entity.ActionTicketIssued, entity.ActivityDetails{TicketCode: "ASA-X", TicketEmail: "a@example.com"}, entity.OutcomeSuccess)

		if len(store.entries) != 1 {
			t.Fatalf("entries = %d, want 1", len(store.entries))
		}
		got := store.entries[0]
		if got.ID == "" {
			t.Error("entry has no id")
		}
		if got.Actor != "operator1" || got.Action != entity.ActionTicketIssued || got.Outcome != entity.OutcomeSuccess {
			t.Errorf("unexpected entry: %+v", got)
		}
		if !got.Timestamp.Equal(testTime) {
			t.Errorf("timestamp = %v, want %v", got.Timestamp, testTime)
		}
	})

	t.Run("storage failure is swallowed", func(t *testing.T) {
		t.Parallel()
		store := &activityStore{insertErr: errors.New("mongodb down")}
		rec := newRecorder(store)
		rec.Record(ctx, "operator1", entity.ActionTicketValidated, entity.ActivityDetails{}, entity.OutcomeFailure)
	})
}

func TestLogs(t *testing.T) {
	t.Parallel()
	store := &activityStore{}
	rec := newRecorder(store)

	if _, err := rec.Logs(context.Background(), entity.ActivityFilter{Page: -3, Limit: 10000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.filter.Page != 1 {
		t.Errorf("page = %d, want 1", store.filter.Page)
	}
	if store.filter.Limit != 200 {
		t.Errorf("limit = %d, want 200", store.filter.Limit)
	}
}
