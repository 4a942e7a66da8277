package pool_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"gatepass/entity"
	"gatepass/impl/pool"
	"gatepass/lib/clock"
)

var testTime = time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type poolStore struct {
	tickets []*entity.Ticket

	// failInserts makes the next N InsertTickets calls report a duplicate
	// key after inserting half the batch, like a partial bulk write.
	failInserts int
	deletes     int

	listState entity.TicketState
	listPage  int64
	listLimit int64
	searched  string
}

func (s *poolStore) CountTickets(context.Context) (int64, error) {
	return int64(len(s.tickets)), nil
}

func (s *poolStore) InsertTickets(_ context.Context, tickets []*entity.Ticket) error {
	if s.failInserts > 0 {
		s.failInserts--
		s.tickets = append(s.tickets, tickets[:len(tickets)/2]...)
		return entity.ErrDuplicateKey
	}
	s.tickets = append(s.tickets, tickets...)
	return nil
}

func (s *poolStore) DeleteAllTickets(context.Context) error {
	s.deletes++
	s.tickets = nil
	return nil
}

func (s *poolStore) CountTicketsInState(_ context.Context, state entity.TicketState) (int64, error) {
	var n int64
	for _, t := range s.tickets {
		if t.Status == state {
			n++
		}
	}
	return n, nil
}

func (s *poolStore) CountIssuedBy(_ context.Context, actor string) (int64, error) {
	var n int64
	for _, t := range s.tickets {
		if t.IssuedBy == actor && t.IsAssigned() {
			n++
		}
	}
	return n, nil
}

func (s *poolStore) CountRedeemedBy(_ context.Context, actor string) (int64, error) {
	var n int64
	for _, t := range s.tickets {
		if t.RedeemedBy == actor {
			n++
		}
	}
	return n, nil
}

func (s *poolStore) ListTickets(_ context.Context, state entity.TicketState, page, limit int64) (*entity.TicketPage, error) {
	s.listState, s.listPage, s.listLimit = state, page, limit
	return &entity.TicketPage{Page: page, PerPage: limit}, nil
}

func (s *poolStore) SearchTicketsByEmail(_ context.Context, email string) ([]*entity.Ticket, error) {
	s.searched = email
	return nil, nil
}

// seqGenerator hands out unique sequential identifiers.
type seqGenerator struct {
	n int
}

func (g *seqGenerator) Code() (string, error) {
	g.n++
	return fmt.Sprintf("ASA-SEQ%04d", g.n), nil
}

func (g *seqGenerator) Token() (string, error) {
	return fmt.Sprintf("%032d", g.n), nil
}

func TestInitialize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates the full pool of unused tickets", func(t *testing.T) {
		t.Parallel()
		store := &poolStore{}
		service := pool.New(store, &seqGenerator{}, clock.NewFixed(testTime), 65, discardLogger())

		created, err := service.Initialize(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created != 65 {
			t.Errorf("created = %d, want 65", created)
		}
		if len(store.tickets) != 65 {
			t.Fatalf("stored = %d, want 65", len(store.tickets))
		}

		codes := make(map[string]bool)
		tokens := make(map[string]bool)
		for _, ticket := range store.tickets {
			if ticket.Status != entity.StateUnused {
				t.Errorf("ticket %s status = %q, want unused", ticket.Code, ticket.Status)
			}
			if !ticket.CreatedAt.Equal(testTime) {
				t.Errorf("ticket %s created_at = %v, want %v", ticket.Code, ticket.CreatedAt, testTime)
			}
			if codes[ticket.Code] {
				t.Errorf("duplicate code %s", ticket.Code)
			}
			if tokens[ticket.Token] {
				t.Errorf("duplicate token for %s", ticket.Code)
			}
			codes[ticket.Code] = true
			tokens[ticket.Token] = true
		}
	})

	t.Run("second call changes nothing", func(t *testing.T) {
		t.Parallel()
		store := &poolStore{}
		service := pool.New(store, &seqGenerator{}, clock.NewFixed(testTime), 5, discardLogger())

		if _, err := service.Initialize(ctx); err != nil {
			t.Fatalf("first call: %v", err)
		}

		_, err := service.Initialize(ctx)
		var already *entity.AlreadyInitializedError
		if !errors.As(err, &already) {
			t.Fatalf("error = %v, want AlreadyInitializedError", err)
		}
		if already.CurrentCount != 5 {
			t.Errorf("reported count = %d, want 5", already.CurrentCount)
		}
		if len(store.tickets) != 5 {
			t.Errorf("stored = %d, want 5 unchanged", len(store.tickets))
		}
	})

	t.Run("wipes a partial batch and regenerates on collision", func(t *testing.T) {
		t.Parallel()
		store := &poolStore{failInserts: 1}
		service := pool.New(store, &seqGenerator{}, clock.NewFixed(testTime), 5, discardLogger())

		created, err := service.Initialize(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created != 5 || len(store.tickets) != 5 {
			t.Errorf("created = %d, stored = %d, want 5 and 5", created, len(store.tickets))
		}
		if store.deletes != 1 {
			t.Errorf("partial batch wiped %d times, want 1", store.deletes)
		}
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		t.Parallel()
		store := &poolStore{failInserts: 3}
		service := pool.New(store, &seqGenerator{}, clock.NewFixed(testTime), 5, discardLogger())

		_, err := service.Initialize(ctx)
		if !errors.Is(err, entity.ErrIDSpaceExhausted) {
			t.Fatalf("error = %v, want ErrIDSpaceExhausted", err)
		}
		if len(store.tickets) != 0 {
			t.Errorf("stored = %d, want 0 after the last wipe", len(store.tickets))
		}
	})
}

func TestStats(t *testing.T) {
	t.Parallel()
	store := &poolStore{tickets: []*entity.Ticket{
		{Code: "A", Status: entity.StateUnused},
		{Code: "B", Status: entity.StateUnused},
		{Code: "C", Status: entity.StateSent, IssuedBy: "operator1"},
		{Code: "D", Status: entity.StateSent, IssuedBy: "operator2"},
		{Code: "E", Status: entity.StateUsed, IssuedBy: "operator1", RedeemedBy: "operator2"},
	}}
	service := pool.New(store, &seqGenerator{}, clock.NewFixed(testTime), 5, discardLogger())

	global, personal, err := service.Stats(context.Background(), "operator1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := entity.PoolStats{Total: 5, Sent: 2, Used: 1, Remaining: 2}
	if *global != want {
		t.Errorf("global = %+v, want %+v", *global, want)
	}
	if personal.TicketsIssued != 2 {
		t.Errorf("tickets_issued = %d, want 2", personal.TicketsIssued)
	}
	if personal.TicketsScanned != 0 {
		t.Errorf("tickets_scanned = %d, want 0", personal.TicketsScanned)
	}
}

func TestList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cases := []struct {
		name      string
		state     entity.TicketState
		page      int64
		limit     int64
		wantState entity.TicketState
		wantPage  int64
		wantLimit int64
	}{
		{"defaults applied", "", 0, 0, "", 1, 50},
		{"limit capped", entity.StateSent, 2, 1000, entity.StateSent, 2, 200},
		{"unknown state dropped", "banana", 1, 10, "", 1, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &poolStore{}
			service := pool.New(store, &seqGenerator{}, clock.NewFixed(testTime), 5, discardLogger())
			if _, err := service.List(ctx, tc.state, tc.page, tc.limit); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store.listState != tc.wantState || store.listPage != tc.wantPage || store.listLimit != tc.wantLimit {
				t.Errorf("store saw (%q, %d, %d), want (%q, %d, %d)",
					store.listState, store.listPage, store.listLimit, tc.wantState, tc.wantPage, tc.wantLimit)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &poolStore{}
	service := pool.New(store, &seqGenerator{}, clock.NewFixed(testTime), 5, discardLogger())

	if _, err := service.Search(ctx, "  "); !errors.Is(err, entity.ErrInvalidEmail) {
		t.Fatalf("error = %v, want ErrInvalidEmail", err)
	}
	if _, err := service.Search(ctx, " Guest@Example.COM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.searched != "guest@example.com" {
		t.Errorf("store saw %q, want normalized guest@example.com", store.searched)
	}
}
