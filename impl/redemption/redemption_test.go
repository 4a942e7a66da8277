package redemption_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gatepass/entity"
	"gatepass/impl/redemption"
	"gatepass/lib/clock"
)

var testTime = time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type gateStore struct {
	mu      sync.Mutex
	tickets map[string]*entity.Ticket
}

func newGateStore(tickets ...*entity.Ticket) *gateStore {
	s := &gateStore{tickets: make(map[string]*entity.Ticket)}
	for _, t := range tickets {
		s.tickets[t.Code] = t
	}
	return s
}

func (s *gateStore) FindTicketByToken(_ context.Context, token string) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.Token == token {
			c := *t
			return &c, nil
		}
	}
	return nil, entity.ErrTicketNotFound
}

func (s *gateStore) CommitRedemption(_ context.Context, code, actor string, at time.Time) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[code]
	if !ok {
		return nil, entity.ErrTicketNotFound
	}
	if t.Status != entity.StateSent {
		return nil, entity.ErrStateConflict
	}
	t.Status = entity.StateUsed
	t.RedeemedBy = actor
	t.RedeemedAt = at
	c := *t
	return &c, nil
}

func sentTicket(code, token, email string) *entity.Ticket {
	return &entity.Ticket{
		Code:     code,
		Token:    token,
		Status:   entity.StateSent,
		Email:    email,
		IssuedBy: "operator1",
		IssuedAt: testTime.Add(-time.Hour),
	}
}

func TestRedeem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("marks a sent ticket as used", func(t *testing.T) {
		t.Parallel()
		store := newGateStore(sentTicket("ASA-A", "aaaa", "a@example.com"))
		service := redemption.New(store, clock.NewFixed(testTime), discardLogger())

		got, err := service.Redeem(ctx, "aaaa", "gate1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Code != "ASA-A" || got.Email != "a@example.com" || got.IssuedBy != "operator1" {
			t.Errorf("unexpected redemption view: %+v", got)
		}
		if !got.RedeemedAt.Equal(testTime) {
			t.Errorf("used_at = %v, want %v", got.RedeemedAt, testTime)
		}

		stored := store.tickets["ASA-A"]
		if stored.Status != entity.StateUsed || stored.RedeemedBy != "gate1" {
			t.Errorf("stored ticket = %+v, want used by gate1", stored)
		}
	})

	t.Run("rejects an empty token", func(t *testing.T) {
		t.Parallel()
		service := redemption.New(newGateStore(), clock.NewFixed(testTime), discardLogger())
		if _, err := service.Redeem(ctx, "", "gate1"); !errors.Is(err, entity.ErrInvalidToken) {
			t.Fatalf("error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("unknown token reads as not found", func(t *testing.T) {
		t.Parallel()
		store := newGateStore(sentTicket("ASA-A", "aaaa", "a@example.com"))
		service := redemption.New(store, clock.NewFixed(testTime), discardLogger())
		if _, err := service.Redeem(ctx, "bbbb", "gate1"); !errors.Is(err, entity.ErrTicketNotFound) {
			t.Fatalf("error = %v, want ErrTicketNotFound", err)
		}
	})

	t.Run("unassigned ticket cannot pass the gate", func(t *testing.T) {
		t.Parallel()
		store := newGateStore(&entity.Ticket{Code: "ASA-A", Token: "aaaa", Status: entity.StateUnused})
		service := redemption.New(store, clock.NewFixed(testTime), discardLogger())
		if _, err := service.Redeem(ctx, "aaaa", "gate1"); !errors.Is(err, entity.ErrNotAssigned) {
			t.Fatalf("error = %v, want ErrNotAssigned", err)
		}
	})

	t.Run("second scan reports the winning redemption", func(t *testing.T) {
		t.Parallel()
		first := sentTicket("ASA-A", "aaaa", "a@example.com")
		first.Status = entity.StateUsed
		first.RedeemedBy = "gate1"
		first.RedeemedAt = testTime.Add(-10 * time.Minute)
		store := newGateStore(first)
		service := redemption.New(store, clock.NewFixed(testTime), discardLogger())

		_, err := service.Redeem(ctx, "aaaa", "gate2")
		var used *entity.AlreadyRedeemedError
		if !errors.As(err, &used) {
			t.Fatalf("error = %v, want AlreadyRedeemedError", err)
		}
		if used.RedeemedBy != "gate1" || !used.RedeemedAt.Equal(first.RedeemedAt) {
			t.Errorf("reported (%q, %v), want the winning scan's fields", used.RedeemedBy, used.RedeemedAt)
		}
	})

	t.Run("lost swap is reported with the winner's fields", func(t *testing.T) {
		t.Parallel()
		store := &stolenCommitStore{
			gateStore: newGateStore(sentTicket("ASA-A", "aaaa", "a@example.com")),
			winner:    "gate9",
		}
		service := redemption.New(store, clock.NewFixed(testTime), discardLogger())

		_, err := service.Redeem(ctx, "aaaa", "gate1")
		var used *entity.AlreadyRedeemedError
		if !errors.As(err, &used) {
			t.Fatalf("error = %v, want AlreadyRedeemedError", err)
		}
		if used.RedeemedBy != "gate9" {
			t.Errorf("reported winner = %q, want gate9", used.RedeemedBy)
		}
	})
}

// stolenCommitStore makes every commit lose to a concurrent scan by the
// configured winner.
type stolenCommitStore struct {
	*gateStore
	winner string
}

func (s *stolenCommitStore) CommitRedemption(ctx context.Context, code, _ string, at time.Time) (*entity.Ticket, error) {
	if _, err := s.gateStore.CommitRedemption(ctx, code, s.winner, at); err != nil {
		return nil, err
	}
	return nil, entity.ErrStateConflict
}

func TestRedeemConcurrent(t *testing.T) {
	t.Parallel()
	const workers = 10
	store := newGateStore(sentTicket("ASA-A", "aaaa", "a@example.com"))
	service := redemption.New(store, clock.NewFixed(testTime), discardLogger())

	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.Redeem(context.Background(), "aaaa", "gate"+string(rune('A'+i)))
			results[i] = err
		}(i)
	}
	wg.Wait()

	winner := store.tickets["ASA-A"].RedeemedBy
	success := 0
	for i, err := range results {
		if err == nil {
			success++
			continue
		}
		var used *entity.AlreadyRedeemedError
		if !errors.As(err, &used) {
			t.Errorf("worker %d: unexpected error %v", i, err)
			continue
		}
		if used.RedeemedBy != winner {
			t.Errorf("worker %d observed winner %q, store says %q", i, used.RedeemedBy, winner)
		}
	}
	if success != 1 {
		t.Errorf("successes = %d, want exactly 1", success)
	}
	if store.tickets["ASA-A"].Status != entity.StateUsed {
		t.Errorf("final status = %q, want used", store.tickets["ASA-A"].Status)
	}
}
