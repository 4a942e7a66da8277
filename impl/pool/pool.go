// Package pool creates the fixed ticket pool and serves the reporting reads:
// stats, listing and search.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"gatepass/entity"
	"gatepass/lib/clock"
	"gatepass/lib/sl"
)

type TicketStore interface {
	CountTickets(ctx context.Context) (int64, error)
	InsertTickets(ctx context.Context, tickets []*entity.Ticket) error
	DeleteAllTickets(ctx context.Context) error
	CountTicketsInState(ctx context.Context, state entity.TicketState) (int64, error)
	CountIssuedBy(ctx context.Context, actor string) (int64, error)
	CountRedeemedBy(ctx context.Context, actor string) (int64, error)
	ListTickets(ctx context.Context, state entity.TicketState, page, limit int64) (*entity.TicketPage, error)
	SearchTicketsByEmail(ctx context.Context, email string) ([]*entity.Ticket, error)
}

// Generator produces candidate identifiers. The store's unique indexes have
// the final say; a collision there triggers regeneration, not trust.
type Generator interface {
	Code() (string, error)
	Token() (string, error)
}

type Service struct {
	store TicketStore
	gen   Generator
	clock clock.Clock
	log   *slog.Logger
	size  int
}

// maxInsertAttempts bounds regeneration after duplicate-key collisions.
const maxInsertAttempts = 3

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func New(store TicketStore, gen Generator, clk clock.Clock, size int, log *slog.Logger) *Service {
	return &Service{
		store: store,
		gen:   gen,
		clock: clk,
		size:  size,
		log:   log.With(sl.Module("pool")),
	}
}

// Initialize bulk-creates the pool exactly once. A non-empty store fails with
// AlreadyInitializedError and changes nothing, so a second call is a safe
// no-op rather than a corrupting double insert.
func (s *Service) Initialize(ctx context.Context) (int, error) {
	count, err := s.store.CountTickets(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	if count > 0 {
		return 0, &entity.AlreadyInitializedError{CurrentCount: count}
	}

	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		tickets, err := s.generateBatch()
		if err != nil {
			return 0, err
		}
		err = s.store.InsertTickets(ctx, tickets)
		if err == nil {
			s.log.Info("pool initialized", slog.Int("size", s.size))
			return s.size, nil
		}
		if !errors.Is(err, entity.ErrDuplicateKey) {
			return 0, fmt.Errorf("insert tickets: %w", err)
		}

		// Identifier collision. The batch may be partially inserted; the
		// store is known-empty at this point, so wipe and regenerate.
		s.log.Warn("duplicate identifiers in batch, regenerating", slog.Int("attempt", attempt))
		if err = s.store.DeleteAllTickets(ctx); err != nil {
			return 0, fmt.Errorf("clear partial batch: %w", err)
		}
	}
	return 0, entity.ErrIDSpaceExhausted
}

func (s *Service) generateBatch() ([]*entity.Ticket, error) {
	now := s.clock.Now()
	tickets := make([]*entity.Ticket, 0, s.size)
	for i := 0; i < s.size; i++ {
		code, err := s.gen.Code()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		token, err := s.gen.Token()
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}
		tickets = append(tickets, &entity.Ticket{
			Code:      code,
			Token:     token,
			Status:    entity.StateUnused,
			CreatedAt: now,
		})
	}
	return tickets, nil
}

// Stats returns the global pool counters plus the caller's personal slice:
// assignments they issued and tickets they scanned.
func (s *Service) Stats(ctx context.Context, actor string) (*entity.PoolStats, *entity.ActorStats, error) {
	total, err := s.store.CountTickets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("count tickets: %w", err)
	}
	sent, err := s.store.CountTicketsInState(ctx, entity.StateSent)
	if err != nil {
		return nil, nil, fmt.Errorf("count sent: %w", err)
	}
	used, err := s.store.CountTicketsInState(ctx, entity.StateUsed)
	if err != nil {
		return nil, nil, fmt.Errorf("count used: %w", err)
	}
	remaining, err := s.store.CountTicketsInState(ctx, entity.StateUnused)
	if err != nil {
		return nil, nil, fmt.Errorf("count unused: %w", err)
	}

	issued, err := s.store.CountIssuedBy(ctx, actor)
	if err != nil {
		return nil, nil, fmt.Errorf("count issued by actor: %w", err)
	}
	scanned, err := s.store.CountRedeemedBy(ctx, actor)
	if err != nil {
		return nil, nil, fmt.Errorf("count redeemed by actor: %w", err)
	}

	global := &entity.PoolStats{
		Total:     total,
		Sent:      sent,
		Used:      used,
		Remaining: remaining,
	}
	personal := &entity.ActorStats{
		TicketsIssued:  issued,
		TicketsScanned: scanned,
	}
	return global, personal, nil
}

// List returns a page of tickets, optionally filtered by state.
func (s *Service) List(ctx context.Context, state entity.TicketState, page, limit int64) (*entity.TicketPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	switch state {
	case "", entity.StateUnused, entity.StateSent, entity.StateUsed:
	default:
		state = ""
	}
	return s.store.ListTickets(ctx, state, page, limit)
}

// Search finds assigned tickets by email substring.
func (s *Service) Search(ctx context.Context, email string) ([]*entity.Ticket, error) {
	email = entity.NormalizeEmail(email)
	if email == "" {
		return nil, entity.ErrInvalidEmail
	}
	return s.store.SearchTicketsByEmail(ctx, email)
}
