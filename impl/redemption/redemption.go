// Package redemption validates scanned tokens and performs the one-way
// sent -> used transition. Safe to call concurrently from multiple gate
// devices: the store's compare-and-swap lets exactly one scan win.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"gatepass/entity"
	"gatepass/lib/clock"
	"gatepass/lib/sl"
)

type TicketStore interface {
	FindTicketByToken(ctx context.Context, token string) (*entity.Ticket, error)
	CommitRedemption(ctx context.Context, code, actor string, at time.Time) (*entity.Ticket, error)
}

type Service struct {
	store TicketStore
	clock clock.Clock
	log   *slog.Logger
}

func New(store TicketStore, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		store: store,
		clock: clk,
		log:   log.With(sl.Module("redemption")),
	}
}

// Redeem resolves the token and commits the used transition. A ticket that
// was already redeemed is reported with the winning scan's actor and
// timestamp, without mutating anything.
func (s *Service) Redeem(ctx context.Context, token, actor string) (*entity.Redemption, error) {
	if token == "" {
		return nil, entity.ErrInvalidToken
	}

	ticket, err := s.store.FindTicketByToken(ctx, token)
	if err != nil {
		// An unknown token and a malformed-but-unmatched one read the same:
		// entity.ErrTicketNotFound, nothing leaked about which it was.
		return nil, err
	}

	switch ticket.Status {
	case entity.StateUnused, entity.StateClaimed:
		return nil, entity.ErrNotAssigned
	case entity.StateUsed:
		return nil, &entity.AlreadyRedeemedError{RedeemedAt: ticket.RedeemedAt, RedeemedBy: ticket.RedeemedBy}
	}

	redeemed, err := s.store.CommitRedemption(ctx, ticket.Code, actor, s.clock.Now())
	if errors.Is(err, entity.ErrStateConflict) {
		// A concurrent scan won the race; report it exactly like the
		// read-only already-used path, with the winner's fields.
		current, readErr := s.store.FindTicketByToken(ctx, token)
		if readErr != nil {
			return nil, readErr
		}
		if current.Status == entity.StateUsed {
			return nil, &entity.AlreadyRedeemedError{RedeemedAt: current.RedeemedAt, RedeemedBy: current.RedeemedBy}
		}
		// Compensation pulled the ticket back to unused in the race window.
		return nil, entity.ErrNotAssigned
	}
	if err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}

	s.log.Info("ticket redeemed", sl.Ticket(redeemed.Code), sl.Actor(actor))

	return &entity.Redemption{
		Code:       redeemed.Code,
		Email:      redeemed.Email,
		IssuedBy:   redeemed.IssuedBy,
		IssuedAt:   redeemed.IssuedAt,
		RedeemedAt: redeemed.RedeemedAt,
	}, nil
}
