// Package allocation claims exactly one unused ticket per email address and
// dispatches it, compensating the state change when dispatch fails.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"gatepass/entity"
	"gatepass/lib/clock"
	"gatepass/lib/sl"
	"gatepass/lib/validate"
)

// TicketStore is the slice of the store the allocation path needs. Claim and
// the Commit/Revert transitions are atomic compare-and-swap operations; the
// service never reads a state and writes it back.
type TicketStore interface {
	FindTicketByEmail(ctx context.Context, email string, states []entity.TicketState) (*entity.Ticket, error)
	ClaimOneUnused(ctx context.Context) (*entity.Ticket, error)
	CommitAssignment(ctx context.Context, code, email, actor string, at time.Time) (*entity.Ticket, error)
	RevertClaim(ctx context.Context, code string) (*entity.Ticket, error)
	RevertAssignment(ctx context.Context, code string) (*entity.Ticket, error)
}

// Notifier delivers the ticket artifact. The call is synchronous: the
// service awaits the outcome before deciding whether to compensate.
type Notifier interface {
	Dispatch(ctx context.Context, code, token, email string) error
}

type Service struct {
	store    TicketStore
	notifier Notifier
	clock    clock.Clock
	log      *slog.Logger
}

// maxClaimAttempts bounds the claim/commit retry loop. A lost commit means
// another writer touched the claimed record, which claim atomicity should
// already rule out; the bound keeps the contract honest regardless.
const maxClaimAttempts = 3

func New(store TicketStore, notifier Notifier, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		clock:    clk,
		log:      log.With(sl.Module("allocation")),
	}
}

// Assign claims one unused ticket for the email, commits the assignment and
// dispatches the ticket. On dispatch failure the assignment is reverted and
// the dispatch error is returned wrapped in entity.ErrDispatchFailed.
func (s *Service) Assign(ctx context.Context, email, actor string) (*entity.Assignment, error) {
	email = entity.NormalizeEmail(email)
	if err := validate.Email(email); err != nil {
		return nil, entity.ErrInvalidEmail
	}

	existing, err := s.store.FindTicketByEmail(ctx, email, []entity.TicketState{entity.StateSent, entity.StateUsed})
	if err != nil {
		return nil, fmt.Errorf("check existing assignment: %w", err)
	}
	if existing != nil {
		return nil, &entity.AlreadyAssignedError{Code: existing.Code}
	}

	ticket, err := s.claimAndCommit(ctx, email, actor)
	if err != nil {
		return nil, err
	}

	log := s.log.With(sl.Ticket(ticket.Code), sl.Actor(actor))
	if err = s.notifier.Dispatch(ctx, ticket.Code, ticket.Token, email); err != nil {
		log.Warn("dispatch failed, reverting assignment", sl.Err(err))
		if _, revertErr := s.store.RevertAssignment(ctx, ticket.Code); revertErr != nil {
			// The ticket left the sent state while we were compensating.
			// The caller still learns about the dispatch failure; the
			// anomaly goes to the ops channel via the ERROR record.
			log.Error("compensation failed after dispatch error", sl.Err(revertErr))
		} else {
			log.Info("assignment reverted, ticket back in pool")
		}
		return nil, fmt.Errorf("%w: %s", entity.ErrDispatchFailed, err)
	}
	log.Info("ticket assigned", slog.String("email", email))

	return &entity.Assignment{
		Code:     ticket.Code,
		Email:    ticket.Email,
		IssuedAt: ticket.IssuedAt,
	}, nil
}

// claimAndCommit atomically reserves an unused ticket and promotes the claim
// to a committed assignment, retrying a bounded number of times when the
// commit swap misses.
func (s *Service) claimAndCommit(ctx context.Context, email, actor string) (*entity.Ticket, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		claimed, err := s.store.ClaimOneUnused(ctx)
		if err != nil {
			return nil, fmt.Errorf("claim ticket: %w", err)
		}
		if claimed == nil {
			return nil, entity.ErrPoolExhausted
		}

		ticket, err := s.store.CommitAssignment(ctx, claimed.Code, email, actor, s.clock.Now())
		if err == nil {
			return ticket, nil
		}
		if errors.Is(err, entity.ErrDuplicateKey) {
			// A concurrent allocation for the same email won; the unique
			// email index caught what the read check raced past.
			if _, revertErr := s.store.RevertClaim(ctx, claimed.Code); revertErr != nil {
				s.log.Warn("revert claim", sl.Ticket(claimed.Code), sl.Err(revertErr))
			}
			existing, findErr := s.store.FindTicketByEmail(ctx, email, []entity.TicketState{entity.StateSent, entity.StateUsed})
			if findErr == nil && existing != nil {
				return nil, &entity.AlreadyAssignedError{Code: existing.Code}
			}
			return nil, entity.ErrAllocationConflict
		}
		if !errors.Is(err, entity.ErrStateConflict) {
			return nil, fmt.Errorf("commit assignment: %w", err)
		}

		// Lost the record between claim and commit. Put the claim back if
		// it is still ours and take a fresh ticket.
		if _, revertErr := s.store.RevertClaim(ctx, claimed.Code); revertErr != nil && !errors.Is(revertErr, entity.ErrStateConflict) {
			s.log.Warn("revert claim", sl.Ticket(claimed.Code), sl.Err(revertErr))
		}
	}
	return nil, entity.ErrAllocationConflict
}
