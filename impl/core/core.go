// Package core is the facade the HTTP layer talks to. It delegates to the
// lifecycle services and feeds the audit recorder on the way through.
package core

import (
	"context"
	"log/slog"
	"gatepass/entity"
	"gatepass/impl/activity"
	"gatepass/impl/allocation"
	"gatepass/impl/auth"
	"gatepass/impl/pool"
	"gatepass/impl/redemption"
	"gatepass/lib/sl"
)

type Core struct {
	alloc    *allocation.Service
	redeem   *redemption.Service
	pool     *pool.Service
	auth     *auth.Auth
	recorder *activity.Recorder
	log      *slog.Logger
}

func New(alloc *allocation.Service, redeem *redemption.Service, poolSvc *pool.Service, authSvc *auth.Auth, recorder *activity.Recorder, log *slog.Logger) *Core {
	return &Core{
		alloc:    alloc,
		redeem:   redeem,
		pool:     poolSvc,
		auth:     authSvc,
		recorder: recorder,
		log:      log.With(sl.Module("core")),
	}
}

func (c *Core) AuthenticateByToken(ctx context.Context, token string) (*entity.User, error) {
	return c.auth.UserByToken(ctx, token)
}

func (c *Core) Login(ctx context.Context, username, password string) (*entity.Session, error) {
	session, err := c.auth.Login(ctx, username, password)
	if err != nil {
		c.recorder.Record(ctx, username, entity.ActionLogin, entity.ActivityDetails{Error: err.Error()}, entity.OutcomeFailure)
		return nil, err
	}
	c.recorder.Record(ctx, session.User.Username, entity.ActionLogin, entity.ActivityDetails{}, entity.OutcomeSuccess)
	return session, nil
}

func (c *Core) RegisterUser(ctx context.Context, req *entity.RegisterRequest, actor *entity.User) (*entity.User, error) {
	user, err := c.auth.Register(ctx, req, actor.Username)
	if err != nil {
		c.recorder.Record(ctx, actor.Username, entity.ActionUserCreated, entity.ActivityDetails{TargetUser: req.Username, Error: err.Error()}, entity.OutcomeFailure)
		return nil, err
	}
	c.recorder.Record(ctx, actor.Username, entity.ActionUserCreated, entity.ActivityDetails{TargetUser: user.Username}, entity.OutcomeSuccess)
	return user, nil
}

func (c *Core) Users(ctx context.Context) ([]*entity.User, error) {
	return c.auth.Users(ctx)
}

func (c *Core) DeactivateUser(ctx context.Context, id string, actor *entity.User) error {
	err := c.auth.Deactivate(ctx, id, actor.ID)
	if err != nil {
		c.recorder.Record(ctx, actor.Username, entity.ActionUserDeleted, entity.ActivityDetails{TargetUser: id, Error: err.Error()}, entity.OutcomeFailure)
		return err
	}
	c.recorder.Record(ctx, actor.Username, entity.ActionUserDeleted, entity.ActivityDetails{TargetUser: id}, entity.OutcomeSuccess)
	return nil
}

func (c *Core) AssignTicket(ctx context.Context, email string, actor *entity.User) (*entity.Assignment, error) {
	assignment, err := c.alloc.Assign(ctx, email, actor.Username)
	if err != nil {
		c.recorder.Record(ctx, actor.Username, entity.ActionTicketIssued, entity.ActivityDetails{TicketEmail: email, Error: err.Error()}, entity.OutcomeFailure)
		return nil, err
	}
	c.recorder.Record(ctx, actor.Username, entity.ActionTicketIssued, entity.ActivityDetails{TicketCode: assignment.Code, TicketEmail: assignment.Email}, entity.OutcomeSuccess)
	return assignment, nil
}

func (c *Core) RedeemTicket(ctx context.Context, token string, actor *entity.User) (*entity.Redemption, error) {
	redeemed, err := c.redeem.Redeem(ctx, token, actor.Username)
	if err != nil {
		c.recorder.Record(ctx, actor.Username, entity.ActionTicketValidated, entity.ActivityDetails{Error: err.Error()}, entity.OutcomeFailure)
		return nil, err
	}
	c.recorder.Record(ctx, actor.Username, entity.ActionTicketValidated, entity.ActivityDetails{TicketCode: redeemed.Code, TicketEmail: redeemed.Email}, entity.OutcomeSuccess)
	return redeemed, nil
}

func (c *Core) InitializePool(ctx context.Context) (int, error) {
	return c.pool.Initialize(ctx)
}

func (c *Core) TicketStats(ctx context.Context, actor *entity.User) (*entity.PoolStats, *entity.ActorStats, error) {
	return c.pool.Stats(ctx, actor.Username)
}

func (c *Core) Tickets(ctx context.Context, state entity.TicketState, page, limit int64) (*entity.TicketPage, error) {
	return c.pool.List(ctx, state, page, limit)
}

func (c *Core) SearchTickets(ctx context.Context, email string) ([]*entity.Ticket, error) {
	return c.pool.Search(ctx, email)
}

func (c *Core) ActivityLogs(ctx context.Context, filter entity.ActivityFilter) (*entity.ActivityPage, error) {
	return c.recorder.Logs(ctx, filter)
}
