package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"gatepass/entity"
	"gatepass/lib/api/cont"
	"gatepass/lib/api/response"
	"gatepass/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	AssignTicket(ctx context.Context, email string, actor *entity.User) (*entity.Assignment, error)
	RedeemTicket(ctx context.Context, token string, actor *entity.User) (*entity.Redemption, error)
	InitializePool(ctx context.Context) (int, error)
	TicketStats(ctx context.Context, actor *entity.User) (*entity.PoolStats, *entity.ActorStats, error)
	Tickets(ctx context.Context, state entity.TicketState, page, limit int64) (*entity.TicketPage, error)
	SearchTickets(ctx context.Context, email string) ([]*entity.Ticket, error)
}

func Assign(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.ticket")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.AssignRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		actor := cont.GetUser(r.Context())
		logger = logger.With(
			slog.String("email", req.Email),
			sl.Actor(actor.Username),
		)

		assignment, err := handler.AssignTicket(r.Context(), req.Email, actor)
		if err != nil {
			logger.Warn("assign ticket", sl.Err(err))
			renderTicketError(w, r, err)
			return
		}
		logger.Debug("ticket assigned", sl.Ticket(assignment.Code))

		render.JSON(w, r, response.Ok(assignment))
	}
}

func Validate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.ticket")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.RedeemRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		actor := cont.GetUser(r.Context())
		logger = logger.With(
			sl.Secret("qr_code", req.QRCode),
			sl.Actor(actor.Username),
		)

		redeemed, err := handler.RedeemTicket(r.Context(), req.QRCode, actor)
		if err != nil {
			logger.Warn("validate ticket", sl.Err(err))
			renderTicketError(w, r, err)
			return
		}
		logger.Debug("ticket validated", sl.Ticket(redeemed.Code))

		render.JSON(w, r, response.Ok(redeemed))
	}
}

func Initialize(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.ticket")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Actor(cont.GetUser(r.Context()).Username),
		)

		count, err := handler.InitializePool(r.Context())
		if err != nil {
			logger.Error("initialize pool", sl.Err(err))
			renderTicketError(w, r, err)
			return
		}
		logger.Info("pool initialized", slog.Int("count", count))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(map[string]int{"count": count}))
	}
}

func Stats(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.ticket")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor := cont.GetUser(r.Context())
		global, personal, err := handler.TicketStats(r.Context(), actor)
		if err != nil {
			logger.Error("ticket stats", sl.Err(err))
			renderTicketError(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(map[string]interface{}{
			"global":   global,
			"personal": personal,
		}))
	}
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.ticket")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		page, _ := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
		limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
		state := entity.TicketState(r.URL.Query().Get("status"))

		tickets, err := handler.Tickets(r.Context(), state, page, limit)
		if err != nil {
			logger.Error("list tickets", sl.Err(err))
			renderTicketError(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(tickets))
	}
}

func Search(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.ticket")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		email := r.URL.Query().Get("email")
		if email == "" {
			render.Status(r, 400)
			render.JSON(w, r, response.Error("Email parameter is required"))
			return
		}

		tickets, err := handler.SearchTickets(r.Context(), email)
		if err != nil {
			logger.Error("search tickets", sl.Err(err))
			renderTicketError(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(map[string]interface{}{
			"tickets": tickets,
			"count":   len(tickets),
		}))
	}
}

// renderTicketError maps the domain error taxonomy onto the HTTP surface.
// Conflict responses carry enough detail for the operator to explain the
// situation without another lookup.
func renderTicketError(w http.ResponseWriter, r *http.Request, err error) {
	var assigned *entity.AlreadyAssignedError
	var redeemed *entity.AlreadyRedeemedError
	var initialized *entity.AlreadyInitializedError

	switch {
	case errors.As(err, &assigned):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.ErrorData("Email already has a ticket assignment", map[string]string{
			"ticket_id": assigned.Code,
		}))
	case errors.As(err, &redeemed):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.ErrorData("Ticket already used", map[string]interface{}{
			"used_at": redeemed.RedeemedAt,
			"used_by": redeemed.RedeemedBy,
		}))
	case errors.As(err, &initialized):
		render.Status(r, 400)
		render.JSON(w, r, response.ErrorData("Tickets already initialized", map[string]int64{
			"current_count": initialized.CurrentCount,
		}))
	case errors.Is(err, entity.ErrInvalidEmail), errors.Is(err, entity.ErrInvalidToken):
		render.Status(r, 400)
		render.JSON(w, r, response.Error(err.Error()))
	case errors.Is(err, entity.ErrNotAssigned):
		render.Status(r, 400)
		render.JSON(w, r, response.ErrorData("Ticket not assigned to anyone", map[string]entity.TicketState{
			"status": entity.StateUnused,
		}))
	case errors.Is(err, entity.ErrTicketNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("Invalid QR code"))
	case errors.Is(err, entity.ErrPoolExhausted):
		render.Status(r, 400)
		render.JSON(w, r, response.Error("No tickets available"))
	case errors.Is(err, entity.ErrAllocationConflict):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("Could not allocate a ticket, please retry"))
	case errors.Is(err, entity.ErrDispatchFailed):
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, response.Error("Ticket delivery failed, assignment was rolled back"))
	case errors.Is(err, entity.ErrIDSpaceExhausted):
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Ticket identifier generation failed"))
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("Server error"))
	}
}
