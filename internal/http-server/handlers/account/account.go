package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"gatepass/entity"
	"gatepass/lib/api/cont"
	"gatepass/lib/api/response"
	"gatepass/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	Login(ctx context.Context, username, password string) (*entity.Session, error)
	RegisterUser(ctx context.Context, req *entity.RegisterRequest, actor *entity.User) (*entity.User, error)
	Users(ctx context.Context) ([]*entity.User, error)
	DeactivateUser(ctx context.Context, id string, actor *entity.User) error
}

func Login(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.account")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.LoginRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(slog.String("username", req.Username))

		session, err := handler.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			logger.Warn("login", sl.Err(err))
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Invalid credentials or account inactive"))
			return
		}
		logger.Debug("login ok")

		render.JSON(w, r, response.Ok(session))
	}
}

func Register(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.account")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.RegisterRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		actor := cont.GetUser(r.Context())
		logger = logger.With(
			slog.String("username", req.Username),
			sl.Actor(actor.Username),
		)

		user, err := handler.RegisterUser(r.Context(), &req, actor)
		if err != nil {
			logger.Warn("register user", sl.Err(err))
			if errors.Is(err, entity.ErrUserExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error("User with this username or email already exists"))
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Server error during registration"))
			return
		}
		logger.Debug("user created")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(user))
	}
}

func Profile(_ *slog.Logger, _ Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, response.Ok(cont.GetUser(r.Context())))
	}
}

func Users(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.account")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		users, err := handler.Users(r.Context())
		if err != nil {
			logger.Error("list users", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Server error fetching users"))
			return
		}

		render.JSON(w, r, response.Ok(map[string]interface{}{
			"users": users,
			"count": len(users),
		}))
	}
}

func Deactivate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.account")
		id := chi.URLParam(r, "id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("user_id", id),
		)

		actor := cont.GetUser(r.Context())
		err := handler.DeactivateUser(r.Context(), id, actor)
		if err != nil {
			logger.Warn("deactivate user", sl.Err(err))
			switch {
			case errors.Is(err, entity.ErrSelfDelete):
				render.Status(r, 400)
				render.JSON(w, r, response.Error("Cannot delete your own account"))
			case errors.Is(err, entity.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("User not found"))
			default:
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("Server error deleting user"))
			}
			return
		}
		logger.Debug("user deactivated")

		render.JSON(w, r, response.Ok(nil))
	}
}
