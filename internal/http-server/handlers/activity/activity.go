package activity

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"gatepass/entity"
	"gatepass/lib/api/response"
	"gatepass/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	ActivityLogs(ctx context.Context, filter entity.ActivityFilter) (*entity.ActivityPage, error)
}

func Logs(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.activity")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		q := r.URL.Query()
		page, _ := strconv.ParseInt(q.Get("page"), 10, 64)
		limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)
		filter := entity.ActivityFilter{
			Actor:  q.Get("actor"),
			Action: entity.ActivityAction(q.Get("action")),
			Page:   page,
			Limit:  limit,
		}
		if v := q.Get("start_date"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				filter.From = t
			}
		}
		if v := q.Get("end_date"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				filter.To = t
			}
		}

		logs, err := handler.ActivityLogs(r.Context(), filter)
		if err != nil {
			logger.Error("activity logs", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Server error fetching activity logs"))
			return
		}

		render.JSON(w, r, response.Ok(logs))
	}
}
