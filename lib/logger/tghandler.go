package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// AlertSender delivers a formatted message to an operations channel.
// Implemented by internal/alert.Telegram.
type AlertSender interface {
	Send(msg string)
}

// AlertHandler is a slog.Handler that mirrors records at or above minLevel
// to an operations channel after passing them to the wrapped handler.
type AlertHandler struct {
	handler  slog.Handler
	sender   AlertSender
	minLevel slog.Level
	mu       sync.Mutex
	attrs    []slog.Attr
	group    string
}

// WithAlerts wraps a logger so ERROR-level records also reach the sender.
func WithAlerts(log *slog.Logger, sender AlertSender) *slog.Logger {
	return slog.New(NewAlertHandler(log.Handler(), sender, slog.LevelError))
}

func NewAlertHandler(handler slog.Handler, sender AlertSender, minLevel slog.Level) *AlertHandler {
	return &AlertHandler{
		handler:  handler,
		sender:   sender,
		minLevel: minLevel,
		attrs:    make([]slog.Attr, 0),
	}
}

func (h *AlertHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *AlertHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.handler.Handle(ctx, record)
	if err != nil {
		return err
	}

	if record.Level >= h.minLevel && h.sender != nil {
		h.mu.Lock()
		defer h.mu.Unlock()

		var msg string
		if h.group != "" {
			msg = fmt.Sprintf("*%s* `%s.%s`", record.Level.String(), h.group, record.Message)
		} else {
			msg = fmt.Sprintf("*%s* `%s`", record.Level.String(), record.Message)
		}
		for _, attr := range h.attrs {
			msg += fmt.Sprintf("\n%s: %v", attr.Key, attr.Value)
		}
		record.Attrs(func(attr slog.Attr) bool {
			msg += fmt.Sprintf("\n%s: %v", attr.Key, attr.Value)
			return true
		})

		h.sender.Send(msg)
	}

	return nil
}

func (h *AlertHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &AlertHandler{
		handler:  h.handler.WithAttrs(attrs),
		sender:   h.sender,
		minLevel: h.minLevel,
		attrs:    newAttrs,
		group:    h.group,
	}
}

func (h *AlertHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &AlertHandler{
		handler:  h.handler.WithGroup(name),
		sender:   h.sender,
		minLevel: h.minLevel,
		attrs:    h.attrs,
		group:    group,
	}
}
