// Package alert delivers operational alerts to a Telegram chat.
// It intentionally carries none of the subscriber management a full bot
// would have: one chat, one direction, fire-and-forget.
package alert

import (
	"log/slog"
	"gatepass/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

type Telegram struct {
	api    *tgbotapi.Bot
	chatID int64
	log    *slog.Logger
}

func NewTelegram(apiKey string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		api:    api,
		chatID: chatID,
		log:    log.With(sl.Module("alert.telegram")),
	}, nil
}

// Send posts the message to the ops chat. Delivery failures are logged and
// dropped; alerting must never take down the operation that raised it.
func (t *Telegram) Send(msg string) {
	_, err := t.api.SendMessage(t.chatID, msg, &tgbotapi.SendMessageOpts{
		ParseMode: "Markdown",
	})
	if err != nil {
		t.log.Warn("send alert", sl.Err(err))
	}
}
