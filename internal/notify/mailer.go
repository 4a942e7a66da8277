// Package notify delivers the ticket artifact by email: an HTML body with
// the rendered PDF ticket attached. Dispatch is the downstream side effect
// the allocation service compensates for, so any rendering or transport
// error is reported, never swallowed.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"gatepass/internal/config"
	"gatepass/lib/sl"

	"github.com/wneessen/go-mail"
)

type Mailer struct {
	client    *mail.Client
	from      string
	fromName  string
	eventName string
	eventDate string
	log       *slog.Logger
}

// transport errors get one retry; a duplicate delivery after an ambiguous
// timeout is acceptable, a silently lost one is not.
const sendAttempts = 2

func NewMailer(conf *config.Config, log *slog.Logger) (*Mailer, error) {
	client, err := mail.NewClient(conf.Smtp.Host,
		mail.WithPort(conf.Smtp.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(conf.Smtp.User),
		mail.WithPassword(conf.Smtp.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{
		client:    client,
		from:      conf.Smtp.From,
		fromName:  conf.Smtp.FromName,
		eventName: conf.Pool.EventName,
		eventDate: conf.Pool.EventDate,
		log:       log.With(sl.Module("notify")),
	}, nil
}

// Dispatch renders and emails the ticket. Synchronous: the caller decides
// about compensation based on the returned error.
func (m *Mailer) Dispatch(ctx context.Context, code, token, email string) error {
	pdf, err := buildTicketPDF(code, token, email, m.eventName, m.eventDate)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err = msg.FromFormat(m.fromName, m.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err = msg.To(email); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(fmt.Sprintf("Your ticket - %s", m.eventName))
	msg.SetBodyString(mail.TypeTextHTML, m.body(code))
	msg.AttachReader(fmt.Sprintf("ticket-%s.pdf", code), bytes.NewReader(pdf))

	var sendErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		sendErr = m.client.DialAndSendWithContext(ctx, msg)
		if sendErr == nil {
			m.log.Debug("ticket dispatched", sl.Ticket(code))
			return nil
		}
		m.log.Warn("send ticket email", sl.Ticket(code), slog.Int("attempt", attempt), sl.Err(sendErr))
	}
	return fmt.Errorf("send ticket email: %w", sendErr)
}

func (m *Mailer) body(code string) string {
	return fmt.Sprintf(`<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;">
  <div style="background:#1a365d;padding:30px;text-align:center;color:white;">
    <h1 style="margin:0;font-size:28px;">%s</h1>
  </div>
  <div style="padding:30px;background:#f7fafc;color:#4a5568;">
    <p>Your ticket is attached as a PDF. Present it at the entrance.</p>
    <p><strong>Date:</strong> %s<br><strong>Ticket ID:</strong> %s</p>
    <p>This ticket is valid for one entry only and is non-transferable.</p>
  </div>
</div>`, m.eventName, m.eventDate, code)
}

// LogNotifier is the local-environment stand-in: it logs the dispatch and
// reports success without sending anything.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(sl.Module("notify"))}
}

func (n *LogNotifier) Dispatch(_ context.Context, code, _, email string) error {
	n.log.Info("dispatch skipped, smtp disabled", sl.Ticket(code), slog.String("email", email))
	return nil
}
