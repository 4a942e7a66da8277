package entity

import (
	"net/http"
	"strings"
	"time"
	"gatepass/lib/validate"
)

// TicketState is the lifecycle state of a ticket.
// Transitions: unused -> sent (allocation), sent -> used (redemption),
// sent -> unused (compensation after a failed dispatch).
// StateClaimed is a transient marker owned by the store's claim operation;
// a ticket is never left in it across a request boundary.
type TicketState string

const (
	StateUnused  TicketState = "unused"
	StateClaimed TicketState = "claimed"
	StateSent    TicketState = "sent"
	StateUsed    TicketState = "used"
)

// Ticket is the single persisted entity of the pool.
// Code is the human-readable identifier printed on the ticket; Token is the
// redemption capability embedded in the QR payload and never returned by the
// assignment API. Assignment and redemption fields are unset while the ticket
// is unused.
type Ticket struct {
	Code       string      `json:"ticket_id" bson:"code"`
	Token      string      `json:"-" bson:"token"`
	Status     TicketState `json:"status" bson:"status"`
	Email      string      `json:"email,omitempty" bson:"email,omitempty"`
	IssuedBy   string      `json:"issued_by,omitempty" bson:"issued_by,omitempty"`
	IssuedAt   time.Time   `json:"issued_at,omitempty" bson:"issued_at,omitempty"`
	RedeemedBy string      `json:"used_by,omitempty" bson:"used_by,omitempty"`
	RedeemedAt time.Time   `json:"used_at,omitempty" bson:"used_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at" bson:"created_at"`
}

func (t *Ticket) IsAssigned() bool {
	return t.Status == StateSent || t.Status == StateUsed
}

// AssignRequest is the body of POST /tickets/assign.
type AssignRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (a *AssignRequest) Bind(_ *http.Request) error {
	a.Email = NormalizeEmail(a.Email)
	return validate.Struct(a)
}

// RedeemRequest is the body of POST /tickets/validate; QRCode carries the
// scanned redemption token.
type RedeemRequest struct {
	QRCode string `json:"qr_code" validate:"required,len=32,hexadecimal"`
}

func (v *RedeemRequest) Bind(_ *http.Request) error {
	v.QRCode = strings.ToLower(strings.TrimSpace(v.QRCode))
	return validate.Struct(v)
}

// NormalizeEmail case-folds and trims an address so the one-ticket-per-email
// rule compares like with like.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Assignment is the public view returned by a successful assign call.
// The token deliberately never appears here; it only travels inside the
// dispatched ticket artifact.
type Assignment struct {
	Code     string    `json:"ticket_id"`
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}

// Redemption is the public view returned by a successful validate call.
type Redemption struct {
	Code       string    `json:"ticket_id"`
	Email      string    `json:"email"`
	IssuedBy   string    `json:"issued_by,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	RedeemedAt time.Time `json:"used_at"`
}

// PoolStats aggregates ticket counts for the stats endpoint.
type PoolStats struct {
	Total     int64 `json:"total"`
	Sent      int64 `json:"sent"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
}

// ActorStats is the personal slice of the stats endpoint: tickets the caller
// issued and tickets the caller scanned at the gate.
type ActorStats struct {
	TicketsIssued  int64 `json:"tickets_issued"`
	TicketsScanned int64 `json:"tickets_scanned"`
}

// TicketPage is a paginated ticket listing for the admin surface.
type TicketPage struct {
	Tickets    []*Ticket `json:"tickets"`
	Page       int64     `json:"current_page"`
	TotalPages int64     `json:"total_pages"`
	TotalItems int64     `json:"total_items"`
	PerPage    int64     `json:"items_per_page"`
}
