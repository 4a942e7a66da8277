package entity

import "time"

// ActivityAction enumerates auditable events.
type ActivityAction string

const (
	ActionTicketIssued    ActivityAction = "ticket_issued"
	ActionTicketValidated ActivityAction = "ticket_validated"
	ActionUserCreated     ActivityAction = "user_created"
	ActionUserDeleted     ActivityAction = "user_deleted"
	ActionLogin           ActivityAction = "login"
)

// ActivityOutcome marks how the audited operation ended.
type ActivityOutcome string

const (
	OutcomeSuccess ActivityOutcome = "success"
	OutcomeFailure ActivityOutcome = "failure"
)

// ActivityDetails carries the optional context of an audit entry.
type ActivityDetails struct {
	TicketCode  string `json:"ticket_id,omitempty" bson:"ticket_id,omitempty"`
	TicketEmail string `json:"ticket_email,omitempty" bson:"ticket_email,omitempty"`
	TargetUser  string `json:"target_user,omitempty" bson:"target_user,omitempty"`
	Error       string `json:"error,omitempty" bson:"error,omitempty"`
}

// Activity is one audit-log entry. The recorder is fire-and-forget: a failure
// to persist an entry never fails the operation being audited.
type Activity struct {
	ID        string          `json:"id" bson:"_id"`
	Actor     string          `json:"actor" bson:"actor"`
	Action    ActivityAction  `json:"action" bson:"action"`
	Details   ActivityDetails `json:"details" bson:"details"`
	Outcome   ActivityOutcome `json:"outcome" bson:"outcome"`
	Timestamp time.Time       `json:"timestamp" bson:"timestamp"`
}

// ActivityFilter narrows admin activity-log queries.
type ActivityFilter struct {
	Actor  string
	Action ActivityAction
	From   time.Time
	To     time.Time
	Page   int64
	Limit  int64
}

// ActivityPage is a paginated slice of the activity log.
type ActivityPage struct {
	Entries    []*Activity `json:"logs"`
	Page       int64       `json:"current_page"`
	TotalPages int64       `json:"total_pages"`
	TotalItems int64       `json:"total_items"`
	PerPage    int64       `json:"items_per_page"`
}
