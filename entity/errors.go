package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTicketNotFound means no ticket matches the given code or token.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrNotAssigned means the scanned ticket exists but was never issued.
	ErrNotAssigned = errors.New("ticket not assigned to anyone")
	// ErrPoolExhausted means no unused ticket is left to claim.
	ErrPoolExhausted = errors.New("no tickets available")
	// ErrAllocationConflict means the claim/commit loop lost every retry.
	ErrAllocationConflict = errors.New("allocation conflict")
	// ErrStateConflict is the store's compare-and-swap failure: the record
	// exists but is no longer in the expected state.
	ErrStateConflict = errors.New("ticket state conflict")
	// ErrDuplicateKey is returned by the store when a code or token collides
	// with an existing record.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrIDSpaceExhausted means identifier generation collided past the retry
	// budget during pool initialization. A configuration fault, not capacity.
	ErrIDSpaceExhausted = errors.New("identifier generation exhausted retry budget")
	// ErrInvalidEmail means the address failed syntactic validation.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrInvalidToken means the scanned payload is empty or malformed.
	ErrInvalidToken = errors.New("invalid qr code")
	// ErrDispatchFailed wraps a notifier failure after compensation ran.
	ErrDispatchFailed = errors.New("ticket delivery failed")
	// ErrSelfDelete guards against deactivating one's own account.
	ErrSelfDelete = errors.New("cannot delete your own account")
	// ErrUserNotFound means no user record matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers bad username/password and inactive accounts.
	ErrInvalidCredentials = errors.New("invalid credentials or account inactive")
	// ErrUserExists means a user with the same username or email already exists.
	ErrUserExists = errors.New("user with this username or email already exists")
)

// AlreadyAssignedError carries the code of the existing assignment so the
// caller can explain the rejection without a second lookup.
type AlreadyAssignedError struct {
	Code string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("email already has a ticket assignment: %s", e.Code)
}

// AlreadyRedeemedError carries the winning redemption's actor and timestamp.
// Every loser of a concurrent redemption race observes the same values.
type AlreadyRedeemedError struct {
	RedeemedAt time.Time
	RedeemedBy string
}

func (e *AlreadyRedeemedError) Error() string {
	return fmt.Sprintf("ticket already used at %s by %s", e.RedeemedAt.Format(time.RFC3339), e.RedeemedBy)
}

// AlreadyInitializedError reports the existing pool size when initialization
// is attempted against a non-empty store.
type AlreadyInitializedError struct {
	CurrentCount int64
}

func (e *AlreadyInitializedError) Error() string {
	return fmt.Sprintf("tickets already initialized: %d in pool", e.CurrentCount)
}
