package entity

import (
	"net/http"
	"strings"
	"time"
	"gatepass/lib/validate"

	"golang.org/x/crypto/bcrypt"
)

// Role controls what an authenticated user may do.
// Issuers assign and redeem tickets; admins additionally initialize the pool,
// browse tickets, manage users and read the activity log.
type Role string

const (
	RoleIssuer Role = "issuer"
	RoleAdmin  Role = "admin"
)

// User is an operator account. PasswordHash holds a bcrypt hash and is never
// serialized to JSON.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         Role      `json:"role" bson:"role"`
	Active       bool      `json:"-" bson:"active"`
	CreatedBy    string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanIssue reports whether the user may assign and redeem tickets.
func (u *User) CanIssue() bool {
	return u.Role == RoleIssuer || u.Role == RoleAdmin
}

// SetPassword hashes and stores the given plain-text password.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares a plain-text password against the stored hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (l *LoginRequest) Bind(_ *http.Request) error {
	l.Username = strings.ToLower(strings.TrimSpace(l.Username))
	return validate.Struct(l)
}

// RegisterRequest is the body of POST /auth/register. Role defaults to issuer.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     Role   `json:"role" validate:"omitempty,oneof=issuer admin"`
}

func (r *RegisterRequest) Bind(_ *http.Request) error {
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
	r.Email = NormalizeEmail(r.Email)
	if r.Role == "" {
		r.Role = RoleIssuer
	}
	return validate.Struct(r)
}

// Session is the login response payload.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
