// Package auth implements the identity provider: username/password login
// issuing signed JWTs, token resolution for the middleware, and user
// administration.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"gatepass/entity"
	"gatepass/lib/clock"
	"gatepass/lib/sl"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Database interface {
	GetUserByID(ctx context.Context, id string) (*entity.User, error)
	GetUserByUsername(ctx context.Context, username string) (*entity.User, error)
	InsertUser(ctx context.Context, user *entity.User) error
	ListActiveUsers(ctx context.Context) ([]*entity.User, error)
	DeactivateUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (int64, error)
}

type Auth struct {
	db     Database
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	log    *slog.Logger
}

func New(db Database, secret string, ttlHours int, clk clock.Clock, log *slog.Logger) *Auth {
	return &Auth{
		db:     db,
		secret: []byte(secret),
		ttl:    time.Duration(ttlHours) * time.Hour,
		clock:  clk,
		log:    log.With(sl.Module("auth")),
	}
}

// Login checks credentials and returns a session with a signed token.
// Unknown user, wrong password and inactive account are indistinguishable to
// the caller.
func (a *Auth) Login(ctx context.Context, username, password string) (*entity.Session, error) {
	user, err := a.db.GetUserByUsername(ctx, username)
	if errors.Is(err, entity.ErrUserNotFound) {
		return nil, entity.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.Active || !user.CheckPassword(password) {
		return nil, entity.ErrInvalidCredentials
	}

	now := a.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	a.log.Info("login", sl.Actor(user.Username))
	return &entity.Session{Token: token, User: user}, nil
}

// UserByToken resolves a bearer token to an active user. Used by the
// authenticate middleware on every request.
func (a *Auth) UserByToken(ctx context.Context, token string) (*entity.User, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, entity.ErrInvalidCredentials
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, entity.ErrInvalidCredentials
	}

	user, err := a.db.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, entity.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, entity.ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a new operator account.
func (a *Auth) Register(ctx context.Context, req *entity.RegisterRequest, createdBy string) (*entity.User, error) {
	user := &entity.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Email:     req.Email,
		Role:      req.Role,
		Active:    true,
		CreatedBy: createdBy,
		CreatedAt: a.clock.Now(),
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := a.db.InsertUser(ctx, user); err != nil {
		return nil, err
	}
	a.log.Info("user created", sl.Actor(createdBy), slog.String("username", user.Username), slog.String("role", string(user.Role)))
	return user, nil
}

// Users lists all active accounts.
func (a *Auth) Users(ctx context.Context) ([]*entity.User, error) {
	return a.db.ListActiveUsers(ctx)
}

// Deactivate soft-deletes an account. A user cannot deactivate themselves.
func (a *Auth) Deactivate(ctx context.Context, id, callerID string) error {
	if id == callerID {
		return entity.ErrSelfDelete
	}
	return a.db.DeactivateUser(ctx, id)
}

// EnsureAdmin bootstraps the configured admin account when the user
// collection is empty. Replaces the manual init script of early deployments.
func (a *Auth) EnsureAdmin(ctx context.Context, username, email, password string) error {
	count, err := a.db.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("no users exist and no admin bootstrap configured")
	}

	_, err = a.Register(ctx, &entity.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     entity.RoleAdmin,
	}, "bootstrap")
	return err
}
