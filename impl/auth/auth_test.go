package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"gatepass/entity"
	"gatepass/impl/auth"
	"gatepass/lib/clock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type userStore struct {
	users map[string]*entity.User
}

func newUserStore() *userStore {
	return &userStore{users: make(map[string]*entity.User)}
}

func (s *userStore) GetUserByID(_ context.Context, id string) (*entity.User, error) {
	if u, ok := s.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, entity.ErrUserNotFound
}

func (s *userStore) GetUserByUsername(_ context.Context, username string) (*entity.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, entity.ErrUserNotFound
}

func (s *userStore) InsertUser(_ context.Context, user *entity.User) error {
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return entity.ErrUserExists
		}
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (s *userStore) ListActiveUsers(context.Context) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range s.users {
		if u.Active {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *userStore) DeactivateUser(_ context.Context, id string) error {
	u, ok := s.users[id]
	if !ok {
		return entity.ErrUserNotFound
	}
	u.Active = false
	return nil
}

func (s *userStore) CountUsers(context.Context) (int64, error) {
	return int64(len(s.users)), nil
}

func newAuth(store *userStore) *auth.Auth {
	return auth.New(store, "test-secret", 24, clock.NewSystem(), discardLogger())
}

func registerIssuer(t *testing.T, a *auth.Auth, username, password string) *entity.User {
	t.Helper()
	user, err := a.Register(context.Background(), &entity.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		Role:     entity.RoleIssuer,
	}, "admin")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid credentials produce a resolvable token", func(t *testing.T) {
		t.Parallel()
		store := newUserStore()
		a := newAuth(store)
		registerIssuer(t, a, "scanner", "secret123")

		session, err := a.Login(ctx, "scanner", "secret123")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if session.Token == "" {
			t.Fatal("empty token")
		}
		if session.User.PasswordHash == "" {
			t.Error("session user lost its stored form")
		}

		resolved, err := a.UserByToken(ctx, session.Token)
		if err != nil {
			t.Fatalf("resolve token: %v", err)
		}
		if resolved.Username != "scanner" || resolved.Role != entity.RoleIssuer {
			t.Errorf("resolved (%q, %q), want (scanner, issuer)", resolved.Username, resolved.Role)
		}
	})

	t.Run("wrong password, unknown user and inactive account read the same", func(t *testing.T) {
		t.Parallel()
		store := newUserStore()
		a := newAuth(store)
		user := registerIssuer(t, a, "scanner", "secret123")

		if _, err := a.Login(ctx, "scanner", "wrong"); !errors.Is(err, entity.ErrInvalidCredentials) {
			t.Errorf("wrong password: error = %v, want ErrInvalidCredentials", err)
		}
		if _, err := a.Login(ctx, "nobody", "secret123"); !errors.Is(err, entity.ErrInvalidCredentials) {
			t.Errorf("unknown user: error = %v, want ErrInvalidCredentials", err)
		}

		store.users[user.ID].Active = false
		if _, err := a.Login(ctx, "scanner", "secret123"); !errors.Is(err, entity.ErrInvalidCredentials) {
			t.Errorf("inactive account: error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestUserByToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects a garbage token", func(t *testing.T) {
		t.Parallel()
		a := newAuth(newUserStore())
		if _, err := a.UserByToken(ctx, "not.a.jwt"); !errors.Is(err, entity.ErrInvalidCredentials) {
			t.Fatalf("error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		t.Parallel()
		store := newUserStore()
		a := newAuth(store)
		registerIssuer(t, a, "scanner", "secret123")
		session, err := a.Login(ctx, "scanner", "secret123")
		if err != nil {
			t.Fatalf("login: %v", err)
		}

		other := auth.New(store, "different-secret", 24, clock.NewSystem(), discardLogger())
		if _, err = other.UserByToken(ctx, session.Token); !errors.Is(err, entity.ErrInvalidCredentials) {
			t.Fatalf("error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("rejects a token of a deactivated user", func(t *testing.T) {
		t.Parallel()
		store := newUserStore()
		a := newAuth(store)
		user := registerIssuer(t, a, "scanner", "secret123")
		session, err := a.Login(ctx, "scanner", "secret123")
		if err != nil {
			t.Fatalf("login: %v", err)
		}

		store.users[user.ID].Active = false
		if _, err = a.UserByToken(ctx, session.Token); !errors.Is(err, entity.ErrInvalidCredentials) {
			t.Fatalf("error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newUserStore()
	a := newAuth(store)

	user := registerIssuer(t, a, "scanner", "secret123")
	if user.PasswordHash == "secret123" {
		t.Fatal("password stored in plain text")
	}
	if !store.users[user.ID].CheckPassword("secret123") {
		t.Error("stored hash does not verify the password")
	}

	_, err := a.Register(ctx, &entity.RegisterRequest{
		Username: "scanner",
		Email:    "other@example.com",
		Password: "secret456",
		Role:     entity.RoleIssuer,
	}, "admin")
	if !errors.Is(err, entity.ErrUserExists) {
		t.Fatalf("duplicate username: error = %v, want ErrUserExists", err)
	}
}

func TestDeactivate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newUserStore()
	a := newAuth(store)
	admin := registerIssuer(t, a, "boss", "secret123")
	worker := registerIssuer(t, a, "scanner", "secret123")

	if err := a.Deactivate(ctx, admin.ID, admin.ID); !errors.Is(err, entity.ErrSelfDelete) {
		t.Fatalf("self delete: error = %v, want ErrSelfDelete", err)
	}
	if err := a.Deactivate(ctx, worker.ID, admin.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if store.users[worker.ID].Active {
		t.Error("user still active")
	}
	if err := a.Deactivate(ctx, "missing", admin.ID); !errors.Is(err, entity.ErrUserNotFound) {
		t.Fatalf("missing user: error = %v, want ErrUserNotFound", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("bootstraps the first account as admin", func(t *testing.T) {
		t.Parallel()
		store := newUserStore()
		a := newAuth(store)

		if err := a.EnsureAdmin(ctx, "root", "root@example.com", "secret123"); err != nil {
			t.Fatalf("ensure admin: %v", err)
		}
		session, err := a.Login(ctx, "root", "secret123")
		if err != nil {
			t.Fatalf("login as bootstrap admin: %v", err)
		}
		if !session.User.IsAdmin() {
			t.Errorf("bootstrap role = %q, want admin", session.User.Role)
		}
	})

	t.Run("does nothing when users exist", func(t *testing.T) {
		t.Parallel()
		store := newUserStore()
		a := newAuth(store)
		registerIssuer(t, a, "scanner", "secret123")

		if err := a.EnsureAdmin(ctx, "root", "root@example.com", "secret123"); err != nil {
			t.Fatalf("ensure admin: %v", err)
		}
		if len(store.users) != 1 {
			t.Errorf("users = %d, want 1", len(store.users))
		}
	})

	t.Run("fails on an empty store without bootstrap config", func(t *testing.T) {
		t.Parallel()
		a := newAuth(newUserStore())
		if err := a.EnsureAdmin(ctx, "", "", ""); err == nil {
			t.Fatal("expected an error, got nil")
		}
	})
}
