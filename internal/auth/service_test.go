package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/repo"
)

type memStore struct {
	users  map[string]repo.User
	tokens map[string]repo.RefreshToken
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]repo.User), tokens: make(map[string]repo.RefreshToken)}
}

func (m *memStore) Get(_ context.Context, id pgtype.UUID) (repo.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return repo.User{}, pgx.ErrNoRows
}

func (m *memStore) GetByEmail(_ context.Context, email string) (repo.User, error) {
	u, ok := m.users[email]
	if !ok {
		return repo.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memStore) Create(_ context.Context, u repo.User) (repo.User, error) {
	u.ID = repo.NewUUID()
	u.IsActive = true
	u.CreatedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	m.users[u.Email] = u
	return u, nil
}

func (m *memStore) CreateRefreshToken(_ context.Context, userID pgtype.UUID, tokenHash string, expiresAt pgtype.Timestamptz) error {
	m.tokens[tokenHash] = repo.RefreshToken{ID: repo.NewUUID(), UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (m *memStore) GetRefreshToken(_ context.Context, tokenHash string) (repo.RefreshToken, error) {
	t, ok := m.tokens[tokenHash]
	if !ok {
		return repo.RefreshToken{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	t, ok := m.tokens[tokenHash]
	if !ok {
		return nil
	}
	t.RevokedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	m.tokens[tokenHash] = t
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := NewService(Config{Store: store, Secret: "test-secret-test-secret"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func seedCashier(t *testing.T, store *memStore) repo.User {
	t.Helper()
	hash, err := argon2id.CreateHash("correct horse", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := store.Create(context.Background(), repo.User{
		Name:         "Dana",
		Email:        "dana@example.com",
		PasswordHash: hash,
		Roles:        []string{RoleCashier},
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, store := newTestService(t)
	seedCashier(t, store)

	result, err := svc.Login(context.Background(), "Dana@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	claims, err := svc.ParseAccessToken(result.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Fatalf("subject %q does not match user %q", claims.UserID, result.User.ID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != RoleCashier {
		t.Fatalf("unexpected roles claim: %v", claims.Roles)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc, store := newTestService(t)
	seedCashier(t, store)

	_, err := svc.Login(context.Background(), "dana@example.com", "wrong")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	svc, store := newTestService(t)
	u := seedCashier(t, store)
	u.IsActive = false
	store.users[u.Email] = u

	_, err := svc.Login(context.Background(), "dana@example.com", "correct horse")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, store := newTestService(t)
	seedCashier(t, store)

	login, err := svc.Login(context.Background(), "dana@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	// the consumed token is revoked and cannot be replayed
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatal("expected replayed refresh token to be rejected")
	}
	if _, err := svc.Refresh(context.Background(), refreshed.RefreshToken); err != nil {
		t.Fatalf("rotated token should work: %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc, store := newTestService(t)
	seedCashier(t, store)

	login, err := svc.Login(context.Background(), "dana@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatal("expected revoked token to be rejected")
	}
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	svc, store := newTestService(t)
	seedCashier(t, store)

	base := time.Now()
	svc.WithNow(func() time.Time { return base.Add(-time.Hour) })
	login, err := svc.Login(context.Background(), "dana@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	svc.WithNow(func() time.Time { return base })
	if _, err := svc.ParseAccessToken(login.AccessToken); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestRegisterValidatesRoles(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Register(context.Background(), "Kim", "kim@example.com", "longenough", []string{"owner"}); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
	user, err := svc.Register(context.Background(), "Kim", "kim@example.com", "longenough", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(user.Roles) != 1 || user.Roles[0] != RoleCashier {
		t.Fatalf("expected default cashier role, got %v", user.Roles)
	}
}
