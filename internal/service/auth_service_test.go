package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Narimm/OpenVPMS-sub018/internal/config"
	"github.com/Narimm/OpenVPMS-sub018/internal/dto"
	"github.com/Narimm/OpenVPMS-sub018/internal/model"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
)

// ── In-memory Repository Stub ────────────────────────────────────────────────

type stubUserRepo struct {
	users map[string]*model.User
}

var _ repository.UserRepository = (*stubUserRepo)(nil)

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*model.User)}
}

func (r *stubUserRepo) Create(_ context.Context, u *model.User) error {
	u.ID = uuid.New()
	r.users[u.Username] = u
	return nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := r.users[username]
	if !ok || !u.Active {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *stubUserRepo) List(_ context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, u *model.User) error {
	r.users[u.Username] = u
	return nil
}

func (r *stubUserRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	for _, u := range r.users {
		if u.ID == id {
			u.Active = false
			return nil
		}
	}
	return errors.New("not found")
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		JWTExpirationHours: 8,
		JWTRefreshHours:    24,
	}
}

func seedUser(t *testing.T, repo *stubUserRepo, username, password, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		ID:           uuid.New(),
		Username:     username,
		FullName:     "Test User",
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	repo.users[username] = u
	return u
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestLoginSuccess(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "alice", "s3cret-pw", "importer")
	svc := NewAuthService(repo, testConfig())

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "s3cret-pw"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 8*3600, resp.ExpiresIn)
	assert.Equal(t, "importer", resp.User.Role)

	// Token must carry the claims the middleware depends on.
	token, err := jwt.Parse(resp.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "alice", claims["username"])
	assert.Equal(t, "importer", claims["role"])
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "alice", "s3cret-pw", "viewer")
	svc := NewAuthService(repo, testConfig())

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "wrong"})
	assert.EqualError(t, err, "invalid credentials")
}

func TestLoginUnknownUser(t *testing.T) {
	svc := NewAuthService(newStubUserRepo(), testConfig())

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "ghost", Password: "pw"})
	assert.EqualError(t, err, "invalid credentials")
}

func TestLoginInactiveUser(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUser(t, repo, "alice", "s3cret-pw", "viewer")
	u.Active = false
	svc := NewAuthService(repo, testConfig())

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "s3cret-pw"})
	assert.Error(t, err)
}

func TestRefreshIssuesNewTokens(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "alice", "s3cret-pw", "admin")
	svc := NewAuthService(repo, testConfig())

	login, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "s3cret-pw"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, "alice", refreshed.User.Username)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc := NewAuthService(newStubUserRepo(), testConfig())

	_, err := svc.Refresh(context.Background(), "not-a-token")
	assert.Error(t, err)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUser(t, repo, "alice", "s3cret-pw", "viewer")
	svc := NewAuthService(repo, testConfig())

	claims := jwt.MapClaims{
		"user_id":  u.ID.String(),
		"username": u.Username,
		"role":     u.Role,
		"exp":      time.Now().Add(-time.Hour).Unix(),
		"iat":      time.Now().Add(-2 * time.Hour).Unix(),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), expired)
	assert.Error(t, err)
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, testConfig())

	resp, err := svc.CreateUser(context.Background(), dto.CreateUserRequest{
		Username: "bob",
		FullName: "Bob Builder",
		Password: "longenough",
		Role:     "viewer",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.Username)
	assert.True(t, resp.Active)

	stored := repo.users["bob"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "longenough", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("longenough")))
}

func TestUpdateUserChangesRole(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUser(t, repo, "alice", "s3cret-pw", "viewer")
	svc := NewAuthService(repo, testConfig())

	resp, err := svc.UpdateUser(context.Background(), u.ID, dto.UpdateUserRequest{Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "admin", resp.Role)
	assert.Equal(t, "admin", repo.users["alice"].Role)
}
