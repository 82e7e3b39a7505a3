package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/pkg/config"
	appErrors "github.com/openheritage/arkmesh/pkg/errors"
)

type mockUserRepo struct {
	users map[string]*models.AdminUser
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	for _, user := range m.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.AdminUser, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *user
	return &cp, nil
}

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockUserRepo{users: map[string]*models.AdminUser{
		"u1": {ID: "u1", Email: "curator@example.org", FullName: "Curator", PasswordHash: string(hash), Active: true},
		"u2": {ID: "u2", Email: "retired@example.org", FullName: "Retired", PasswordHash: string(hash), Active: false},
	}}
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "arkmesh"}
	return NewAuthService(repo, cfg, nil, zap.NewNop())
}

func TestAuthServiceLogin(t *testing.T) {
	svc := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "curator@example.org", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "u1", resp.User.ID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "curator@example.org", claims.Email)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "curator@example.org", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.org", Password: "correct horse"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "retired@example.org", Password: "correct horse"})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
