package service

import (
	"testing"
	"time"

	"chat-relay/internal/models"
	"chat-relay/internal/repository"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserRepo is an in-memory UserRepository keyed by username.
type fakeUserRepo struct {
	users  map[string]*models.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Create(user *models.User) error {
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	copied := *user
	f.users[user.Username] = &copied
	return nil
}

func (f *fakeUserRepo) FindByUsername(username string) (*models.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func newTestUserService() (*UserService, *fakeUserRepo) {
	repo := newFakeUserRepo()
	return NewUserService(repo, "test-secret", time.Hour), repo
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo := newTestUserService()

	resp, err := svc.Register(&models.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, "alice", resp.Username)
	require.NotZero(t, resp.ID)

	stored := repo.users["alice"]
	require.NotEqual(t, "secret123", stored.Password, "password is never stored in the clear")
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("secret123")))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc, _ := newTestUserService()

	_, err := svc.Register(&models.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.Register(&models.RegisterRequest{Username: "alice", Password: "other456"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, _ := newTestUserService()

	_, err := svc.Register(&models.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	resp, err := svc.Login(&models.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "alice", resp.User.Username)

	username, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestUserService()

	_, err := svc.Register(&models.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.Login(&models.LoginRequest{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// unknown users fail the same way, not with a distinguishable error
	_, err = svc.Login(&models.LoginRequest{Username: "nobody", Password: "secret123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsForgeries(t *testing.T) {
	svc, _ := newTestUserService()
	other := NewUserService(newFakeUserRepo(), "another-secret", time.Hour)

	_, err := svc.Register(&models.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	resp, err := svc.Login(&models.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, "test-secret", -time.Minute)

	_, err := svc.Register(&models.RegisterRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	resp, err := svc.Login(&models.LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
