package user

import (
	"context"
	"errors"
	"testing"

	"github.com/linkfolio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}
func (m *mockUserStore) Delete(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

type mockVerificationStore struct{ mock.Mock }

func (m *mockVerificationStore) DeleteAll(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestGet_NotFound(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	svc := NewService(ServiceDeps{UserRepo: us})
	_, err := svc.Get(context.Background(), "u1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID:       "u1",
		PasswordHash: hashPassword(t, "old-password"),
	}, nil)

	svc := NewService(ServiceDeps{UserRepo: us})
	err := svc.ChangePassword(context.Background(), "u1", "not-the-password", "new-password9")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword_NewPasswordTooShort(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID:       "u1",
		PasswordHash: hashPassword(t, "old-password"),
	}, nil)

	svc := NewService(ServiceDeps{UserRepo: us})
	err := svc.ChangePassword(context.Background(), "u1", "old-password", "short")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestChangePassword_HappyPath_StoresNewHash(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID:       "u1",
		PasswordHash: hashPassword(t, "old-password"),
	}, nil)

	var updates map[string]interface{}
	us.On("Update", mock.Anything, "u1", mock.Anything).Run(func(args mock.Arguments) {
		updates = args.Get(2).(map[string]interface{})
	}).Return(nil)

	svc := NewService(ServiceDeps{UserRepo: us})
	err := svc.ChangePassword(context.Background(), "u1", "old-password", "new-password9")

	require.NoError(t, err)
	newHash, ok := updates["password_hash"].(string)
	require.True(t, ok)
	assert.NotEqual(t, "new-password9", newHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("new-password9")))
}

func TestDelete_PurgesVerificationsAndUser(t *testing.T) {
	us := &mockUserStore{}
	vs := &mockVerificationStore{}

	u := &domain.User{UserID: "u1", Username: "alice"}
	us.On("Get", mock.Anything, "u1").Return(u, nil)
	vs.On("DeleteAll", mock.Anything, "u1").Return(nil)
	us.On("Delete", mock.Anything, u).Return(nil)

	svc := NewService(ServiceDeps{UserRepo: us, VerificationRepo: vs})
	err := svc.Delete(context.Background(), "u1")

	require.NoError(t, err)
	us.AssertExpectations(t)
	vs.AssertExpectations(t)
}

func TestDelete_VerificationPurgeFailureDoesNotBlockDelete(t *testing.T) {
	us := &mockUserStore{}
	vs := &mockVerificationStore{}

	u := &domain.User{UserID: "u1"}
	us.On("Get", mock.Anything, "u1").Return(u, nil)
	vs.On("DeleteAll", mock.Anything, "u1").Return(errors.New("dynamo down"))
	us.On("Delete", mock.Anything, u).Return(nil)

	svc := NewService(ServiceDeps{UserRepo: us, VerificationRepo: vs})
	err := svc.Delete(context.Background(), "u1")

	require.NoError(t, err)
	us.AssertCalled(t, "Delete", mock.Anything, u)
}

func TestDelete_UserNotFound(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	svc := NewService(ServiceDeps{UserRepo: us})
	err := svc.Delete(context.Background(), "u1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
