package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/future-messages/app/dto"
	"github.com/amirphl/future-messages/app/services"
	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthFlow(t *testing.T, repo *mockUserRepository) (AuthFlow, services.AuthStrategy) {
	t.Helper()
	strategy := services.NewSessionStrategy(services.NewMemorySessionStore(), time.Hour)
	flow, err := NewAuthFlow(repo, strategy, bcrypt.MinCost)
	require.NoError(t, err)
	return flow, strategy
}

func hashedUser(t *testing.T, id uint, phone, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: id, Phone: phone, FirstName: "Maria", PasswordHash: string(hash)}
}

func TestAuthFlow_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("StoresHashedPassword", func(t *testing.T) {
		repo := &mockUserRepository{}
		flow, _ := newTestAuthFlow(t, repo)

		repo.On("Save", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.Phone == "11999990000" &&
				u.FirstName == "Maria" &&
				u.PasswordHash != "secret123" &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")) == nil
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = 7
		}).Return(nil).Once()

		resp, err := flow.Register(ctx, &dto.RegisterRequest{
			FirstName: " Maria ",
			Phone:     "(11) 99999-0000",
			Password:  "secret123",
		}, NewClientMetadata("127.0.0.1", "test"))
		require.NoError(t, err)
		assert.Equal(t, uint(7), resp.UserID)
		assert.NotEmpty(t, resp.UUID)
		repo.AssertExpectations(t)
	})

	t.Run("DuplicatePhone", func(t *testing.T) {
		repo := &mockUserRepository{}
		flow, _ := newTestAuthFlow(t, repo)
		repo.On("Save", ctx, mock.Anything).
			Return(fmt.Errorf("save user: %w", repository.ErrDuplicatePhone)).Once()

		_, err := flow.Register(ctx, &dto.RegisterRequest{FirstName: "Maria", Phone: "11999990000", Password: "secret123"}, nil)
		require.Error(t, err)
		assert.True(t, IsPhoneAlreadyRegistered(err))

		var bizErr *BusinessError
		require.ErrorAs(t, err, &bizErr)
		assert.Equal(t, "PHONE_ALREADY_REGISTERED", bizErr.Code)
	})

	t.Run("InvalidPhone", func(t *testing.T) {
		repo := &mockUserRepository{}
		flow, _ := newTestAuthFlow(t, repo)

		_, err := flow.Register(ctx, &dto.RegisterRequest{FirstName: "Maria", Phone: "123", Password: "secret123"}, nil)
		require.Error(t, err)
		verr, ok := AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, "phone", verr.Field)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("PasswordLongerThan72Bytes", func(t *testing.T) {
		repo := &mockUserRepository{}
		flow, _ := newTestAuthFlow(t, repo)

		// 40 characters, 80 bytes
		password := strings.Repeat("é", 40)
		_, err := flow.Register(ctx, &dto.RegisterRequest{FirstName: "Maria", Phone: "11999990000", Password: password}, nil)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		verr, ok := AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, "password", verr.Field)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		repo := &mockUserRepository{}
		flow, _ := newTestAuthFlow(t, repo)
		repo.On("Save", ctx, mock.Anything).Return(errors.New("connection refused")).Once()

		_, err := flow.Register(ctx, &dto.RegisterRequest{FirstName: "Maria", Phone: "11999990000", Password: "secret123"}, nil)
		require.Error(t, err)
		assert.True(t, IsDownstreamUnavailable(err))
		assert.False(t, IsPhoneAlreadyRegistered(err))
	})
}

func TestAuthFlow_VerifyCredentials(t *testing.T) {
	ctx := context.Background()
	repo := &mockUserRepository{}
	flow, _ := newTestAuthFlow(t, repo)

	user := hashedUser(t, 1, "11999990000", "secret123")
	repo.On("ByPhone", ctx, "11999990000").Return(user, nil)
	repo.On("ByPhone", ctx, "11888880000").Return(nil, nil)

	got, err := flow.VerifyCredentials(ctx, "11999990000", "secret123")
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.ID)

	_, wrongPassword := flow.VerifyCredentials(ctx, "11999990000", "nope")
	_, unknownPhone := flow.VerifyCredentials(ctx, "11888880000", "secret123")
	_, malformed := flow.VerifyCredentials(ctx, "12", "secret123")

	for _, err := range []error{wrongPassword, unknownPhone, malformed} {
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.Equal(t, wrongPassword.Error(), unknownPhone.Error())
}

func TestAuthFlow_LoginLogout(t *testing.T) {
	ctx := context.Background()
	repo := &mockUserRepository{}
	flow, strategy := newTestAuthFlow(t, repo)

	repo.On("ByPhone", ctx, "11999990000").Return(hashedUser(t, 3, "11999990000", "secret123"), nil)

	result, err := flow.Login(ctx, &dto.LoginRequest{Phone: "11999990000", Password: "secret123"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "session", result.Response.TokenType)
	assert.Equal(t, services.TransportCookie, result.Transport)
	assert.Equal(t, dto.UserSummary{FirstName: "Maria", Phone: "11999990000"}, result.Response.User)
	assert.Equal(t, result.Credential.Value, result.Response.AccessToken)

	identity, err := strategy.Resolve(ctx, result.Credential.Value)
	require.NoError(t, err)
	assert.Equal(t, uint(3), identity.UserID)

	me, err := flow.Me(ctx, *identity)
	require.NoError(t, err)
	assert.Equal(t, "Maria", me.FirstName)

	require.NoError(t, flow.Logout(ctx, result.Credential.Value))
	_, err = strategy.Resolve(ctx, result.Credential.Value)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	require.NoError(t, flow.Logout(ctx, result.Credential.Value))
	require.NoError(t, flow.Logout(ctx, ""))
}

func TestAuthFlow_LoginRejectsBadPassword(t *testing.T) {
	ctx := context.Background()
	repo := &mockUserRepository{}
	flow, _ := newTestAuthFlow(t, repo)
	repo.On("ByPhone", ctx, "11999990000").Return(hashedUser(t, 3, "11999990000", "secret123"), nil)

	_, err := flow.Login(ctx, &dto.LoginRequest{Phone: "11999990000", Password: "wrong"}, nil)
	require.Error(t, err)
	assert.True(t, IsInvalidCredentials(err))

	var bizErr *BusinessError
	require.ErrorAs(t, err, &bizErr)
	assert.Equal(t, "INVALID_CREDENTIALS", bizErr.Code)
}

func TestAuthFlow_MeRequiresIdentity(t *testing.T) {
	flow, _ := newTestAuthFlow(t, &mockUserRepository{})
	_, err := flow.Me(context.Background(), services.Identity{})
	assert.True(t, IsUnauthenticated(err))
}
