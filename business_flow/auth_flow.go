package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/amirphl/future-messages/app/dto"
	"github.com/amirphl/future-messages/app/services"
	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/repository"
	"github.com/amirphl/future-messages/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// dummyPassword is hashed once so unknown phones cost a real comparison
const dummyPassword = "future-messages-dummy-password"

// AuthFlow handles registration, login and logout
type AuthFlow interface {
	Register(ctx context.Context, request *dto.RegisterRequest, metadata *ClientMetadata) (*dto.RegisterResponse, error)
	Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*LoginResult, error)
	Logout(ctx context.Context, credential string) error
	Me(ctx context.Context, identity services.Identity) (*dto.MeResponse, error)
	VerifyCredentials(ctx context.Context, phone, password string) (*models.User, error)
}

// LoginResult pairs the client response with the raw credential so the
// handler can also place it in a cookie.
type LoginResult struct {
	Response   *dto.LoginResponse
	Credential *services.Credential
	Transport  services.CredentialTransport
}

// AuthFlowImpl implements the authentication business flow
type AuthFlowImpl struct {
	userRepo   repository.UserRepository
	strategy   services.AuthStrategy
	bcryptCost int
	dummyHash  []byte
}

// NewAuthFlow creates a new auth flow instance
func NewAuthFlow(userRepo repository.UserRepository, strategy services.AuthStrategy, bcryptCost int) (AuthFlow, error) {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	dummyHash, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &AuthFlowImpl{
		userRepo:   userRepo,
		strategy:   strategy,
		bcryptCost: bcryptCost,
		dummyHash:  dummyHash,
	}, nil
}

// Register creates a new user with a hashed password
func (af *AuthFlowImpl) Register(ctx context.Context, request *dto.RegisterRequest, metadata *ClientMetadata) (*dto.RegisterResponse, error) {
	phone, ok := utils.NormalizePhone(request.Phone)
	if !ok {
		return nil, NewBusinessError("REGISTER_VALIDATION_FAILED", "Registration validation failed",
			NewValidationError("phone", "must contain 10 or 11 digits"))
	}
	firstName := strings.TrimSpace(request.FirstName)
	if firstName == "" {
		return nil, NewBusinessError("REGISTER_VALIDATION_FAILED", "Registration validation failed",
			NewValidationError("first_name", "must not be empty"))
	}

	if len(request.Password) > utils.MaxPasswordBytes {
		return nil, NewBusinessError("REGISTER_VALIDATION_FAILED", "Registration validation failed",
			NewValidationError("password", fmt.Sprintf("must be at most %d bytes", utils.MaxPasswordBytes)))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), af.bcryptCost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	user := &models.User{
		UUID:         uuid.New(),
		Phone:        phone,
		FirstName:    firstName,
		LastName:     strings.TrimSpace(request.LastName),
		PasswordHash: string(hash),
	}

	if err := af.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return nil, NewBusinessError("PHONE_ALREADY_REGISTERED", "Phone already registered", ErrPhoneAlreadyRegistered)
		}
		return nil, NewBusinessError("USER_CREATION_FAILED", "Failed to create user", downstream(err))
	}

	log.Printf("user registered: id=%d phone=%s ip=%s", user.ID, utils.MaskPhone(phone), ipOf(metadata))

	return &dto.RegisterResponse{
		UserID: user.ID,
		UUID:   user.UUID.String(),
	}, nil
}

// VerifyCredentials checks a phone and password pair. Unknown phones and
// wrong passwords fail identically.
func (af *AuthFlowImpl) VerifyCredentials(ctx context.Context, phone, password string) (*models.User, error) {
	canonical, ok := utils.NormalizePhone(phone)
	if !ok {
		_ = bcrypt.CompareHashAndPassword(af.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	user, err := af.userRepo.ByPhone(ctx, canonical)
	if err != nil {
		return nil, downstream(err)
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(af.dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Login verifies credentials and issues a credential through the configured strategy
func (af *AuthFlowImpl) Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*LoginResult, error) {
	user, err := af.VerifyCredentials(ctx, request.Phone, request.Password)
	if err != nil {
		if IsInvalidCredentials(err) {
			log.Printf("login failed: phone=%s ip=%s", utils.MaskPhone(utils.DigitsOnly(request.Phone)), ipOf(metadata))
			return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid phone or password", err)
		}
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	credential, err := af.strategy.Issue(ctx, services.Identity{
		UserID:    user.ID,
		FirstName: user.FirstName,
		Phone:     user.Phone,
	})
	if err != nil {
		return nil, NewBusinessError("CREDENTIAL_ISSUE_FAILED", "Failed to issue credential", downstream(err))
	}

	tokenType := "bearer"
	if af.strategy.Transport() == services.TransportCookie {
		tokenType = "session"
	}

	return &LoginResult{
		Response: &dto.LoginResponse{
			AccessToken: credential.Value,
			TokenType:   tokenType,
			ExpiresAt:   utils.FormatRFC3339UTC(credential.ExpiresAt),
			User:        ToUserSummary(user),
		},
		Credential: credential,
		Transport:  af.strategy.Transport(),
	}, nil
}

// Logout revokes the credential. Revoking an unknown credential succeeds.
func (af *AuthFlowImpl) Logout(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	if err := af.strategy.Revoke(ctx, credential); err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Logout failed", downstream(err))
	}
	return nil
}

// Me returns the identity snapshot of the caller
func (af *AuthFlowImpl) Me(_ context.Context, identity services.Identity) (*dto.MeResponse, error) {
	if identity.UserID == 0 {
		return nil, NewBusinessError("UNAUTHENTICATED", "Authentication required", ErrUnauthenticated)
	}
	return &dto.MeResponse{
		UserID:    identity.UserID,
		FirstName: identity.FirstName,
		Phone:     identity.Phone,
	}, nil
}

func ipOf(metadata *ClientMetadata) string {
	if metadata == nil {
		return "-"
	}
	return metadata.IPAddress
}
