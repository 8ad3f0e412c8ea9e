package handlers

import (
	"log"

	"github.com/amirphl/future-messages/app/dto"
	"github.com/amirphl/future-messages/app/middleware"
	"github.com/amirphl/future-messages/app/services"
	businessflow "github.com/amirphl/future-messages/business_flow"
	"github.com/amirphl/future-messages/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Register(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	Me(c fiber.Ctx) error
}

// CookieOptions controls the session cookie written on login
type CookieOptions struct {
	Secure   bool
	SameSite string
	Domain   string
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authFlow  businessflow.AuthFlow
	transport services.CredentialTransport
	cookie    CookieOptions
	validator *validator.Validate
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authFlow businessflow.AuthFlow, transport services.CredentialTransport, cookie CookieOptions) *AuthHandler {
	if cookie.SameSite == "" {
		cookie.SameSite = fiber.CookieSameSiteLaxMode
	}
	return &AuthHandler{
		authFlow:  authFlow,
		transport: transport,
		cookie:    cookie,
		validator: newValidator(),
	}
}

// Register handles user registration
// @Summary Register
// @Description Create an account identified by phone number
// @Tags Authentication
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body dto.RegisterRequest true "Registration data"
// @Success 201 {object} dto.APIResponse{data=dto.RegisterResponse} "User registered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Phone already registered"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/register [post]
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.Bind().Body(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}

	if messages := validateStruct(h.validator, &req); messages != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.authFlow.Register(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsPhoneAlreadyRegistered(err) {
			return errorResponse(c, fiber.StatusConflict, "Phone already registered", "PHONE_ALREADY_REGISTERED", nil)
		}
		if businessflow.IsValidation(err) {
			return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}

		log.Println("Register failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Registration failed", "REGISTER_FAILED", nil)
	}

	return successResponse(c, fiber.StatusCreated, "User registered successfully", result)
}

// Login handles user authentication
// @Summary Login
// @Description Authenticate with phone and password. In session mode the handle is also set as a cookie.
// @Tags Authentication
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().Body(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}

	if messages := validateStruct(h.validator, &req); messages != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.authFlow.Login(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidCredentials(err) {
			return errorResponse(c, fiber.StatusUnauthorized, "Invalid phone or password", "INVALID_CREDENTIALS", nil)
		}

		log.Println("Login failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	if h.transport == services.TransportCookie {
		c.Cookie(&fiber.Cookie{
			Name:     utils.SessionCookieName,
			Value:    result.Credential.Value,
			Path:     "/",
			Domain:   h.cookie.Domain,
			Expires:  result.Credential.ExpiresAt,
			Secure:   h.cookie.Secure,
			HTTPOnly: true,
			SameSite: h.cookie.SameSite,
		})
	}

	return successResponse(c, fiber.StatusOK, "Login successful", result.Response)
}

// Logout revokes the presented credential and clears the session cookie
// @Summary Logout
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse "Logged out"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/logout [post]
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	credential := middleware.ExtractCredential(c, h.transport)

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.authFlow.Logout(ctx, credential); err != nil {
		log.Println("Logout failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Logout failed", "LOGOUT_FAILED", nil)
	}

	if h.transport == services.TransportCookie {
		c.Cookie(&fiber.Cookie{
			Name:     utils.SessionCookieName,
			Value:    "",
			Path:     "/",
			Domain:   h.cookie.Domain,
			MaxAge:   -1,
			Expires:  utils.UTCNow().Add(-utils.SessionTimeout),
			Secure:   h.cookie.Secure,
			HTTPOnly: true,
			SameSite: h.cookie.SameSite,
		})
	}

	return successResponse(c, fiber.StatusOK, "Logged out successfully", nil)
}

// Me returns the authenticated caller
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.MeResponse} "Identity"
// @Failure 401 {object} dto.APIResponse "Unauthenticated"
// @Router /api/v1/me [get]
func (h *AuthHandler) Me(c fiber.Ctx) error {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	me, err := h.authFlow.Me(ctx, identity)
	if err != nil {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Identity retrieved successfully", me)
}
