// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/future-messages/app/dto"
	businessflow "github.com/amirphl/future-messages/business_flow"
	"github.com/amirphl/future-messages/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const defaultRequestTimeout = 30 * time.Second

func errorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func successResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// newValidator returns a validator with the custom tags used by request DTOs
func newValidator() *validator.Validate {
	v := validator.New()

	// Phone must reduce to 10 or 11 digits once punctuation is dropped
	_ = v.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		_, ok := utils.NormalizePhone(fl.Field().String())
		return ok
	})

	_ = v.RegisterValidation("not_blank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	// Length in bytes rather than characters
	_ = v.RegisterValidation("max_bytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})

	return v
}

// validateStruct runs struct validation and returns readable messages, or nil
func validateStruct(v *validator.Validate, req any) []string {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "max_bytes":
		return err.Field() + " must be at most " + err.Param() + " bytes"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "phone_digits":
		return err.Field() + " must contain 10 or 11 digits"
	case "not_blank":
		return err.Field() + " must not be blank"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// validationDetails renders a business validation error for error.details
func validationDetails(err error) any {
	if verr, ok := businessflow.AsValidationError(err); ok {
		return verr
	}
	return nil
}

// requestContext derives a bounded context carrying the request id
func requestContext(c fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context(), defaultRequestTimeout)
	if requestID := requestid.FromContext(c); requestID != "" {
		ctx = businessflow.WithRequestID(ctx, requestID)
	}
	return ctx, cancel
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestid.FromContext(c))
	return metadata
}
