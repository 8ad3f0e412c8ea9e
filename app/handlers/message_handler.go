package handlers

import (
	"fmt"
	"log"
	"strconv"

	"github.com/amirphl/future-messages/app/dto"
	"github.com/amirphl/future-messages/app/middleware"
	businessflow "github.com/amirphl/future-messages/business_flow"
	"github.com/amirphl/future-messages/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MessageHandlerInterface defines the contract for message handlers
type MessageHandlerInterface interface {
	CreateMessage(c fiber.Ctx) error
	ListMessages(c fiber.Ctx) error
	ExportMessages(c fiber.Ctx) error
	ReportStatus(c fiber.Ctx) error
}

// MessageHandler handles scheduled message HTTP requests
type MessageHandler struct {
	messageFlow businessflow.MessageFlow
	validator   *validator.Validate
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageFlow businessflow.MessageFlow) *MessageHandler {
	return &MessageHandler{
		messageFlow: messageFlow,
		validator:   newValidator(),
	}
}

// CreateMessage schedules a message for the authenticated sender
// @Summary Schedule message
// @Description Store a message and hand it to the delivery queue. If the broker is unavailable the message stays in processing and is retried.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateMessageRequest true "Message data"
// @Success 201 {object} dto.APIResponse{data=dto.MessageDTO} "Message accepted"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthenticated"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages [post]
func (h *MessageHandler) CreateMessage(c fiber.Ctx) error {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	var req dto.CreateMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}

	if messages := validateStruct(h.validator, &req); messages != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.messageFlow.CreateMessage(ctx, identity, &req)
	if err != nil {
		if businessflow.IsValidation(err) {
			return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}
		if businessflow.IsUnauthenticated(err) {
			return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
		}

		log.Println("Create message failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to schedule message", "MESSAGE_CREATION_FAILED", nil)
	}

	return successResponse(c, fiber.StatusCreated, "Message scheduled successfully", result)
}

// ListMessages returns the caller's messages, newest first
// @Summary List messages
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.APIResponse{data=dto.ListMessagesResponse} "Messages"
// @Failure 400 {object} dto.APIResponse "Invalid pagination"
// @Failure 401 {object} dto.APIResponse "Unauthenticated"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages [get]
func (h *MessageHandler) ListMessages(c fiber.Ctx) error {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	limit, err := queryInt(c, "limit", utils.MaxMessagePageSize)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid limit", "VALIDATION_ERROR", businessflow.NewValidationError("limit", "must be an integer"))
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid offset", "VALIDATION_ERROR", businessflow.NewValidationError("offset", "must be a non-negative integer"))
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.messageFlow.ListMessages(ctx, identity, limit, offset)
	if err != nil {
		log.Println("List messages failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list messages", "MESSAGE_LIST_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Messages retrieved successfully", result)
}

// ExportMessages downloads the caller's messages as an XLSX workbook
// @Summary Export messages
// @Tags Messages
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "Workbook"
// @Failure 401 {object} dto.APIResponse "Unauthenticated"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages/export [get]
func (h *MessageHandler) ExportMessages(c fiber.Ctx) error {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	data, err := h.messageFlow.ExportMessages(ctx, identity)
	if err != nil {
		log.Println("Export messages failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to export messages", "MESSAGE_EXPORT_FAILED", nil)
	}

	filename := fmt.Sprintf("messages-%s.xlsx", utils.UTCNow().Format("20060102-150405"))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(data)
}

// ReportStatus records the delivery worker's outcome for a message
// @Summary Report delivery status
// @Tags Internal
// @Accept json
// @Produce json
// @Param X-API-Key header string true "Worker API key"
// @Param message_id path string true "Message ID"
// @Param request body dto.ReportStatusRequest true "Outcome"
// @Success 200 {object} dto.APIResponse{data=dto.ReportStatusResponse} "Status recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid API key"
// @Failure 404 {object} dto.APIResponse "Message not found"
// @Failure 409 {object} dto.APIResponse "Status conflict"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/internal/messages/{message_id}/status [post]
func (h *MessageHandler) ReportStatus(c fiber.Ctx) error {
	var req dto.ReportStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", nil)
	}

	if messages := validateStruct(h.validator, &req); messages != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.messageFlow.ReportDeliveryStatus(ctx, c.Params("message_id"), req.Status)
	if err != nil {
		if businessflow.IsMessageNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Message not found", "MESSAGE_NOT_FOUND", nil)
		}
		if businessflow.IsStatusConflict(err) {
			return errorResponse(c, fiber.StatusConflict, "Message status conflict", "STATUS_CONFLICT", nil)
		}
		if businessflow.IsValidation(err) {
			return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
		}

		log.Println("Report status failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to record status", "STATUS_UPDATE_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "Status recorded successfully", result)
}

func queryInt(c fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
