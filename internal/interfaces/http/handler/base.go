package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schoolsaas/backend/internal/domain/billing"
	"github.com/schoolsaas/backend/internal/domain/metering"
	"github.com/schoolsaas/backend/internal/domain/shared"
	"github.com/schoolsaas/backend/internal/interfaces/http/dto"
	"github.com/schoolsaas/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDKey)
}

// getTenantID extracts the tenant ID from the route path
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("tenantId"))
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving the status from the code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with field details
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		dto.ValidationDetailsFromError(err),
	))
}

// HandleError converts domain errors to HTTP responses. Sentinel errors and
// typed errors map to specific status codes; everything else is reported as
// an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	requestID := getRequestID(c)

	var limitErr *metering.LimitExceededError
	if errors.As(err, &limitErr) {
		c.JSON(http.StatusTooManyRequests, dto.NewErrorResponseWithDetails(
			dto.ErrCodeLimitExceeded,
			limitErr.Error(),
			requestID,
			gin.H{
				"kind":    limitErr.Kind,
				"current": limitErr.Current,
				"limit":   limitErr.Limit,
			},
		))
		return
	}

	code := ""
	switch {
	case errors.Is(err, shared.ErrNotFound):
		code = dto.ErrCodeNotFound
	case errors.Is(err, billing.ErrPlanNotFound):
		code = dto.ErrCodePlanNotFound
	case errors.Is(err, billing.ErrAlreadyRenewed):
		code = dto.ErrCodeAlreadyRenewed
	case errors.Is(err, billing.ErrInvalidTransition):
		code = dto.ErrCodeInvalidState
	case errors.Is(err, billing.ErrLedgerEntryImmutable):
		code = dto.ErrCodeLedgerImmutable
	case errors.Is(err, metering.ErrDataUnavailable):
		code = dto.ErrCodeDataUnavailable
	case errors.Is(err, metering.ErrCheckDeferred):
		code = dto.ErrCodeCheckDeferred
	}
	if code != "" {
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, err.Error(), requestID))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
