// Package handler holds the gin handlers of the settlement API. Handlers
// read the caller's company from the JWT context, bind and validate the
// request, call the application service and render the standard envelope.
package handler

import (
	"net/http"
	"strconv"
	"time"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// companyID returns the authenticated company or writes a 401
func (h *BaseHandler) companyID(c *gin.Context) (uuid.UUID, bool) {
	id := middleware.GetCompanyID(c)
	if id == uuid.Nil {
		h.Error(c, dto.ErrCodeUnauthorized, "Missing company in credentials")
		return uuid.Nil, false
	}
	return id, true
}

// pathUUID parses a uuid path parameter or writes a 400
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// pathInt parses an integer path parameter or writes a 400
func (h *BaseHandler) pathInt(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return n, true
}

// bindJSON binds an optional or required JSON body. An empty body is
// accepted when optional is set.
func (h *BaseHandler) bindJSON(c *gin.Context, dst any, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.OK(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.Page(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.OK(data))
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.Set(middleware.ErrorCodeKey, code)
	c.JSON(dto.GetHTTPStatus(code), dto.Fail(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// HandleError renders any error returned by an application service.
// Domain errors keep their code and message; anything else is logged and
// reported as internal.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	apiErr := dto.FromError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
	}
	if apiErr.RetryAfter != "" {
		c.Header("Retry-After", apiErr.RetryAfter)
	}

	c.Set(middleware.ErrorCodeKey, apiErr.Code)
	c.JSON(apiErr.Status, dto.Fail(apiErr.Code, apiErr.Message, getRequestID(c), apiErr.Details...))
}

// validationFailed sends a 400 naming one rejected field
func (h *BaseHandler) validationFailed(c *gin.Context, field, message string) {
	c.Set(middleware.ErrorCodeKey, dto.ErrCodeValidation)
	c.JSON(http.StatusBadRequest, dto.Fail(dto.ErrCodeValidation, "Request validation failed", getRequestID(c),
		dto.ValidationDetail{Field: field, Message: message}))
}

// queryDate parses a YYYY-MM-DD query parameter. A missing optional
// parameter yields the zero time.
func (h *BaseHandler) queryDate(c *gin.Context, name string, required bool) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			h.validationFailed(c, name, "This field is required")
			return time.Time{}, false
		}
		return time.Time{}, true
	}
	d, err := appsettlement.ParseDate(raw)
	if err != nil {
		h.validationFailed(c, name, err.Error())
		return time.Time{}, false
	}
	return d.Time, true
}

// queryUUID parses an optional uuid query parameter
func (h *BaseHandler) queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.validationFailed(c, name, "Must be a valid UUID")
		return nil, false
	}
	return &id, true
}
