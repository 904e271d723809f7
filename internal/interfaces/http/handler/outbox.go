package handler

import (
	"github.com/erp/settlement/internal/application/event"
	"github.com/gin-gonic/gin"
)

// OutboxHandler serves the company's view of the event outbox
type OutboxHandler struct {
	BaseHandler
	outboxService *event.OutboxService
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(outboxService *event.OutboxService) *OutboxHandler {
	return &OutboxHandler{outboxService: outboxService}
}

// RetryAllResponse reports how many dead entries were reset
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

// GetStats handles GET /outbox/stats
func (h *OutboxHandler) GetStats(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	stats, err := h.outboxService.GetStats(c.Request.Context(), companyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// GetDeadLetterEntries handles GET /outbox/dead
func (h *OutboxHandler) GetDeadLetterEntries(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	var filter event.OutboxFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.outboxService.GetDeadLetterEntries(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetEntry handles GET /outbox/entries/:id
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	entry, err := h.outboxService.GetEntry(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryDeadEntry handles POST /outbox/entries/:id/retry
func (h *OutboxHandler) RetryDeadEntry(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	entry, err := h.outboxService.RetryDeadEntry(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAllDeadEntries handles POST /outbox/dead/retry
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	count, err := h.outboxService.RetryAllDeadEntries(c.Request.Context(), companyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RetryAllResponse{Count: count})
}
