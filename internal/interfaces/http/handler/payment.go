package handler

import (
	"context"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler records money movements and applies them to documents
type PaymentHandler struct {
	BaseHandler
	service *appsettlement.Service
}

// NewPaymentHandler creates a PaymentHandler
func NewPaymentHandler(service *appsettlement.Service) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Create handles POST /payments
func (h *PaymentHandler) Create(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	var req appsettlement.CreatePaymentRequest
	if !h.bindJSON(c, &req, false) {
		return
	}

	payment, err := h.service.CreatePayment(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// Get handles GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	h.apply(c, h.service.GetPayment)
}

// Confirm handles POST /payments/:id/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	h.apply(c, h.service.ConfirmPayment)
}

// Cancel handles POST /payments/:id/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var req appsettlement.CancelRequest
	if !h.bindJSON(c, &req, true) {
		return
	}
	h.apply(c, func(ctx context.Context, companyID, id uuid.UUID) (*appsettlement.PaymentResponse, error) {
		return h.service.CancelPayment(ctx, companyID, id, req)
	})
}

// Suggestions handles GET /payments/:id/suggestions
func (h *PaymentHandler) Suggestions(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	suggestion, err := h.service.SuggestAllocations(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, suggestion)
}

// Allocate handles POST /payments/:id/allocations
func (h *PaymentHandler) Allocate(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appsettlement.AllocateRequest
	if !h.bindJSON(c, &req, false) {
		return
	}
	if len(req.Lines) == 0 && !req.UseSuggestion {
		h.validationFailed(c, "lines", "At least one line is required unless use_suggestion is set")
		return
	}

	result, err := h.service.Allocate(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// AccountBalance handles GET /accounts/balance?cashbox_id=|bank_account_id=&as_of=
func (h *PaymentHandler) AccountBalance(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	cashboxID, ok := h.queryUUID(c, "cashbox_id")
	if !ok {
		return
	}
	bankAccountID, ok := h.queryUUID(c, "bank_account_id")
	if !ok {
		return
	}
	asOf, ok := h.queryDate(c, "as_of", false)
	if !ok {
		return
	}

	balance, err := h.service.AccountBalance(c.Request.Context(), companyID, cashboxID, bankAccountID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

func (h *PaymentHandler) apply(c *gin.Context, fn func(context.Context, uuid.UUID, uuid.UUID) (*appsettlement.PaymentResponse, error)) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	payment, err := fn(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}
