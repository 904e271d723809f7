package handler

import (
	"context"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ChequeHandler drives the cheque lifecycle
type ChequeHandler struct {
	BaseHandler
	service *appsettlement.Service
}

// NewChequeHandler creates a ChequeHandler
func NewChequeHandler(service *appsettlement.Service) *ChequeHandler {
	return &ChequeHandler{service: service}
}

type chequeMove func(ctx context.Context, companyID, id uuid.UUID, req appsettlement.ChequeMoveRequest) (*appsettlement.ChequeResponse, error)

// Receive handles POST /cheques/receive
func (h *ChequeHandler) Receive(c *gin.Context) {
	h.create(c, h.service.ReceiveCheque)
}

// Issue handles POST /cheques/issue
func (h *ChequeHandler) Issue(c *gin.Context) {
	h.create(c, h.service.IssueCheque)
}

func (h *ChequeHandler) create(c *gin.Context, fn func(context.Context, uuid.UUID, appsettlement.ChequeRequest) (*appsettlement.ChequeResponse, error)) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	var req appsettlement.ChequeRequest
	if !h.bindJSON(c, &req, false) {
		return
	}

	cheque, err := fn(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, cheque)
}

// Get handles GET /cheques/:id
func (h *ChequeHandler) Get(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	cheque, err := h.service.GetCheque(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cheque)
}

// Release handles POST /cheques/:id/release
func (h *ChequeHandler) Release(c *gin.Context) { h.move(c, h.service.ReleaseCheque) }

// Deposit handles POST /cheques/:id/deposit
func (h *ChequeHandler) Deposit(c *gin.Context) { h.move(c, h.service.DepositCheque) }

// Collect handles POST /cheques/:id/collect
func (h *ChequeHandler) Collect(c *gin.Context) { h.move(c, h.service.CollectCheque) }

// Bounce handles POST /cheques/:id/bounce
func (h *ChequeHandler) Bounce(c *gin.Context) { h.move(c, h.service.BounceCheque) }

// Endorse handles POST /cheques/:id/endorse
func (h *ChequeHandler) Endorse(c *gin.Context) { h.move(c, h.service.EndorseCheque) }

// Cancel handles POST /cheques/:id/cancel
func (h *ChequeHandler) Cancel(c *gin.Context) { h.move(c, h.service.CancelCheque) }

func (h *ChequeHandler) move(c *gin.Context, fn chequeMove) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appsettlement.ChequeMoveRequest
	if !h.bindJSON(c, &req, true) {
		return
	}

	cheque, err := fn(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cheque)
}
