package handler

import (
	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/gin-gonic/gin"
)

// PartyHandler manages counterparties and their balances
type PartyHandler struct {
	BaseHandler
	service *appsettlement.Service
}

// NewPartyHandler creates a PartyHandler
func NewPartyHandler(service *appsettlement.Service) *PartyHandler {
	return &PartyHandler{service: service}
}

// Create handles POST /parties
func (h *PartyHandler) Create(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	var req appsettlement.CreatePartyRequest
	if !h.bindJSON(c, &req, false) {
		return
	}

	party, err := h.service.CreateParty(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, party)
}

// Link handles POST /parties/link. It is idempotent on the linked entity.
func (h *PartyHandler) Link(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	var req appsettlement.LinkPartyRequest
	if !h.bindJSON(c, &req, false) {
		return
	}

	party, err := h.service.LinkParty(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, party)
}

// Get handles GET /parties/:id
func (h *PartyHandler) Get(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	party, err := h.service.GetParty(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, party)
}

// Balance handles GET /parties/:id/balance
func (h *PartyHandler) Balance(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	balance, err := h.service.PartyBalance(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// Deactivate handles POST /parties/:id/deactivate
func (h *PartyHandler) Deactivate(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	party, err := h.service.DeactivateParty(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, party)
}
