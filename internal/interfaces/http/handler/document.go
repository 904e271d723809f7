package handler

import (
	"context"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler records obligations and moves them through their lifecycle
type DocumentHandler struct {
	BaseHandler
	service *appsettlement.Service
}

// NewDocumentHandler creates a DocumentHandler
func NewDocumentHandler(service *appsettlement.Service) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Create handles POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	var req appsettlement.CreateDocumentRequest
	if !h.bindJSON(c, &req, false) {
		return
	}

	doc, err := h.service.CreateDocument(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	var filter appsettlement.DocumentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	page, err := h.service.ListDocuments(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Post handles POST /documents/:id/post
func (h *DocumentHandler) Post(c *gin.Context) {
	h.apply(c, h.Success, func(ctx context.Context, companyID, id uuid.UUID) (*appsettlement.DocumentResponse, error) {
		return h.service.PostDocument(ctx, companyID, id)
	})
}

// Cancel handles POST /documents/:id/cancel
func (h *DocumentHandler) Cancel(c *gin.Context) {
	var req appsettlement.CancelRequest
	if !h.bindJSON(c, &req, true) {
		return
	}
	h.apply(c, h.Success, func(ctx context.Context, companyID, id uuid.UUID) (*appsettlement.DocumentResponse, error) {
		return h.service.CancelDocument(ctx, companyID, id, req)
	})
}

// Reverse handles POST /documents/:id/reverse and returns the counter-document
func (h *DocumentHandler) Reverse(c *gin.Context) {
	var req appsettlement.ReverseDocumentRequest
	if !h.bindJSON(c, &req, true) {
		return
	}
	h.apply(c, h.Created, func(ctx context.Context, companyID, id uuid.UUID) (*appsettlement.DocumentResponse, error) {
		return h.service.ReverseDocument(ctx, companyID, id, req)
	})
}

func (h *DocumentHandler) apply(c *gin.Context, render func(*gin.Context, any), fn func(context.Context, uuid.UUID, uuid.UUID) (*appsettlement.DocumentResponse, error)) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	doc, err := fn(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	render(c, doc)
}
