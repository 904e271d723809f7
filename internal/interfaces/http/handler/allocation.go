package handler

import (
	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/gin-gonic/gin"
)

// AllocationHandler removes allocations
type AllocationHandler struct {
	BaseHandler
	service *appsettlement.Service
}

// NewAllocationHandler creates an AllocationHandler
func NewAllocationHandler(service *appsettlement.Service) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// Delete handles DELETE /allocations/:id and returns both recomputed sides
func (h *AllocationHandler) Delete(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Deallocate(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
