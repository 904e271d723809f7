package handler

import (
	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/gin-gonic/gin"
)

// ForecastHandler projects expected cash movement
type ForecastHandler struct {
	BaseHandler
	service *appsettlement.Service
}

// NewForecastHandler creates a ForecastHandler
func NewForecastHandler(service *appsettlement.Service) *ForecastHandler {
	return &ForecastHandler{service: service}
}

// Get handles GET /forecast?from=&to=
func (h *ForecastHandler) Get(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	from, ok := h.queryDate(c, "from", true)
	if !ok {
		return
	}
	to, ok := h.queryDate(c, "to", true)
	if !ok {
		return
	}

	forecast, err := h.service.Forecast(c.Request.Context(), companyID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, forecast)
}
