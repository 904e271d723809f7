package handler

import (
	"context"
	"strconv"
	"time"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PeriodHandler locks and unlocks accounting months
type PeriodHandler struct {
	BaseHandler
	service *appsettlement.Service
}

// NewPeriodHandler creates a PeriodHandler
func NewPeriodHandler(service *appsettlement.Service) *PeriodHandler {
	return &PeriodHandler{service: service}
}

// List handles GET /periods?year=
func (h *PeriodHandler) List(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	year := time.Now().UTC().Year()
	if raw := c.Query("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			h.validationFailed(c, "year", "Must be a number")
			return
		}
		year = y
	}

	periods, err := h.service.ListPeriods(c.Request.Context(), companyID, year)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, periods)
}

// Lock handles POST /periods/:year/:month/lock
func (h *PeriodHandler) Lock(c *gin.Context) {
	h.transition(c, h.service.LockPeriod)
}

// Unlock handles POST /periods/:year/:month/unlock
func (h *PeriodHandler) Unlock(c *gin.Context) {
	h.transition(c, h.service.UnlockPeriod)
}

type periodTransition func(ctx context.Context, companyID uuid.UUID, year, month int) (*appsettlement.PeriodResponse, error)

func (h *PeriodHandler) transition(c *gin.Context, fn periodTransition) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}
	year, ok := h.pathInt(c, "year")
	if !ok {
		return
	}
	month, ok := h.pathInt(c, "month")
	if !ok {
		return
	}

	period, err := fn(c.Request.Context(), companyID, year, month)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, period)
}
