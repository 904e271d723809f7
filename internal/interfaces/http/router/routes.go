package router

import (
	"github.com/erp/settlement/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers of the settlement API
type Handlers struct {
	Periods     *handler.PeriodHandler
	Parties     *handler.PartyHandler
	Documents   *handler.DocumentHandler
	Payments    *handler.PaymentHandler
	Allocations *handler.AllocationHandler
	Cheques     *handler.ChequeHandler
	Forecast    *handler.ForecastHandler
	Outbox      *handler.OutboxHandler
	System      *handler.SystemHandler
}

// SettlementGroups builds one route group per resource
func SettlementGroups(h Handlers) []*Group {
	periods := NewGroup("/periods").
		GET("", h.Periods.List).
		POST("/:year/:month/lock", h.Periods.Lock).
		POST("/:year/:month/unlock", h.Periods.Unlock)

	parties := NewGroup("/parties").
		POST("", h.Parties.Create).
		POST("/link", h.Parties.Link).
		GET("/:id", h.Parties.Get).
		GET("/:id/balance", h.Parties.Balance).
		POST("/:id/deactivate", h.Parties.Deactivate)

	documents := NewGroup("/documents").
		POST("", h.Documents.Create).
		GET("", h.Documents.List).
		GET("/:id", h.Documents.Get).
		POST("/:id/post", h.Documents.Post).
		POST("/:id/cancel", h.Documents.Cancel).
		POST("/:id/reverse", h.Documents.Reverse)

	payments := NewGroup("/payments").
		POST("", h.Payments.Create).
		GET("/:id", h.Payments.Get).
		POST("/:id/confirm", h.Payments.Confirm).
		POST("/:id/cancel", h.Payments.Cancel).
		GET("/:id/suggestions", h.Payments.Suggestions).
		POST("/:id/allocations", h.Payments.Allocate)

	accounts := NewGroup("/accounts").
		GET("/balance", h.Payments.AccountBalance)

	allocations := NewGroup("/allocations").
		DELETE("/:id", h.Allocations.Delete)

	cheques := NewGroup("/cheques").
		POST("/receive", h.Cheques.Receive).
		POST("/issue", h.Cheques.Issue).
		GET("/:id", h.Cheques.Get).
		POST("/:id/release", h.Cheques.Release).
		POST("/:id/deposit", h.Cheques.Deposit).
		POST("/:id/collect", h.Cheques.Collect).
		POST("/:id/bounce", h.Cheques.Bounce).
		POST("/:id/endorse", h.Cheques.Endorse).
		POST("/:id/cancel", h.Cheques.Cancel)

	forecast := NewGroup("/forecast").
		GET("", h.Forecast.Get)

	outbox := NewGroup("/outbox").
		GET("/stats", h.Outbox.GetStats).
		GET("/dead", h.Outbox.GetDeadLetterEntries).
		POST("/dead/retry", h.Outbox.RetryAllDeadEntries).
		GET("/entries/:id", h.Outbox.GetEntry).
		POST("/entries/:id/retry", h.Outbox.RetryDeadEntry)

	system := NewGroup("/system").
		GET("/info", h.System.Info)

	return []*Group{periods, parties, documents, payments, accounts, allocations, cheques, forecast, outbox, system}
}
