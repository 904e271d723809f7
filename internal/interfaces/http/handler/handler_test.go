package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	appevent "github.com/erp/settlement/internal/application/event"
	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/event"
	"github.com/erp/settlement/internal/infrastructure/persistence"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// apiFixture serves the settlement routes over a sqlite store. Requests
// carry the fixture company unless anonymous is set.
type apiFixture struct {
	t         *testing.T
	engine    *gin.Engine
	db        *gorm.DB
	company   uuid.UUID
	actor     uuid.UUID
	bank      uuid.UUID
	anonymous bool
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.SettlementModels()...))

	store := persistence.NewGormStore(db, event.NewEventSerializer())
	engines := settlement.NewEngines(store,
		settlement.WithClock(shared.FixedClock(time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC))),
		settlement.WithDefaultCurrency("TRY"),
	)
	svc := appsettlement.NewService(engines)
	outbox := appevent.NewOutboxService(event.NewGormOutboxRepository(db), zap.NewNop())

	f := &apiFixture{t: t, db: db, company: uuid.New(), actor: uuid.New(), bank: uuid.New()}
	f.engine = gin.New()
	f.engine.Use(middleware.RequestID(), func(c *gin.Context) {
		if !f.anonymous {
			c.Set(middleware.JWTCompanyIDKey, f.company)
			c.Set(middleware.JWTActorIDKey, f.actor)
			c.Request = c.Request.WithContext(shared.WithActor(c.Request.Context(), f.actor))
		}
		c.Next()
	})

	api := f.engine.Group("/api/v1")
	periods := NewPeriodHandler(svc)
	api.GET("/periods", periods.List)
	api.POST("/periods/:year/:month/lock", periods.Lock)
	api.POST("/periods/:year/:month/unlock", periods.Unlock)

	parties := NewPartyHandler(svc)
	api.POST("/parties", parties.Create)
	api.POST("/parties/link", parties.Link)
	api.GET("/parties/:id", parties.Get)
	api.GET("/parties/:id/balance", parties.Balance)
	api.POST("/parties/:id/deactivate", parties.Deactivate)

	documents := NewDocumentHandler(svc)
	api.POST("/documents", documents.Create)
	api.GET("/documents", documents.List)
	api.GET("/documents/:id", documents.Get)
	api.POST("/documents/:id/post", documents.Post)
	api.POST("/documents/:id/cancel", documents.Cancel)
	api.POST("/documents/:id/reverse", documents.Reverse)

	payments := NewPaymentHandler(svc)
	api.POST("/payments", payments.Create)
	api.GET("/payments/:id", payments.Get)
	api.POST("/payments/:id/confirm", payments.Confirm)
	api.POST("/payments/:id/cancel", payments.Cancel)
	api.GET("/payments/:id/suggestions", payments.Suggestions)
	api.POST("/payments/:id/allocations", payments.Allocate)
	api.GET("/accounts/balance", payments.AccountBalance)

	allocations := NewAllocationHandler(svc)
	api.DELETE("/allocations/:id", allocations.Delete)

	cheques := NewChequeHandler(svc)
	api.POST("/cheques/receive", cheques.Receive)
	api.POST("/cheques/issue", cheques.Issue)
	api.GET("/cheques/:id", cheques.Get)
	api.POST("/cheques/:id/deposit", cheques.Deposit)
	api.POST("/cheques/:id/collect", cheques.Collect)
	api.POST("/cheques/:id/bounce", cheques.Bounce)
	api.POST("/cheques/:id/cancel", cheques.Cancel)

	api.GET("/forecast", NewForecastHandler(svc).Get)

	outboxHandler := NewOutboxHandler(outbox)
	api.GET("/outbox/stats", outboxHandler.GetStats)
	api.GET("/outbox/dead", outboxHandler.GetDeadLetterEntries)
	api.POST("/outbox/dead/retry", outboxHandler.RetryAllDeadEntries)
	api.GET("/outbox/entries/:id", outboxHandler.GetEntry)
	api.POST("/outbox/entries/:id/retry", outboxHandler.RetryDeadEntry)

	return f
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

// envelope decodes the standard response; data is decoded into out when set
func envelope(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var raw struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(raw.Data, out), string(raw.Data))
	}
	return raw.Response
}

func (f *apiFixture) party(partyType string) appsettlement.PartyResponse {
	f.t.Helper()
	w := f.do(http.MethodPost, "/parties", map[string]any{"name": "Ege Tekstil", "type": partyType})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	var p appsettlement.PartyResponse
	envelope(f.t, w, &p)
	return p
}

func (f *apiFixture) document(partyID uuid.UUID, docType, total, due string) appsettlement.DocumentResponse {
	f.t.Helper()
	w := f.do(http.MethodPost, "/documents", map[string]any{
		"type":          docType,
		"party_id":      partyID,
		"document_date": "2026-03-02",
		"due_date":      due,
		"total_amount":  total,
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	var d appsettlement.DocumentResponse
	envelope(f.t, w, &d)
	return d
}

func (f *apiFixture) confirmedPayment(partyID uuid.UUID, payType, amount string) appsettlement.PaymentResponse {
	f.t.Helper()
	w := f.do(http.MethodPost, "/payments", map[string]any{
		"type":            payType,
		"party_id":        partyID,
		"bank_account_id": f.bank,
		"payment_date":    "2026-03-10",
		"amount":          amount,
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	var p appsettlement.PaymentResponse
	envelope(f.t, w, &p)

	w = f.do(http.MethodPost, "/payments/"+p.ID.String()+"/confirm", nil)
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	envelope(f.t, w, &p)
	return p
}
