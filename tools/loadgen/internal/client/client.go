// Package client is a thin HTTP client for the settlement API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/erp/settlement/tools/loadgen/internal/config"
	"github.com/erp/settlement/tools/loadgen/internal/generator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes the runner reacts to.
const (
	CodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	CodeInsufficientBalance = "ERR_INSUFFICIENT_BALANCE"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsConflict reports whether err is a retryable concurrency conflict.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeConcurrencyConflict
}

// IsRejected reports whether the server refused the request for a business
// reason, as opposed to failing.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the settlement API with a bearer token.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// New creates a client for the configured target.
func New(cfg config.TargetConfig) *Client {
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: cfg.APIBase(),
		token:   cfg.Token,
	}
}

// Do sends body as JSON and decodes the data member of the envelope into out.
// Mutating requests carry a fresh Idempotency-Key.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "settlement-loadgen/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
		}
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding data: %w", err)
		}
	}
	return nil
}

// Resource is the subset of a created entity the runner tracks.
type Resource struct {
	ID              uuid.UUID       `json:"id"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	Amount          decimal.Decimal `json:"amount"`
}

// CreateParty posts a party.
func (c *Client) CreateParty(ctx context.Context, body generator.PartyBody) (Resource, error) {
	var r Resource
	err := c.Do(ctx, http.MethodPost, "/parties", body, &r)
	return r, err
}

// CreateDocument posts a document.
func (c *Client) CreateDocument(ctx context.Context, body generator.DocumentBody) (Resource, error) {
	var r Resource
	err := c.Do(ctx, http.MethodPost, "/documents", body, &r)
	return r, err
}

// GetDocument fetches a document.
func (c *Client) GetDocument(ctx context.Context, id uuid.UUID) (Resource, error) {
	var r Resource
	err := c.Do(ctx, http.MethodGet, "/documents/"+id.String(), nil, &r)
	return r, err
}

// CreateConfirmedPayment posts a payment and confirms it.
func (c *Client) CreateConfirmedPayment(ctx context.Context, body generator.PaymentBody) (Resource, error) {
	var r Resource
	if err := c.Do(ctx, http.MethodPost, "/payments", body, &r); err != nil {
		return r, err
	}
	err := c.Do(ctx, http.MethodPost, "/payments/"+r.ID.String()+"/confirm", nil, &r)
	return r, err
}

// AllocationLine is one document and amount of an allocation request.
type AllocationLine struct {
	DocumentID uuid.UUID       `json:"document_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// Allocate applies a payment to the given lines, or to the server's
// suggestion when lines is empty.
func (c *Client) Allocate(ctx context.Context, paymentID uuid.UUID, lines []AllocationLine) error {
	body := map[string]any{"lines": lines, "use_suggestion": len(lines) == 0}
	return c.Do(ctx, http.MethodPost, "/payments/"+paymentID.String()+"/allocations", body, nil)
}

// Get issues a GET and discards the data.
func (c *Client) Get(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodGet, path, nil, nil)
}
