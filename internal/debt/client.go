package debt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/zombor/invoice-analyzer/internal/metrics"
)

// DefaultDebtURL is the production debt query endpoint.
const DefaultDebtURL = "https://services.prod.tapila.cloud/debts"

// StatusError is a non-2xx answer from the login or debt service.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Tokens supplies the authorization token for debt queries.
type Tokens interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client sends debt queries. It does not retry.
type Client struct {
	url     string
	apiKey  string
	tokens  Tokens
	client  *http.Client
	metrics *metrics.Metrics
}

// NewClient creates a debt service client. m may be nil.
func NewClient(url, apiKey string, tokens Tokens, client *http.Client, m *metrics.Metrics) *Client {
	if url == "" {
		url = DefaultDebtURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{url: url, apiKey: apiKey, tokens: tokens, client: client, metrics: m}
}

// Query sends q and returns the raw JSON answer.
func (c *Client) Query(ctx context.Context, q Query) (json.RawMessage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-authorization-token", token)

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.IncrementDebtQuery("error")
		return nil, fmt.Errorf("calling debt service: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.IncrementDebtQuery(fmt.Sprintf("%dxx", resp.StatusCode/100))

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.tokens.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("debt query rejected", "status", resp.StatusCode, "company_code", q.CompanyCode, "modality_id", q.ModalityID)
		return nil, &StatusError{Op: "debt query", StatusCode: resp.StatusCode, Body: string(b)}
	}

	if !json.Valid(b) {
		return nil, fmt.Errorf("debt service returned invalid JSON")
	}

	slog.Info("debt query answered", "company_code", q.CompanyCode, "modality_id", q.ModalityID, "request_id", q.ExternalRequestID)
	return json.RawMessage(b), nil
}
