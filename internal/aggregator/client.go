// internal/aggregator/client.go
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the external quote-aggregation service. It returns
// unsigned swap transactions sourced across liquidity venues and reports
// execution status for signed orders.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://lite-api.jup.ag/ultra/v1"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

// HTTPError carries a non-2xx aggregator response.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("aggregator http %d", e.StatusCode)
	}
	return fmt.Sprintf("aggregator http %d: %s", e.StatusCode, b)
}

// GetOrder fetches a quote and unsigned transaction for the given pair and
// amount. A response carrying an error string is surfaced as an error even
// on HTTP 200.
func (c *Client) GetOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, fmt.Errorf("amount is required")
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount)
	if req.Taker != "" {
		q.Set("taker", req.Taker)
	}
	if req.SlippageBps != nil {
		q.Set("slippageBps", fmt.Sprintf("%d", *req.SlippageBps))
	}

	body, err := c.do(ctx, http.MethodGet, "/order?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var out OrderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode aggregator order response: %w", err)
	}
	if out.ErrorMessage != "" {
		return nil, fmt.Errorf("aggregator order failed: %s", out.ErrorMessage)
	}
	return &out, nil
}

// Execute submits a signed, base64-encoded order and reports its status.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	if req.SignedTransaction == "" {
		return nil, fmt.Errorf("signedTransaction is required")
	}
	if req.RequestID == "" {
		return nil, fmt.Errorf("requestId is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, "/execute", payload)
	if err != nil {
		return nil, err
	}

	var out ExecuteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode aggregator execute response: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("content-type", "application/json")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	return body, nil
}
