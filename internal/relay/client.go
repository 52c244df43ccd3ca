// internal/relay/client.go
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client submits atomic transaction bundles to a block-production relay.
// Bundles typically pair the swap transaction with a tip transfer to improve
// inclusion likelihood.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://mainnet.block-engine.jito.wtf/api/v1"
	}
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("relay rpc error %d: %s", e.Code, e.Message)
}

// TipAccounts returns the relay's current tip-payment addresses.
func (c *Client) TipAccounts(ctx context.Context) ([]string, error) {
	raw, err := c.call(ctx, "/bundles", "getTipAccounts", []interface{}{})
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode tip accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("relay returned no tip accounts")
	}
	return accounts, nil
}

// SendBundle submits base64-encoded signed transactions as one atomic bundle
// and returns the relay's bundle identifier.
func (c *Client) SendBundle(ctx context.Context, signedTxsBase64 []string) (string, error) {
	if len(signedTxsBase64) == 0 {
		return "", fmt.Errorf("empty bundle")
	}
	raw, err := c.call(ctx, "/bundles", "sendBundle", []interface{}{
		signedTxsBase64,
		map[string]string{"encoding": "base64"},
	})
	if err != nil {
		return "", err
	}
	var bundleID string
	if err := json.Unmarshal(raw, &bundleID); err != nil {
		return "", fmt.Errorf("decode bundle id: %w", err)
	}
	return bundleID, nil
}

func (c *Client) call(ctx context.Context, path, method string, params []interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("content-type", "application/json")

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("relay http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var rpcRes rpcResponse
	if err := json.Unmarshal(body, &rpcRes); err != nil {
		return nil, fmt.Errorf("decode relay response: %w", err)
	}
	if rpcRes.Error != nil {
		return nil, rpcRes.Error
	}
	return rpcRes.Result, nil
}
