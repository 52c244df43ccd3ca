// internal/relay/client_test.go
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relayServer(t *testing.T, handler func(method string, params []interface{}) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bundles", r.URL.Path)

		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method, req.Params)
		raw, err := json.Marshal(result)
		require.NoError(t, err)
		json.NewEncoder(w).Encode(rpcResponse{
			Result: raw,
			Error:  rpcErr,
		})
	}))
}

func TestTipAccounts(t *testing.T) {
	want := []string{
		"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
		"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	}
	srv := relayServer(t, func(method string, _ []interface{}) (interface{}, *rpcError) {
		assert.Equal(t, "getTipAccounts", method)
		return want, nil
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.TipAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSendBundle(t *testing.T) {
	var gotTxs []interface{}
	srv := relayServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		assert.Equal(t, "sendBundle", method)
		require.Len(t, params, 2)
		gotTxs = params[0].([]interface{})

		opts := params[1].(map[string]interface{})
		assert.Equal(t, "base64", opts["encoding"])
		return "bundle-id-1", nil
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	id, err := c.SendBundle(context.Background(), []string{"dHgx", "dHgy"})
	require.NoError(t, err)
	assert.Equal(t, "bundle-id-1", id)
	assert.Equal(t, []interface{}{"dHgx", "dHgy"}, gotTxs)
}

func TestSendBundle_RPCError(t *testing.T) {
	srv := relayServer(t, func(string, []interface{}) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32602, Message: "bundle too large"}
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SendBundle(context.Background(), []string{"dHgx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundle too large")
}

func TestSendBundle_EmptyRejected(t *testing.T) {
	c := NewClient("http://localhost:0")
	_, err := c.SendBundle(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewClient_DefaultURL(t *testing.T) {
	c := NewClient("")
	assert.NotEmpty(t, c.BaseURL)
}
