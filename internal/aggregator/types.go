// internal/aggregator/types.go
package aggregator

// OrderRequest asks the aggregation service for a ready-to-sign swap.
type OrderRequest struct {
	InputMint   string
	OutputMint  string
	Amount      string // atomic units as an unsigned integer string
	Taker       string
	SlippageBps *uint16
}

// OrderResponse is the aggregator's quote plus unsigned transaction.
type OrderResponse struct {
	RequestID            string `json:"requestId"`
	Transaction          string `json:"transaction"` // base64, unsigned
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	PriceImpactPct       string `json:"priceImpactPct"`
	SlippageBps          uint16 `json:"slippageBps"`

	// SimulatedSlippageBps is the service's own slippage estimate; absent
	// when it did not simulate.
	SimulatedSlippageBps *uint16 `json:"simulatedSlippageBps,omitempty"`

	ErrorMessage string `json:"error,omitempty"`
}

// ExecuteRequest submits a signed order for execution by the service.
type ExecuteRequest struct {
	SignedTransaction string `json:"signedTransaction"` // base64
	RequestID         string `json:"requestId"`
}

// ExecuteResponse reports the execution status of a submitted order.
type ExecuteResponse struct {
	Status    string `json:"status"` // Success | Failed
	Signature string `json:"signature,omitempty"`
	Code      int    `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}
