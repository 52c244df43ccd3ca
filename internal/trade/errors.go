// internal/trade/errors.go
package trade

import (
	"fmt"
	"strings"
)

// SlippageExceededMessage is the single user-facing wording for every
// slippage failure, regardless of which layer detected it.
const SlippageExceededMessage = "slippage tolerance exceeded: price moved beyond the configured limit"

// InsufficientBalanceError is a terminal pre-flight failure: the wallet
// cannot cover the requested amount.
type InsufficientBalanceError struct {
	Asset     string // "SOL" or the token mint
	Requested uint64
	Available uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: requested %d, available %d",
		e.Asset, e.Requested, e.Available)
}

// SlippageExceededError is terminal and always renders the fixed message.
// The underlying simulation or submission error rides along as the cause.
type SlippageExceededError struct {
	Cause error
}

func (e *SlippageExceededError) Error() string { return SlippageExceededMessage }
func (e *SlippageExceededError) Unwrap() error { return e.Cause }

// TransactionFailedError reports an on-chain or simulation failure that is
// not slippage. LogTail carries the last few program log lines.
type TransactionFailedError struct {
	Signature string
	Reason    string
	LogTail   []string
	Cause     error
}

func (e *TransactionFailedError) Error() string {
	msg := "transaction failed"
	if e.Signature != "" {
		msg += " " + e.Signature
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.LogTail) > 0 {
		msg += "; logs: " + strings.Join(e.LogTail, " | ")
	}
	return msg
}

func (e *TransactionFailedError) Unwrap() error { return e.Cause }

// slippagePatterns match the program errors and log lines the AMM and
// aggregator emit when the price limit is violated. Error code 6004
// (0x1774) is the pool's explicit slippage check.
var slippagePatterns = []string{
	"slippage",
	"0x1774",
	"6004",
	"exceeds desired slippage",
	"too little received",
	"too much requested",
	"otheramountthreshold",
}

// isSlippageMessage reports whether a raw error message or log line matches
// a known slippage pattern.
func isSlippageMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range slippagePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// classifySimulation folds a simulation failure into either the fixed
// slippage error or a detailed transaction failure carrying the last log
// lines.
func classifySimulation(simErr interface{}, logs []string) error {
	reason := fmt.Sprintf("%v", simErr)
	if isSlippageMessage(reason) {
		return &SlippageExceededError{Cause: fmt.Errorf("simulation: %s", reason)}
	}
	for _, line := range logs {
		if isSlippageMessage(line) {
			return &SlippageExceededError{Cause: fmt.Errorf("simulation: %s", reason)}
		}
	}
	return &TransactionFailedError{
		Reason:  "simulation error: " + reason,
		LogTail: lastLogLines(logs, 5),
	}
}

func lastLogLines(logs []string, n int) []string {
	if len(logs) <= n {
		return logs
	}
	return logs[len(logs)-n:]
}

// FormatErrorChain renders err and up to depth wrapped causes, one per
// line, for display surfaces that want the full story.
func FormatErrorChain(err error, depth int) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	for i := 0; err != nil && i <= depth; i++ {
		if i > 0 {
			b.WriteString("\n  caused by: ")
		}
		b.WriteString(err.Error())
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		next := u.Unwrap()
		if next == nil || next.Error() == err.Error() {
			break
		}
		err = next
	}
	return b.String()
}
