// internal/trade/phase.go
package trade

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase is one stage of a trade's lifecycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAwaitingSignature
	PhaseSending
	PhaseConfirming
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingSignature:
		return "awaiting-signature"
	case PhaseSending:
		return "sending"
	case PhaseConfirming:
		return "confirming"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// successResetAfter is how long a finished trade shows Success before the
// machine returns to Idle on its own.
const successResetAfter = 3 * time.Second

// validNext lists the forward transitions. Error is reachable from any
// active phase; Success only from Confirming.
var validNext = map[Phase][]Phase{
	PhaseIdle:              {PhaseAwaitingSignature},
	PhaseAwaitingSignature: {PhaseSending, PhaseError},
	PhaseSending:           {PhaseConfirming, PhaseError},
	PhaseConfirming:        {PhaseSuccess, PhaseError},
	PhaseSuccess:           {PhaseIdle},
	PhaseError:             {PhaseIdle},
}

// StateMachine tracks the lifecycle of the executor's current trade.
// Success auto-resets to Idle after a fixed window; Error resets on demand.
type StateMachine struct {
	mu       sync.Mutex
	phase    Phase
	logger   *zap.Logger
	onChange func(Phase)
	resetTmr *time.Timer
}

func NewStateMachine(logger *zap.Logger) *StateMachine {
	return &StateMachine{
		phase:  PhaseIdle,
		logger: logger.Named("trade-state"),
	}
}

// OnChange registers a phase observer. Must be set before the machine runs.
func (m *StateMachine) OnChange(fn func(Phase)) {
	m.onChange = fn
}

func (m *StateMachine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Transition moves to next if the step is legal.
func (m *StateMachine) Transition(next Phase) error {
	m.mu.Lock()
	current := m.phase
	for _, allowed := range validNext[current] {
		if allowed != next {
			continue
		}
		m.setLocked(next)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return fmt.Errorf("illegal trade phase transition %s -> %s", current, next)
}

// Fail forces the Error phase from any active phase. Already-terminal
// phases are left alone.
func (m *StateMachine) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == PhaseIdle || m.phase == PhaseSuccess || m.phase == PhaseError {
		return
	}
	m.setLocked(PhaseError)
}

// Reset returns an Error machine to Idle. A no-op in any other phase.
func (m *StateMachine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseError {
		return
	}
	m.setLocked(PhaseIdle)
}

func (m *StateMachine) setLocked(next Phase) {
	prev := m.phase
	m.phase = next
	m.logger.Debug("trade phase",
		zap.String("from", prev.String()),
		zap.String("to", next.String()))
	if m.onChange != nil {
		m.onChange(next)
	}

	if m.resetTmr != nil {
		m.resetTmr.Stop()
		m.resetTmr = nil
	}
	if next == PhaseSuccess {
		m.resetTmr = time.AfterFunc(successResetAfter, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.phase == PhaseSuccess {
				m.setLocked(PhaseIdle)
			}
		})
	}
}
