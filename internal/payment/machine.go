package payment

import (
	"sync"

	"github.com/google/uuid"

	"github.com/deekay/bitcaptcha/internal/domain"
)

// State is one phase of the payment lifecycle.
type State string

const (
	StateIdle            State = "idle"
	StateCreatingInvoice State = "creating-invoice"
	StateAwaitingPayment State = "awaiting-payment"
	StateExternalPrompt  State = "external-payment-prompt"
	StateVerified        State = "verified" // terminal
	StateFailed          State = "failed"
)

// transitions is the complete set of legal (from, to) pairs. Anything
// absent is an orchestration bug and rejected loudly.
var transitions = map[State][]State{
	StateIdle:            {StateCreatingInvoice},
	StateCreatingInvoice: {StateAwaitingPayment, StateFailed},
	StateAwaitingPayment: {StateExternalPrompt, StateVerified, StateFailed},
	StateExternalPrompt:  {StateVerified, StateAwaitingPayment, StateFailed},
	StateVerified:        {},
	StateFailed:          {StateIdle},
}

// Data is the accumulated record of a session. Transitions merge into it
// field by field; it is never replaced wholesale.
type Data struct {
	Invoice     string
	PaymentHash string
	Preimage    string
	AmountMsat  int64
	SettledAt   int64
	ErrMessage  string
}

// merge copies the non-zero fields of patch over d.
func (d *Data) merge(patch Data) {
	if patch.Invoice != "" {
		d.Invoice = patch.Invoice
	}
	if patch.PaymentHash != "" {
		d.PaymentHash = patch.PaymentHash
	}
	if patch.Preimage != "" {
		d.Preimage = patch.Preimage
	}
	if patch.AmountMsat != 0 {
		d.AmountMsat = patch.AmountMsat
	}
	if patch.SettledAt != 0 {
		d.SettledAt = patch.SettledAt
	}
	if patch.ErrMessage != "" {
		d.ErrMessage = patch.ErrMessage
	}
}

// Token builds a verification token from the accumulated fields.
func (d Data) Token() domain.VerificationToken {
	return domain.VerificationToken{
		PaymentHash: d.PaymentHash,
		Preimage:    d.Preimage,
		SettledAt:   d.SettledAt,
	}
}

// Observer receives the new state and a copy of the full data bag after
// every successful transition, synchronously, in registration order.
type Observer func(state State, data Data)

type subscriber struct {
	id uuid.UUID
	fn Observer
}

// Machine is a strict state machine over the payment lifecycle.
type Machine struct {
	mu        sync.Mutex
	state     State
	data      Data
	observers []subscriber
}

// NewMachine returns a machine in the idle state with an empty data bag.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Data returns a copy of the accumulated data bag.
func (m *Machine) Data() Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Subscribe registers an observer and returns a handle for Unsubscribe.
func (m *Machine) Subscribe(fn Observer) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.observers = append(m.observers, subscriber{id: id, fn: fn})
	return id
}

// Unsubscribe removes the observer registered under id. Unknown handles
// are ignored.
func (m *Machine) Unsubscribe(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.observers {
		if sub.id == id {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

// Transition moves the machine to target, merging patch into the data bag,
// and notifies every observer. A (current, target) pair outside the
// transition table fails with a state error and changes nothing.
func (m *Machine) Transition(target State, patch Data) error {
	m.mu.Lock()
	if !legal(m.state, target) {
		from := m.state
		m.mu.Unlock()
		return domain.Ef(domain.ErrState, "illegal transition %s -> %s", from, target)
	}
	m.state = target
	m.data.merge(patch)
	state, data := m.state, m.data
	subs := make([]subscriber, len(m.observers))
	copy(subs, m.observers)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(state, data)
	}
	return nil
}

// Reset unconditionally forces idle and clears the data bag, bypassing the
// transition table. Observers are notified of the reset like any other
// change.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.state = StateIdle
	m.data = Data{}
	state, data := m.state, m.data
	subs := make([]subscriber, len(m.observers))
	copy(subs, m.observers)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.fn(state, data)
	}
}

func legal(from, to State) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
