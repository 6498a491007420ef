package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Mock answers verification from a table of scripted outcomes. References
// without a scripted outcome succeed with no reported amount.
type Mock struct {
	mu       sync.RWMutex
	outcomes map[string]*Transaction
	errs     map[string]error
	calls    int
}

func NewMock() *Mock {
	return &Mock{
		outcomes: make(map[string]*Transaction),
		errs:     make(map[string]error),
	}
}

func (m *Mock) Provider() Provider {
	return ProviderMock
}

// Script sets the answer for a reference.
func (m *Mock) Script(reference, txStatus string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.outcomes[reference] = &Transaction{
		Provider:      ProviderMock,
		Reference:     reference,
		TransactionID: "mock_" + uuid.NewString(),
		Status:        txStatus,
		Amount:        amount,
	}
}

// Fail makes verification of reference return err.
func (m *Mock) Fail(reference string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errs[reference] = err
}

func (m *Mock) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.calls
}

func (m *Mock) VerifyTransaction(ctx context.Context, req VerifyRequest) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.errs[req.Reference]; ok {
		return nil, fmt.Errorf("mock gateway: %w", err)
	}
	if tx, ok := m.outcomes[req.Reference]; ok {
		out := *tx
		return &out, nil
	}

	id := req.TransactionID
	if id == "" {
		id = "mock_" + uuid.NewString()
	}
	return &Transaction{
		Provider:      ProviderMock,
		Reference:     req.Reference,
		TransactionID: id,
		Status:        StatusSuccess,
	}, nil
}
