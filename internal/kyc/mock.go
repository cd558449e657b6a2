package kyc

import (
	"context"
	"sync"

	"pina-onboarding/internal/domain"
)

// MockProvider permite tests sin un proveedor real. Si Release no es nil,
// Verify espera a que se cierre (o se envie) antes de responder.
type MockProvider struct {
	Status  domain.VerificationStatus
	Err     error
	Release chan struct{}

	mu    sync.Mutex
	calls []domain.Creator
}

func (m *MockProvider) Verify(ctx context.Context, creator domain.Creator) (domain.VerificationStatus, error) {
	m.mu.Lock()
	m.calls = append(m.calls, creator)
	m.mu.Unlock()

	if m.Release != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-m.Release:
		}
	}
	return m.Status, m.Err
}

// Calls devuelve las creadoras recibidas hasta ahora.
func (m *MockProvider) Calls() []domain.Creator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Creator(nil), m.calls...)
}
