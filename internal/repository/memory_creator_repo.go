package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"pina-onboarding/internal/domain"
)

// MemoryCreatorRepository es un CreatorRepository en memoria para desarrollo y tests.
// Aplica las mismas restricciones de unicidad que el esquema de Postgres.
type MemoryCreatorRepository struct {
	mu         sync.RWMutex
	byID       map[string]domain.Creator
	byEmail    map[string]string
	byNational map[string]string
	byProvider map[string]string
	now        func() time.Time
}

func NewMemoryCreatorRepository() *MemoryCreatorRepository {
	return &MemoryCreatorRepository{
		byID:       make(map[string]domain.Creator),
		byEmail:    make(map[string]string),
		byNational: make(map[string]string),
		byProvider: make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func providerKey(provider domain.Provider, providerID string) string {
	return string(provider) + "|" + providerID
}

func (m *MemoryCreatorRepository) Create(_ context.Context, c domain.Creator) (domain.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[c.ID]; ok {
		return domain.Creator{}, fmt.Errorf("%w: creators_pkey", ErrDuplicate)
	}
	if _, ok := m.byEmail[c.Email]; ok {
		return domain.Creator{}, fmt.Errorf("%w: creators_email_key", ErrDuplicate)
	}
	if c.NationalID != nil {
		if _, ok := m.byNational[*c.NationalID]; ok {
			return domain.Creator{}, fmt.Errorf("%w: creators_national_id_key", ErrDuplicate)
		}
	}
	if c.ProviderID != nil {
		if _, ok := m.byProvider[providerKey(c.Provider, *c.ProviderID)]; ok {
			return domain.Creator{}, fmt.Errorf("%w: creators_provider_provider_id_key", ErrDuplicate)
		}
	}

	now := m.now()
	c.TokenVersion = 0
	c.CreatedAt = now
	c.UpdatedAt = now
	m.byID[c.ID] = c
	m.byEmail[c.Email] = c.ID
	if c.NationalID != nil {
		m.byNational[*c.NationalID] = c.ID
	}
	if c.ProviderID != nil {
		m.byProvider[providerKey(c.Provider, *c.ProviderID)] = c.ID
	}
	return c, nil
}

func (m *MemoryCreatorRepository) GetByID(_ context.Context, id string) (domain.Creator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.Creator{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *MemoryCreatorRepository) lookup(index map[string]string, key string) (domain.Creator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := index[key]
	if !ok {
		return domain.Creator{}, pgx.ErrNoRows
	}
	return m.byID[id], nil
}

func (m *MemoryCreatorRepository) GetByEmail(_ context.Context, email string) (domain.Creator, error) {
	return m.lookup(m.byEmail, email)
}

func (m *MemoryCreatorRepository) GetByNationalID(_ context.Context, nationalID string) (domain.Creator, error) {
	return m.lookup(m.byNational, nationalID)
}

func (m *MemoryCreatorRepository) GetByProvider(_ context.Context, provider domain.Provider, providerID string) (domain.Creator, error) {
	return m.lookup(m.byProvider, providerKey(provider, providerID))
}

func (m *MemoryCreatorRepository) ResetVerification(_ context.Context, id, selfiePath, photoPath string) (domain.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.Creator{}, pgx.ErrNoRows
	}
	c.SelfiePath = domain.StringPtr(selfiePath)
	c.PhotoPath = domain.StringPtr(photoPath)
	c.VerificationStatus = domain.VerificationPending
	c.VerificationAttempt++
	c.UpdatedAt = m.now()
	m.byID[id] = c
	return c, nil
}

func (m *MemoryCreatorRepository) CompleteVerification(_ context.Context, id string, attempt int64, status domain.VerificationStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok || c.VerificationAttempt != attempt {
		return false, nil
	}
	c.VerificationStatus = status
	c.UpdatedAt = m.now()
	m.byID[id] = c
	return true, nil
}

func (m *MemoryCreatorRepository) IncrementTokenVersion(_ context.Context, id string) (domain.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return domain.Creator{}, pgx.ErrNoRows
	}
	c.TokenVersion++
	c.UpdatedAt = m.now()
	m.byID[id] = c
	return c, nil
}

func (m *MemoryCreatorRepository) Ping(context.Context) error {
	return nil
}
