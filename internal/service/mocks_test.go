package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pina-onboarding/internal/domain"
	"pina-onboarding/internal/repository"
)

// countingRepo envuelve el store en memoria y cuenta llamadas por operacion.
type countingRepo struct {
	*repository.MemoryCreatorRepository

	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newCountingRepo() *countingRepo {
	return &countingRepo{
		MemoryCreatorRepository: repository.NewMemoryCreatorRepository(),
		calls:                   make(map[string]int),
	}
}

func (r *countingRepo) count(op string) {
	r.mu.Lock()
	r.calls[op]++
	r.mu.Unlock()
}

func (r *countingRepo) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *countingRepo) Create(ctx context.Context, c domain.Creator) (domain.Creator, error) {
	r.count("Create")
	if r.err != nil {
		return domain.Creator{}, r.err
	}
	return r.MemoryCreatorRepository.Create(ctx, c)
}

func (r *countingRepo) GetByEmail(ctx context.Context, email string) (domain.Creator, error) {
	r.count("GetByEmail")
	if r.err != nil {
		return domain.Creator{}, r.err
	}
	return r.MemoryCreatorRepository.GetByEmail(ctx, email)
}

func (r *countingRepo) GetByNationalID(ctx context.Context, nationalID string) (domain.Creator, error) {
	r.count("GetByNationalID")
	return r.MemoryCreatorRepository.GetByNationalID(ctx, nationalID)
}

func (r *countingRepo) CompleteVerification(ctx context.Context, id string, attempt int64, status domain.VerificationStatus) (bool, error) {
	r.count("CompleteVerification")
	return r.MemoryCreatorRepository.CompleteVerification(ctx, id, attempt, status)
}

func (r *countingRepo) IncrementTokenVersion(ctx context.Context, id string) (domain.Creator, error) {
	r.count("IncrementTokenVersion")
	return r.MemoryCreatorRepository.IncrementTokenVersion(ctx, id)
}

// fakeSigner codifica los claims sin criptografia.
type fakeSigner struct {
	mu     sync.Mutex
	seq    int
	issued map[string]Claims
}

func newFakeSigner() *fakeSigner {
	return &fakeSigner{issued: make(map[string]Claims)}
}

func (f *fakeSigner) Sign(claims Claims, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	token := claims.TokenType + "-" + claims.UserID + "-" + strconv.Itoa(f.seq)
	f.issued[token] = claims
	return token, nil
}

func (f *fakeSigner) Verify(token string) (Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claims, ok := f.issued[token]
	if !ok {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

type recordingSender struct {
	mu       sync.Mutex
	to       []string
	statuses []domain.VerificationStatus
}

func (s *recordingSender) SendVerificationResult(_ context.Context, toEmail, _ string, status domain.VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = append(s.to, toEmail)
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *recordingSender) Statuses() []domain.VerificationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.VerificationStatus(nil), s.statuses...)
}

func fastHasher() *BcryptHasher {
	return NewBcryptHasher(bcrypt.MinCost)
}

func drain(t *testing.T, svc *RegistrationService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Drain(ctx); err != nil {
		t.Fatalf("background verification did not finish: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
