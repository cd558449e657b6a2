package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pina-onboarding/internal/domain"
	"pina-onboarding/internal/kyc"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newRegistrationService(repo *countingRepo, provider kyc.Provider) *RegistrationService {
	svc := NewRegistrationService(zap.NewNop(), repo, provider, fastHasher(), nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func validInput() RegistrationInput {
	return RegistrationInput{
		FullName:   "Ana Perez",
		Email:      "Ana@Example.com",
		NationalID: "30111222",
		BirthDate:  time.Date(1995, time.June, 2, 0, 0, 0, 0, time.UTC),
		SelfiePath: "evidence/selfie/1",
		PhotoPath:  "evidence/photo/1",
	}
}

func TestStartRegistration_UnderageFailsWithoutWrites(t *testing.T) {
	repo := newCountingRepo()
	svc := newRegistrationService(repo, kyc.NewRuleProvider(0))

	in := validInput()
	in.BirthDate = fixedNow.AddDate(-18, 0, 1)
	_, err := svc.StartRegistration(context.Background(), in)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(domain.Message(err), "at least 18") {
		t.Fatalf("unexpected message: %q", domain.Message(err))
	}
	if repo.Calls("Create") != 0 || repo.Calls("GetByEmail") != 0 {
		t.Fatalf("expected no store access, got %+v", repo.calls)
	}
}

func TestStartRegistration_ExactlyEighteenIsPendingThenVerified(t *testing.T) {
	repo := newCountingRepo()
	sender := &recordingSender{}
	svc := NewRegistrationService(zap.NewNop(), repo, kyc.NewRuleProvider(0), fastHasher(), sender)
	svc.now = func() time.Time { return fixedNow }

	in := validInput()
	in.BirthDate = time.Date(2008, time.March, 15, 0, 0, 0, 0, time.UTC)
	res, err := svc.StartRegistration(context.Background(), in)
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if res.Status != domain.VerificationPending || res.UserID == "" || res.Message == "" {
		t.Fatalf("unexpected response: %+v", res)
	}

	drain(t, svc)

	status, err := svc.GetStatus(context.Background(), res.UserID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.Status != domain.VerificationVerified {
		t.Fatalf("expected verified for even national id, got %s", status.Status)
	}
	if got := sender.Statuses(); len(got) != 1 || got[0] != domain.VerificationVerified {
		t.Fatalf("expected one verified notification, got %+v", got)
	}

	stored, _ := repo.GetByID(context.Background(), res.UserID)
	if stored.Email != "ana@example.com" || stored.Provider != domain.ProviderCredentials {
		t.Fatalf("unexpected stored creator: %+v", stored)
	}
	if stored.PasswordHash != nil {
		t.Fatalf("expected null credential without password")
	}
}

func TestStartRegistration_OddNationalIDIsRejected(t *testing.T) {
	repo := newCountingRepo()
	svc := newRegistrationService(repo, kyc.NewRuleProvider(0))

	in := validInput()
	in.NationalID = "30111223"
	res, err := svc.StartRegistration(context.Background(), in)
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	drain(t, svc)

	status, _ := svc.GetStatus(context.Background(), res.UserID)
	if status.Status != domain.VerificationRejected {
		t.Fatalf("expected rejected, got %s", status.Status)
	}
}

func TestStartRegistration_EmailConflictShortCircuits(t *testing.T) {
	repo := newCountingRepo()
	svc := newRegistrationService(repo, kyc.NewRuleProvider(0))

	if _, err := svc.StartRegistration(context.Background(), validInput()); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	drain(t, svc)
	before := repo.Calls("GetByNationalID")

	in := validInput()
	in.NationalID = "40999888"
	_, err := svc.StartRegistration(context.Background(), in)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if repo.Calls("GetByNationalID") != before {
		t.Fatalf("expected no national id lookup after email conflict")
	}
}

func TestStartRegistration_NationalIDConflict(t *testing.T) {
	repo := newCountingRepo()
	svc := newRegistrationService(repo, kyc.NewRuleProvider(0))

	if _, err := svc.StartRegistration(context.Background(), validInput()); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	in := validInput()
	in.Email = "otra@example.com"
	_, err := svc.StartRegistration(context.Background(), in)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !strings.Contains(domain.Message(err), "national id") {
		t.Fatalf("unexpected message: %q", domain.Message(err))
	}
	drain(t, svc)
}

func TestStartRegistration_HashesPasswordAndNormalizesPhone(t *testing.T) {
	repo := newCountingRepo()
	hasher := fastHasher()
	svc := NewRegistrationService(zap.NewNop(), repo, &kyc.MockProvider{Status: domain.VerificationVerified}, hasher, nil)

	in := validInput()
	in.Password = "s3cret-pass"
	in.Phone = "011 4321-5678"
	res, err := svc.StartRegistration(context.Background(), in)
	if err != nil {
		t.Fatalf("registration: %v", err)
	}
	drain(t, svc)

	stored, _ := repo.GetByID(context.Background(), res.UserID)
	if !stored.HasPassword() || *stored.PasswordHash == "s3cret-pass" {
		t.Fatalf("expected hashed password")
	}
	if !hasher.Compare("s3cret-pass", *stored.PasswordHash) {
		t.Fatalf("expected stored hash to match password")
	}
	if domain.StringValue(stored.Phone) != "+541143215678" {
		t.Fatalf("expected E.164 phone, got %q", domain.StringValue(stored.Phone))
	}
}

func TestStartRegistration_InvalidInput(t *testing.T) {
	cases := map[string]func(*RegistrationInput){
		"bad email":     func(in *RegistrationInput) { in.Email = "not-an-email" },
		"no name":       func(in *RegistrationInput) { in.FullName = "  " },
		"no national":   func(in *RegistrationInput) { in.NationalID = "" },
		"no birth date": func(in *RegistrationInput) { in.BirthDate = time.Time{} },
		"future birth":  func(in *RegistrationInput) { in.BirthDate = fixedNow.AddDate(0, 0, 1) },
		"no selfie":     func(in *RegistrationInput) { in.SelfiePath = "" },
		"short pass":    func(in *RegistrationInput) { in.Password = "abc" },
		"bad phone":     func(in *RegistrationInput) { in.Phone = "12" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newCountingRepo()
			svc := newRegistrationService(repo, kyc.NewRuleProvider(0))
			in := validInput()
			mutate(&in)
			_, err := svc.StartRegistration(context.Background(), in)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if repo.Calls("Create") != 0 {
				t.Fatalf("expected no writes")
			}
		})
	}
}

func TestStartRegistration_ReturnsBeforeVerificationCompletes(t *testing.T) {
	repo := newCountingRepo()
	provider := &kyc.MockProvider{Status: domain.VerificationVerified, Release: make(chan struct{})}
	svc := newRegistrationService(repo, provider)

	res, err := svc.StartRegistration(context.Background(), validInput())
	if err != nil {
		t.Fatalf("registration: %v", err)
	}
	status, _ := svc.GetStatus(context.Background(), res.UserID)
	if status.Status != domain.VerificationPending {
		t.Fatalf("expected pending while provider is blocked, got %s", status.Status)
	}

	close(provider.Release)
	drain(t, svc)
	if len(provider.Calls()) != 1 {
		t.Fatalf("expected exactly one verification task, got %d", len(provider.Calls()))
	}
	status, _ = svc.GetStatus(context.Background(), res.UserID)
	if status.Status != domain.VerificationVerified {
		t.Fatalf("expected verified after release, got %s", status.Status)
	}
}

func TestGetStatus_NotFound(t *testing.T) {
	svc := newRegistrationService(newCountingRepo(), kyc.NewRuleProvider(0))
	if _, err := svc.GetStatus(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// gatedProvider responde segun la selfie del snapshot y espera su compuerta.
type gatedProvider struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	results map[string]domain.VerificationStatus
	seen    []string
}

func (p *gatedProvider) Verify(ctx context.Context, creator domain.Creator) (domain.VerificationStatus, error) {
	selfie := domain.StringValue(creator.SelfiePath)
	p.mu.Lock()
	p.seen = append(p.seen, selfie)
	gate := p.gates[selfie]
	p.mu.Unlock()
	select {
	case <-gate:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return p.results[selfie], nil
}

func (p *gatedProvider) Seen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func TestRetryVerification_LatestAttemptWins(t *testing.T) {
	repo := newCountingRepo()
	provider := &gatedProvider{
		gates: map[string]chan struct{}{
			"evidence/selfie/1": make(chan struct{}),
			"evidence/selfie/2": make(chan struct{}),
		},
		results: map[string]domain.VerificationStatus{
			"evidence/selfie/1": domain.VerificationVerified,
			"evidence/selfie/2": domain.VerificationRejected,
		},
	}
	svc := newRegistrationService(repo, provider)

	res, err := svc.StartRegistration(context.Background(), validInput())
	if err != nil {
		t.Fatalf("registration: %v", err)
	}
	waitFor(t, func() bool { return provider.Seen() == 1 }, "first verification to reach provider")

	retry, err := svc.RetryVerification(context.Background(), res.UserID, "evidence/selfie/2", "evidence/photo/2")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.Status != domain.VerificationPending || retry.UserID != res.UserID {
		t.Fatalf("unexpected retry response: %+v", retry)
	}
	stored, _ := repo.GetByID(context.Background(), res.UserID)
	if domain.StringValue(stored.SelfiePath) != "evidence/selfie/2" || domain.StringValue(stored.PhotoPath) != "evidence/photo/2" {
		t.Fatalf("expected evidence paths updated, got %+v", stored)
	}
	waitFor(t, func() bool { return provider.Seen() == 2 }, "retry verification to reach provider")

	close(provider.gates["evidence/selfie/2"])
	waitFor(t, func() bool { return repo.Calls("CompleteVerification") == 1 }, "retry outcome to be stored")
	close(provider.gates["evidence/selfie/1"])
	drain(t, svc)

	status, _ := svc.GetStatus(context.Background(), res.UserID)
	if status.Status != domain.VerificationRejected {
		t.Fatalf("expected latest attempt outcome (rejected), got %s", status.Status)
	}
}

func TestRetryVerification_ReopensFinalStatus(t *testing.T) {
	repo := newCountingRepo()
	provider := &kyc.MockProvider{Status: domain.VerificationRejected}
	svc := newRegistrationService(repo, provider)

	res, err := svc.StartRegistration(context.Background(), validInput())
	if err != nil {
		t.Fatalf("registration: %v", err)
	}
	drain(t, svc)

	provider.Status = domain.VerificationVerified
	if _, err := svc.RetryVerification(context.Background(), res.UserID, "s2", "p2"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	drain(t, svc)
	status, _ := svc.GetStatus(context.Background(), res.UserID)
	if status.Status != domain.VerificationVerified {
		t.Fatalf("expected verified after retry, got %s", status.Status)
	}
}

func TestRetryVerification_Errors(t *testing.T) {
	svc := newRegistrationService(newCountingRepo(), kyc.NewRuleProvider(0))
	if _, err := svc.RetryVerification(context.Background(), "missing", "s", "p"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.RetryVerification(context.Background(), "missing", "", "p"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyInBackground_MissingCreatorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	svc := NewRegistrationService(zap.New(core), newCountingRepo(), kyc.NewRuleProvider(0), fastHasher(), nil)

	svc.verifyInBackground(context.Background(), "ghost", 1)

	entries := logs.FilterMessage("verification skipped: creator not found").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn log for missing creator, got %+v", logs.All())
	}
}

func TestVerifyInBackground_ProviderErrorLeavesPending(t *testing.T) {
	repo := newCountingRepo()
	svc := newRegistrationService(repo, &kyc.MockProvider{Err: errors.New("provider down")})

	res, err := svc.StartRegistration(context.Background(), validInput())
	if err != nil {
		t.Fatalf("registration: %v", err)
	}
	drain(t, svc)

	status, _ := svc.GetStatus(context.Background(), res.UserID)
	if status.Status != domain.VerificationPending {
		t.Fatalf("expected pending after provider failure, got %s", status.Status)
	}
	if repo.Calls("CompleteVerification") != 0 {
		t.Fatalf("expected no outcome write")
	}
}

func TestAgeAt(t *testing.T) {
	now := time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC)
	if got := ageAt(time.Date(2008, time.February, 29, 0, 0, 0, 0, time.UTC), now); got != 17 {
		t.Fatalf("expected 17 before leap birthday, got %d", got)
	}
	if got := ageAt(time.Date(2008, time.February, 28, 0, 0, 0, 0, time.UTC), now); got != 18 {
		t.Fatalf("expected 18 on birthday, got %d", got)
	}
}
