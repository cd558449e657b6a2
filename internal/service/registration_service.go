package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"pina-onboarding/internal/domain"
	"pina-onboarding/internal/email"
	"pina-onboarding/internal/kyc"
	"pina-onboarding/internal/repository"
)

const tracerName = "pina-onboarding/internal/service"

// RegistrationService registra creadoras y corre la verificacion de identidad en segundo plano.
//
// Cada verificacion lleva el numero de intento vigente al despacharse; el resultado
// solo se guarda si ese intento sigue siendo el ultimo, asi un reintento nunca queda
// pisado por un chequeo anterior que termina mas tarde.
type RegistrationService struct {
	logger   *zap.Logger
	creators repository.CreatorRepository
	provider kyc.Provider
	hasher   PasswordHasher
	notifier email.Sender
	tracer   trace.Tracer
	now      func() time.Time
	jobs     sync.WaitGroup
}

// NewRegistrationService crea el servicio; notifier es opcional.
func NewRegistrationService(logger *zap.Logger, creators repository.CreatorRepository, provider kyc.Provider, hasher PasswordHasher, notifier email.Sender) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultSaltRounds)
	}
	return &RegistrationService{
		logger:   logger,
		creators: creators,
		provider: provider,
		hasher:   hasher,
		notifier: notifier,
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// StartRegistration persiste la creadora en pending y despacha la verificacion sin esperarla.
func (s *RegistrationService) StartRegistration(ctx context.Context, input RegistrationInput) (domain.VerificationSnapshot, error) {
	input.normalize()
	now := s.now()
	if err := input.Validate(now); err != nil {
		return domain.VerificationSnapshot{}, domain.Validation(err.Error())
	}
	if ageAt(input.BirthDate, now) < minimumAge {
		return domain.VerificationSnapshot{}, domain.Validation(fmt.Sprintf("must be at least %d years old", minimumAge))
	}

	if _, err := s.creators.GetByEmail(ctx, input.Email); err == nil {
		return domain.VerificationSnapshot{}, domain.Conflict("a creator with this email already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.VerificationSnapshot{}, fmt.Errorf("find creator by email: %w", err)
	}
	if _, err := s.creators.GetByNationalID(ctx, input.NationalID); err == nil {
		return domain.VerificationSnapshot{}, domain.Conflict("a creator with this national id already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.VerificationSnapshot{}, fmt.Errorf("find creator by national id: %w", err)
	}

	var passwordHash *string
	if input.Password != "" {
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return domain.VerificationSnapshot{}, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = &hash
	}
	var phone *string
	if input.Phone != "" {
		normalized, err := normalizePhone(input.Phone)
		if err != nil {
			return domain.VerificationSnapshot{}, domain.Validation("phone: must be a valid phone number.")
		}
		phone = &normalized
	}

	creator, err := s.creators.Create(ctx, domain.Creator{
		ID:                  uuid.NewString(),
		FullName:            input.FullName,
		Email:               input.Email,
		NationalID:          domain.StringPtr(input.NationalID),
		Phone:               phone,
		BirthDate:           input.BirthDate.UTC(),
		PasswordHash:        passwordHash,
		Provider:            domain.ProviderCredentials,
		VerificationStatus:  domain.VerificationPending,
		VerificationAttempt: 1,
		SelfiePath:          domain.StringPtr(input.SelfiePath),
		PhotoPath:           domain.StringPtr(input.PhotoPath),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.VerificationSnapshot{}, domain.Conflict("a creator with this email or national id already exists")
		}
		return domain.VerificationSnapshot{}, fmt.Errorf("create creator: %w", err)
	}

	s.logger.Info("creator registered", zap.String("creator_id", creator.ID))
	s.dispatch(ctx, creator.ID, creator.VerificationAttempt)

	return domain.VerificationSnapshot{
		UserID:  creator.ID,
		Status:  domain.VerificationPending,
		Message: "Verification started",
	}, nil
}

// GetStatus lee el estado actual sin sincronizarse con verificaciones en curso.
func (s *RegistrationService) GetStatus(ctx context.Context, userID string) (domain.VerificationSnapshot, error) {
	creator, err := s.creators.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VerificationSnapshot{}, domain.NotFound("creator not found")
		}
		return domain.VerificationSnapshot{}, fmt.Errorf("load creator: %w", err)
	}
	return domain.VerificationSnapshot{
		UserID:  creator.ID,
		Status:  creator.VerificationStatus,
		Message: fmt.Sprintf("Status: %s", creator.VerificationStatus),
	}, nil
}

// RetryVerification reemplaza la evidencia, vuelve a pending y despacha un nuevo intento.
// No espera ni cancela intentos previos; sus resultados quedan descartados.
func (s *RegistrationService) RetryVerification(ctx context.Context, userID, selfiePath, photoPath string) (domain.VerificationSnapshot, error) {
	err := validation.Errors{
		"selfie_path": validation.Validate(selfiePath, validation.Required),
		"photo_path":  validation.Validate(photoPath, validation.Required),
	}.Filter()
	if err != nil {
		return domain.VerificationSnapshot{}, domain.Validation(err.Error())
	}

	creator, err := s.creators.ResetVerification(ctx, userID, selfiePath, photoPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VerificationSnapshot{}, domain.NotFound("creator not found")
		}
		return domain.VerificationSnapshot{}, fmt.Errorf("reset verification: %w", err)
	}

	s.logger.Info("verification retry requested",
		zap.String("creator_id", creator.ID),
		zap.Int64("attempt", creator.VerificationAttempt),
	)
	s.dispatch(ctx, creator.ID, creator.VerificationAttempt)

	return domain.VerificationSnapshot{
		UserID:  creator.ID,
		Status:  domain.VerificationPending,
		Message: "New verification attempt started",
	}, nil
}

// Drain espera a que terminen las verificaciones en curso o a que ctx expire.
func (s *RegistrationService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RegistrationService) dispatch(ctx context.Context, creatorID string, attempt int64) {
	jobCtx := context.WithoutCancel(ctx)
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.verifyInBackground(jobCtx, creatorID, attempt)
	}()
}

// verifyInBackground nunca devuelve error: las fallas se registran y el estado queda como esta.
func (s *RegistrationService) verifyInBackground(ctx context.Context, creatorID string, attempt int64) {
	ctx, span := s.tracer.Start(ctx, "registration.verify", trace.WithAttributes(
		attribute.String("creator.id", creatorID),
		attribute.Int64("verification.attempt", attempt),
	))
	defer span.End()

	log := s.logger.With(zap.String("creator_id", creatorID), zap.Int64("attempt", attempt))

	creator, err := s.creators.GetByID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn("verification skipped: creator not found")
			span.SetStatus(codes.Error, "creator not found")
			return
		}
		log.Error("verification aborted: load creator failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "load creator failed")
		return
	}

	status, err := s.provider.Verify(ctx, creator)
	if err != nil {
		log.Error("verification aborted: provider failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failed")
		return
	}
	if !status.Outcome() {
		log.Error("verification aborted: invalid provider outcome", zap.String("status", string(status)))
		span.SetStatus(codes.Error, "invalid outcome")
		return
	}
	span.SetAttributes(attribute.String("verification.status", string(status)))

	applied, err := s.creators.CompleteVerification(ctx, creatorID, attempt, status)
	if err != nil {
		log.Error("verification aborted: store outcome failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store outcome failed")
		return
	}
	if !applied {
		log.Info("stale verification outcome discarded", zap.String("status", string(status)))
		return
	}
	log.Info("verification completed", zap.String("status", string(status)))

	if s.notifier != nil {
		if err := s.notifier.SendVerificationResult(ctx, creator.Email, creator.FullName, status); err != nil {
			log.Warn("verification notification failed", zap.Error(err))
		}
	}
}
