package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pina-onboarding/internal/domain"
	"pina-onboarding/internal/repository"
)

var ErrRateLimited = errors.New("rate limited")

// FederatedProfile es la identidad que entrega un proveedor OAuth ya validado.
type FederatedProfile struct {
	Provider   domain.Provider
	ProviderID string
	Email      string
	FullName   string
}

// AuthResult es la creadora autenticada junto con sus tokens.
type AuthResult struct {
	Creator domain.Creator   `json:"creator"`
	Tokens  domain.TokenPair `json:"tokens"`
}

// IdentityService resuelve la creadora a partir de credenciales o de un perfil federado.
// Mantiene una unica identidad por email.
type IdentityService struct {
	logger   *zap.Logger
	creators repository.CreatorRepository
	hasher   PasswordHasher
	tokens   *TokenService
	limiter  LoginRateLimiter

	dummyOnce sync.Once
	dummyHash string
}

func NewIdentityService(logger *zap.Logger, creators repository.CreatorRepository, hasher PasswordHasher, tokens *TokenService, limiter LoginRateLimiter) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultSaltRounds)
	}
	return &IdentityService{
		logger:   logger,
		creators: creators,
		hasher:   hasher,
		tokens:   tokens,
		limiter:  limiter,
	}
}

// ResolveConventional valida email y password. Cuenta inexistente, cuenta sin password
// y password incorrecta devuelven el mismo error.
func (s *IdentityService) ResolveConventional(ctx context.Context, emailAddr, password string) (domain.Creator, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.Creator{}, domain.Unauthenticated()
	}

	creator, err := s.creators.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.burnCompare(password)
			return domain.Creator{}, domain.Unauthenticated()
		}
		return domain.Creator{}, fmt.Errorf("find creator by email: %w", err)
	}
	if !creator.HasPassword() {
		s.burnCompare(password)
		return domain.Creator{}, domain.Unauthenticated()
	}
	if !s.hasher.Compare(password, *creator.PasswordHash) {
		return domain.Creator{}, domain.Unauthenticated()
	}
	return creator, nil
}

// ResolveFederated devuelve la creadora del par (provider, providerId), o la crea.
// Nunca vincula una cuenta existente por email.
func (s *IdentityService) ResolveFederated(ctx context.Context, profile FederatedProfile) (domain.Creator, error) {
	provider := domain.Provider(strings.ToLower(strings.TrimSpace(string(profile.Provider))))
	providerID := strings.TrimSpace(profile.ProviderID)
	emailAddr := normalizeEmail(profile.Email)
	fullName := strings.TrimSpace(profile.FullName)

	if !provider.Valid() || provider == domain.ProviderCredentials {
		return domain.Creator{}, domain.Validation("unsupported identity provider")
	}
	if providerID == "" || emailAddr == "" {
		return domain.Creator{}, domain.Validation("provider id and email are required")
	}

	creator, err := s.creators.GetByProvider(ctx, provider, providerID)
	if err == nil {
		return creator, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Creator{}, fmt.Errorf("find creator by provider: %w", err)
	}

	existing, err := s.creators.GetByEmail(ctx, emailAddr)
	if err == nil && existing.Provider == provider && domain.StringValue(existing.ProviderID) == providerID {
		return existing, nil
	}
	if err == nil {
		s.logger.Warn("federated login blocked: email registered with another method",
			zap.String("creator_id", existing.ID),
			zap.String("provider", string(provider)),
		)
		if existing.Provider == domain.ProviderCredentials {
			return domain.Creator{}, domain.Conflict("account exists under conventional login")
		}
		return domain.Creator{}, domain.Conflict("account exists under a different sign-in provider")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Creator{}, fmt.Errorf("find creator by email: %w", err)
	}

	if fullName == "" {
		fullName = emailAddr
	}
	created, err := s.creators.Create(ctx, domain.Creator{
		ID:                  uuid.NewString(),
		FullName:            fullName,
		Email:               emailAddr,
		BirthDate:           domain.PlaceholderBirthDate,
		Provider:            provider,
		ProviderID:          &providerID,
		VerificationStatus:  domain.VerificationPending,
		VerificationAttempt: 1,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// otro login concurrente del mismo par pudo crearla primero
			if winner, lookupErr := s.creators.GetByProvider(ctx, provider, providerID); lookupErr == nil {
				return winner, nil
			}
			return domain.Creator{}, domain.Conflict("account already exists")
		}
		return domain.Creator{}, fmt.Errorf("create federated creator: %w", err)
	}
	s.logger.Info("federated creator created",
		zap.String("creator_id", created.ID),
		zap.String("provider", string(provider)),
	)
	return created, nil
}

// Login autentica con credenciales y emite tokens. Solo los fallos de autenticacion
// cuentan para el limite; un login exitoso lo reinicia.
func (s *IdentityService) Login(ctx context.Context, emailAddr, password, clientIP string) (AuthResult, error) {
	key := LoginKey(emailAddr, clientIP)
	if s.limiter != nil && s.limiter.Blocked(key) {
		s.logger.Warn("login rate limited", zap.String("client_ip", clientIP))
		return AuthResult{}, ErrRateLimited
	}
	creator, err := s.ResolveConventional(ctx, emailAddr, password)
	if err != nil {
		if s.limiter != nil && errors.Is(err, domain.ErrAuthentication) {
			s.limiter.Fail(key)
		}
		return AuthResult{}, err
	}
	if s.limiter != nil {
		s.limiter.Reset(key)
	}
	return s.issue(creator)
}

// IssueForFederatedProfile resuelve el perfil federado y emite tokens.
func (s *IdentityService) IssueForFederatedProfile(ctx context.Context, profile FederatedProfile) (AuthResult, error) {
	creator, err := s.ResolveFederated(ctx, profile)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(creator)
}

// CurrentCreator devuelve la creadora duena de un access token.
func (s *IdentityService) CurrentCreator(ctx context.Context, creatorID string) (domain.Creator, error) {
	creator, err := s.creators.GetByID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Creator{}, domain.NotFound("creator not found")
		}
		return domain.Creator{}, fmt.Errorf("load creator: %w", err)
	}
	return creator, nil
}

func (s *IdentityService) issue(creator domain.Creator) (AuthResult, error) {
	if s.tokens == nil {
		return AuthResult{}, errors.New("token service not configured")
	}
	pair, err := s.tokens.Issue(creator)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Creator: creator, Tokens: pair}, nil
}

// burnCompare iguala el tiempo de respuesta cuando no hay hash que comparar.
func (s *IdentityService) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		_ = s.hasher.Compare(password, s.dummyHash)
	}
}
