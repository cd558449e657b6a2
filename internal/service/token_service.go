package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pina-onboarding/internal/domain"
	"pina-onboarding/internal/repository"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenService emite pares access/refresh y los revoca incrementando tokenVersion.
// No guarda tokens: un refresh es valido mientras su version coincida con la de la creadora.
type TokenService struct {
	logger     *zap.Logger
	signer     Signer
	creators   repository.CreatorRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(logger *zap.Logger, signer Signer, creators repository.CreatorRepository, accessTTL, refreshTTL time.Duration) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &TokenService{
		logger:     logger,
		signer:     signer,
		creators:   creators,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Issue es funcion pura de la creadora recibida; no escribe en el store.
func (s *TokenService) Issue(creator domain.Creator) (domain.TokenPair, error) {
	access, err := s.signer.Sign(Claims{
		UserID:    creator.ID,
		Email:     creator.Email,
		TokenType: TokenTypeAccess,
	}, s.accessTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.signer.Sign(Claims{
		UserID:       creator.ID,
		TokenVersion: creator.TokenVersion,
		TokenType:    TokenTypeRefresh,
	}, s.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Refresh valida el refresh token contra la tokenVersion vigente y emite un par nuevo.
// El token anterior sigue siendo valido hasta el proximo Revoke.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	creator, err := s.creators.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPair{}, domain.Unauthenticated()
		}
		return domain.TokenPair{}, fmt.Errorf("load creator: %w", err)
	}
	if creator.TokenVersion != claims.TokenVersion {
		s.logger.Info("refresh token version mismatch",
			zap.String("creator_id", creator.ID),
			zap.Int64("token_version", claims.TokenVersion),
			zap.Int64("current_version", creator.TokenVersion),
		)
		return domain.TokenPair{}, domain.Unauthenticated()
	}
	return s.Issue(creator)
}

// Revoke invalida todos los refresh tokens emitidos para la creadora.
// Los access tokens vigentes expiran por su cuenta.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return err
	}
	creator, err := s.creators.IncrementTokenVersion(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Unauthenticated()
		}
		return fmt.Errorf("increment token version: %w", err)
	}
	s.logger.Info("refresh tokens revoked",
		zap.String("creator_id", creator.ID),
		zap.Int64("token_version", creator.TokenVersion),
	)
	return nil
}

// ParseAccessToken valida un access token para el middleware HTTP.
func (s *TokenService) ParseAccessToken(accessToken string) (Claims, error) {
	claims, err := s.signer.Verify(accessToken)
	if err != nil {
		return Claims{}, domain.Unauthenticated()
	}
	if claims.TokenType != TokenTypeAccess {
		return Claims{}, domain.Unauthenticated()
	}
	return claims, nil
}

func (s *TokenService) parseRefreshToken(refreshToken string) (Claims, error) {
	claims, err := s.signer.Verify(refreshToken)
	if err != nil {
		return Claims{}, domain.Unauthenticated()
	}
	if claims.TokenType != TokenTypeRefresh {
		return Claims{}, domain.Unauthenticated()
	}
	return claims, nil
}
