// Package federation valida identidades emitidas por proveedores externos.
package federation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"pina-onboarding/internal/domain"
)

var (
	ErrInvalidIDToken   = errors.New("invalid id token")
	ErrEmailNotVerified = errors.New("provider email not verified")
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Profile es la identidad federada ya validada.
type Profile struct {
	Provider   domain.Provider
	ProviderID string
	Email      string
	FullName   string
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	jwt.RegisteredClaims
}

// GoogleVerifier valida ID tokens de Google contra su JWKS.
type GoogleVerifier struct {
	keyfunc  jwt.Keyfunc
	clientID string
	close    func()
}

// NewGoogleVerifier descarga el JWKS y lo refresca en segundo plano.
func NewGoogleVerifier(ctx context.Context, jwksURL, clientID string, logger *zap.Logger) (*GoogleVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.New("google client id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			logger.Warn("google jwks refresh failed", zap.Error(err))
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("get google jwks: %w", err)
	}
	v := newGoogleVerifier(jwks.Keyfunc, clientID)
	v.close = jwks.EndBackground
	return v, nil
}

func newGoogleVerifier(kf jwt.Keyfunc, clientID string) *GoogleVerifier {
	return &GoogleVerifier{keyfunc: kf, clientID: clientID, close: func() {}}
}

// Verify valida firma, audiencia, emisor y expiracion, y devuelve el perfil.
func (v *GoogleVerifier) Verify(_ context.Context, rawIDToken string) (Profile, error) {
	rawIDToken = strings.TrimSpace(rawIDToken)
	if rawIDToken == "" {
		return Profile{}, ErrInvalidIDToken
	}
	var claims googleClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)
	if _, err := parser.ParseWithClaims(rawIDToken, &claims, v.keyfunc); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if !validIssuer(claims.Issuer) || strings.TrimSpace(claims.Subject) == "" {
		return Profile{}, ErrInvalidIDToken
	}
	if strings.TrimSpace(claims.Email) == "" || !claims.EmailVerified {
		return Profile{}, ErrEmailNotVerified
	}

	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}
	return Profile{
		Provider:   domain.ProviderGoogle,
		ProviderID: claims.Subject,
		Email:      claims.Email,
		FullName:   name,
	}, nil
}

// Close detiene el refresco del JWKS.
func (v *GoogleVerifier) Close() {
	if v.close != nil {
		v.close()
	}
}

func validIssuer(iss string) bool {
	for _, candidate := range googleIssuers {
		if iss == candidate {
			return true
		}
	}
	return false
}
