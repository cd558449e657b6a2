package kyc

import (
	"context"
	"errors"
	"strings"
	"time"

	"pina-onboarding/internal/domain"
)

// Provider define la interfaz del servicio de verificacion de identidad.
// Verify puede tardar segundos; devuelve VerificationVerified o VerificationRejected.
type Provider interface {
	Verify(ctx context.Context, creator domain.Creator) (domain.VerificationStatus, error)
}

// ErrInvalidOutcome se devuelve cuando el proveedor responde un estado desconocido.
var ErrInvalidOutcome = errors.New("kyc provider returned invalid outcome")

// RuleProvider simula el analisis de documentos: aprueba si el DNI termina en digito par.
type RuleProvider struct {
	delay time.Duration
}

func NewRuleProvider(delay time.Duration) *RuleProvider {
	if delay < 0 {
		delay = 0
	}
	return &RuleProvider{delay: delay}
}

func (p *RuleProvider) Verify(ctx context.Context, creator domain.Creator) (domain.VerificationStatus, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return RuleOutcome(domain.StringValue(creator.NationalID)), nil
}

// RuleOutcome aplica la regla del ultimo digito. Un DNI vacio o sin digito final se rechaza.
func RuleOutcome(nationalID string) domain.VerificationStatus {
	nationalID = strings.TrimSpace(nationalID)
	if nationalID == "" {
		return domain.VerificationRejected
	}
	last := nationalID[len(nationalID)-1]
	if last < '0' || last > '9' {
		return domain.VerificationRejected
	}
	if (last-'0')%2 == 0 {
		return domain.VerificationVerified
	}
	return domain.VerificationRejected
}
