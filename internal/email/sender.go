package email

import (
	"context"
	"errors"

	"pina-onboarding/internal/domain"
)

// Sender define la interfaz para avisar a la creadora el resultado de su verificacion.
type Sender interface {
	SendVerificationResult(ctx context.Context, toEmail, fullName string, status domain.VerificationStatus) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationResult(_ context.Context, _, _ string, _ domain.VerificationStatus) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
