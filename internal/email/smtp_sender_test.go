package email

import (
	"context"
	"strings"
	"testing"

	"pina-onboarding/internal/domain"
)

func TestNewSMTPSender_RequiresHostAndFrom(t *testing.T) {
	if _, err := NewSMTPSender("", 0, "", "", "from@example.com", "", false); err == nil {
		t.Fatalf("expected error without host")
	}
	if _, err := NewSMTPSender("smtp.example.com", 0, "", "", "", "", false); err == nil {
		t.Fatalf("expected error without from")
	}
	s, err := NewSMTPSender("smtp.example.com", 0, "", "", "from@example.com", "Pina", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.port != 587 {
		t.Fatalf("expected default port 587, got %d", s.port)
	}
}

func TestResultMessage(t *testing.T) {
	subject, body, err := resultMessage("Ana", domain.VerificationVerified)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Identity verified" || !strings.HasPrefix(body, "Hola Ana,") {
		t.Fatalf("unexpected verified message: %q %q", subject, body)
	}
	subject, _, err = resultMessage("", domain.VerificationRejected)
	if err != nil || subject != "Identity verification rejected" {
		t.Fatalf("unexpected rejected message: %q %v", subject, err)
	}
	if _, _, err := resultMessage("Ana", domain.VerificationPending); err == nil {
		t.Fatalf("expected error for pending status")
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("no-reply@pina.app", "Pina", "ana@example.com", "Identity verified", "body")
	if !strings.Contains(msg, "From: Pina <no-reply@pina.app>\r\n") {
		t.Fatalf("missing from header: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nbody") {
		t.Fatalf("unexpected body separator: %q", msg)
	}
}

func TestSMTPSender_RejectsEmptyRecipient(t *testing.T) {
	s, _ := NewSMTPSender("smtp.example.com", 25, "", "", "from@example.com", "", false)
	if err := s.SendVerificationResult(context.Background(), " ", "Ana", domain.VerificationVerified); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
}

func TestDisabledSender(t *testing.T) {
	err := NewDisabledSender("smtp not configured").SendVerificationResult(context.Background(), "a@b.c", "", domain.VerificationVerified)
	if err == nil || err.Error() != "smtp not configured" {
		t.Fatalf("expected disabled reason, got %v", err)
	}
}

func TestSMTPSender_DialErrorIsWrapped(t *testing.T) {
	// puerto 1 en loopback: conexion rechazada
	s, _ := NewSMTPSender("127.0.0.1", 1, "", "", "from@example.com", "", false)
	err := s.SendVerificationResult(context.Background(), "ana@example.com", "Ana", domain.VerificationVerified)
	if err == nil || !strings.Contains(err.Error(), "smtp dial") {
		t.Fatalf("expected dial error, got %v", err)
	}
}
