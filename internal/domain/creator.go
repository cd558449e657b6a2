package domain

import "time"

// Provider identifica el origen de la identidad de una creadora.
type Provider string

const (
	ProviderCredentials Provider = "credentials"
	ProviderGoogle      Provider = "google"
	ProviderFacebook    Provider = "facebook"
)

// Valid reporta si el proveedor es uno de los soportados.
func (p Provider) Valid() bool {
	switch p {
	case ProviderCredentials, ProviderGoogle, ProviderFacebook:
		return true
	}
	return false
}

// VerificationStatus es el estado del chequeo de identidad.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// Outcome reporta si el estado es un resultado del proveedor (verified o rejected).
func (s VerificationStatus) Outcome() bool {
	return s == VerificationVerified || s == VerificationRejected
}

// PlaceholderBirthDate se usa para cuentas federadas hasta completar el onboarding.
var PlaceholderBirthDate = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

type Creator struct {
	ID                  string             `json:"id"`
	FullName            string             `json:"full_name"`
	Email               string             `json:"email"`
	NationalID          *string            `json:"national_id,omitempty"`
	Phone               *string            `json:"phone,omitempty"`
	BirthDate           time.Time          `json:"birth_date"`
	PasswordHash        *string            `json:"-"`
	Provider            Provider           `json:"provider"`
	ProviderID          *string            `json:"-"`
	VerificationStatus  VerificationStatus `json:"verification_status"`
	VerificationAttempt int64              `json:"-"`
	SelfiePath          *string            `json:"selfie_path,omitempty"`
	PhotoPath           *string            `json:"photo_path,omitempty"`
	TokenVersion        int64              `json:"-"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// HasPassword reporta si la cuenta admite login convencional.
func (c Creator) HasPassword() bool {
	return c.PasswordHash != nil && *c.PasswordHash != ""
}

// VerificationSnapshot es la respuesta de registro, estado y reintento.
type VerificationSnapshot struct {
	UserID  string             `json:"userId"`
	Status  VerificationStatus `json:"status"`
	Message string             `json:"message"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// StringPtr devuelve nil para cadenas vacias.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue desreferencia p o devuelve "".
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
