package service

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion se usa para telefonos sin prefijo internacional.
const DefaultPhoneRegion = "AR"

const minimumAge = 18

// RegistrationInput son los datos de alta de una creadora.
type RegistrationInput struct {
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	NationalID string    `json:"national_id"`
	BirthDate  time.Time `json:"birth_date"`
	SelfiePath string    `json:"selfie_path"`
	PhotoPath  string    `json:"photo_path"`
	Phone      string    `json:"phone"`
	Password   string    `json:"password"`
}

func (in *RegistrationInput) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.SelfiePath = strings.TrimSpace(in.SelfiePath)
	in.PhotoPath = strings.TrimSpace(in.PhotoPath)
	in.Phone = strings.TrimSpace(in.Phone)
}

// Validate chequea el formato de los campos; la edad se valida aparte.
func (in RegistrationInput) Validate(now time.Time) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.NationalID, validation.Required, validation.Length(1, 32)),
		validation.Field(&in.BirthDate, validation.Required, validation.By(notAfter(now))),
		validation.Field(&in.SelfiePath, validation.Required, validation.Length(1, 1024)),
		validation.Field(&in.PhotoPath, validation.Required, validation.Length(1, 1024)),
		validation.Field(&in.Phone, validation.By(validPhone)),
		validation.Field(&in.Password, validation.Length(6, 72)),
	)
}

func notAfter(now time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		t, ok := value.(time.Time)
		if !ok || t.IsZero() {
			return nil
		}
		if t.After(now) {
			return errors.New("must not be in the future")
		}
		return nil
	}
}

func validPhone(value interface{}) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	if _, err := normalizePhone(raw); err != nil {
		return errors.New("must be a valid phone number")
	}
	return nil
}

// normalizePhone devuelve el telefono en formato E.164.
func normalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ageAt devuelve los anios cumplidos en now.
func ageAt(birthDate, now time.Time) int {
	birthDate = birthDate.UTC()
	now = now.UTC()
	years := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() || (now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		years--
	}
	return years
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
