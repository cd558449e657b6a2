package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pina-onboarding/internal/domain"
	"pina-onboarding/internal/service"
)

const birthDateLayout = "2006-01-02"

// RegistrationHandler expone el alta de creadoras y el estado de verificacion.
type RegistrationHandler struct {
	logger       *zap.Logger
	registration *service.RegistrationService
}

func NewRegistrationHandler(logger *zap.Logger, registration *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{logger: logger, registration: registration}
}

// StartRegistration maneja POST /registration/creator.
func (h *RegistrationHandler) StartRegistration(c *gin.Context) {
	var req struct {
		FullName   string `json:"full_name"`
		Email      string `json:"email"`
		NationalID string `json:"national_id"`
		BirthDate  string `json:"birth_date"`
		SelfiePath string `json:"selfie_path"`
		PhotoPath  string `json:"photo_path"`
		Phone      string `json:"phone"`
		Password   string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid registration request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "birth_date: must be a date in YYYY-MM-DD format."})
		return
	}

	res, err := h.registration.StartRegistration(c.Request.Context(), service.RegistrationInput{
		FullName:   req.FullName,
		Email:      req.Email,
		NationalID: req.NationalID,
		BirthDate:  birthDate,
		SelfiePath: req.SelfiePath,
		PhotoPath:  req.PhotoPath,
		Phone:      req.Phone,
		Password:   req.Password,
	})
	if err != nil {
		respondError(c, h.logger, "start registration", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetStatus maneja GET /registration/kyc/status/:id.
func (h *RegistrationHandler) GetStatus(c *gin.Context) {
	res, err := h.registration.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get verification status", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RetryVerification maneja POST /registration/kyc/retry.
func (h *RegistrationHandler) RetryVerification(c *gin.Context) {
	var req struct {
		UserID     string `json:"user_id" binding:"required"`
		SelfiePath string `json:"selfie_path"`
		PhotoPath  string `json:"photo_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid retry request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.registration.RetryVerification(c.Request.Context(), req.UserID, req.SelfiePath, req.PhotoPath)
	if err != nil {
		respondError(c, h.logger, "retry verification", err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// parseBirthDate acepta YYYY-MM-DD o RFC3339; vacio devuelve el valor cero.
func parseBirthDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(birthDateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.Validation("invalid birth date")
	}
	return t.UTC(), nil
}
