package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pina-onboarding/internal/domain"
	"pina-onboarding/internal/federation"
	"pina-onboarding/internal/service"
)

// IDTokenVerifier valida ID tokens de un proveedor federado.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (federation.Profile, error)
}

// AuthHandler mantiene dependencias para login, refresh y logout.
type AuthHandler struct {
	logger   *zap.Logger
	identity *service.IdentityService
	tokens   *service.TokenService
	google   IDTokenVerifier
}

// NewAuthHandler crea el handler; google es opcional.
func NewAuthHandler(logger *zap.Logger, identity *service.IdentityService, tokens *service.TokenService, google IDTokenVerifier) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		identity: identity,
		tokens:   tokens,
		google:   google,
	}
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.identity.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// OAuthLogin maneja POST /auth/oauth con un perfil ya validado por el proveedor.
func (h *AuthHandler) OAuthLogin(c *gin.Context) {
	var req struct {
		Provider   string `json:"provider" binding:"required"`
		ProviderID string `json:"provider_id" binding:"required"`
		Email      string `json:"email" binding:"required,email"`
		FullName   string `json:"full_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid oauth request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.identity.IssueForFederatedProfile(c.Request.Context(), service.FederatedProfile{
		Provider:   domain.Provider(req.Provider),
		ProviderID: req.ProviderID,
		Email:      req.Email,
		FullName:   req.FullName,
	})
	if err != nil {
		respondError(c, h.logger, "oauth login", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GoogleLogin maneja POST /auth/google validando el ID token contra el JWKS de Google.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid google login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google sign-in not configured"})
		return
	}

	profile, err := h.google.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		if !errors.Is(err, federation.ErrInvalidIDToken) && !errors.Is(err, federation.ErrEmailNotVerified) {
			h.logger.Warn("google id token rejected", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.InvalidCredentialsMessage})
		return
	}

	res, err := h.identity.IssueForFederatedProfile(c.Request.Context(), service.FederatedProfile{
		Provider:   profile.Provider,
		ProviderID: profile.ProviderID,
		Email:      profile.Email,
		FullName:   profile.FullName,
	})
	if err != nil {
		respondError(c, h.logger, "google login", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tokens, err := h.tokens.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, "refresh", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout: invalida todos los refresh tokens de la creadora.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, h.logger, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me maneja GET /auth/me; requiere JWTAuthMiddleware.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.InvalidCredentialsMessage})
		return
	}
	creator, err := h.identity.CurrentCreator(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, h.logger, "load current creator", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creator": creator})
}
