package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIPrefix es el prefijo global de las rutas.
const APIPrefix = "/pina"

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	tokens AccessTokenParser,
	registrationH *RegistrationHandler,
	authH *AuthHandler,
	evidenceH *EvidenceHandler,
	healthH *HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	api := r.Group(APIPrefix)
	api.GET("/health", healthH.Health)

	registration := api.Group("/registration")
	registration.POST("/creator", registrationH.StartRegistration)
	registration.GET("/kyc/status/:id", registrationH.GetStatus)
	registration.POST("/kyc/retry", registrationH.RetryVerification)
	registration.POST("/evidence", evidenceH.CreateUploads)

	auth := api.Group("/auth")
	auth.POST("/login", authH.Login)
	auth.POST("/oauth", authH.OAuthLogin)
	auth.POST("/google", authH.GoogleLogin)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.Logout)
	auth.GET("/me", JWTAuthMiddleware(tokens), authH.Me)

	return r
}

// zapLoggerMiddleware loguea cada request; los 5xx salen en nivel Error.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if status >= 500 {
			logger.Error("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
