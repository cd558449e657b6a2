package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pina-onboarding/internal/evidence"
)

// UploadIssuer emite destinos prefirmados para la evidencia.
type UploadIssuer interface {
	NewUpload(ctx context.Context, kind evidence.Kind) (evidence.Upload, error)
}

// EvidenceHandler entrega URLs de subida para selfie y foto de documento.
type EvidenceHandler struct {
	logger *zap.Logger
	store  UploadIssuer
}

// NewEvidenceHandler crea el handler; store nil deja el endpoint en 503.
func NewEvidenceHandler(logger *zap.Logger, store UploadIssuer) *EvidenceHandler {
	return &EvidenceHandler{logger: logger, store: store}
}

// CreateUploads maneja POST /registration/evidence.
func (h *EvidenceHandler) CreateUploads(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evidence storage not configured"})
		return
	}
	var req struct {
		Kinds []evidence.Kind `json:"kinds"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid evidence request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}
	if len(req.Kinds) == 0 {
		req.Kinds = []evidence.Kind{evidence.KindSelfie, evidence.KindPhoto}
	}

	uploads := make([]evidence.Upload, 0, len(req.Kinds))
	for _, kind := range req.Kinds {
		upload, err := h.store.NewUpload(c.Request.Context(), kind)
		if err != nil {
			if errors.Is(err, evidence.ErrUnknownKind) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown evidence kind"})
				return
			}
			h.logger.Error("presign evidence upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		uploads = append(uploads, upload)
	}
	c.JSON(http.StatusCreated, gin.H{"uploads": uploads})
}
