package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"pina-onboarding/internal/domain"
)

// EvidenceLinker convierte una referencia de evidencia en una URL descargable.
type EvidenceLinker interface {
	DownloadURL(ctx context.Context, key string) (string, error)
}

// HTTPProvider implementa Provider contra un servicio externo de analisis de documentos.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	linker  EvidenceLinker
	logger  *zap.Logger
}

// NewHTTPProvider construye el cliente; linker es opcional.
func NewHTTPProvider(baseURL, apiKey string, linker EvidenceLinker, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
		linker:  linker,
		logger:  logger,
	}
}

type verifyRequest struct {
	Reference  string `json:"reference"`
	FullName   string `json:"full_name"`
	NationalID string `json:"national_id"`
	BirthDate  string `json:"birth_date"`
	SelfieURL  string `json:"selfie_url"`
	PhotoURL   string `json:"photo_url"`
}

type verifyResponse struct {
	Status string `json:"status"`
}

func (p *HTTPProvider) Verify(ctx context.Context, creator domain.Creator) (domain.VerificationStatus, error) {
	selfie, err := p.link(ctx, domain.StringValue(creator.SelfiePath))
	if err != nil {
		return "", fmt.Errorf("link selfie: %w", err)
	}
	photo, err := p.link(ctx, domain.StringValue(creator.PhotoPath))
	if err != nil {
		return "", fmt.Errorf("link photo: %w", err)
	}

	body, err := json.Marshal(verifyRequest{
		Reference:  creator.ID,
		FullName:   creator.FullName,
		NationalID: domain.StringValue(creator.NationalID),
		BirthDate:  creator.BirthDate.Format(time.DateOnly),
		SelfieURL:  selfie,
		PhotoURL:   photo,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/verifications", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		p.logger.Warn("kyc provider error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return "", fmt.Errorf("kyc provider status %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	status := domain.VerificationStatus(strings.ToLower(strings.TrimSpace(out.Status)))
	if !status.Outcome() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, out.Status)
	}
	return status, nil
}

func (p *HTTPProvider) link(ctx context.Context, key string) (string, error) {
	if key == "" || p.linker == nil {
		return key, nil
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}
	return p.linker.DownloadURL(ctx, key)
}
