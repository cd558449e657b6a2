// Package evidence emite URLs prefirmadas para subir y leer la evidencia de verificacion
// (selfie y foto del documento) en un bucket compatible con S3.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Kind es el tipo de artefacto de evidencia.
type Kind string

const (
	KindSelfie Kind = "selfie"
	KindPhoto  Kind = "photo"
)

var ErrUnknownKind = errors.New("unknown evidence kind")

const defaultLinkTTL = 15 * time.Minute

// Config describe el bucket de evidencias.
type Config struct {
	Region    string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	LinkTTL   time.Duration
}

// Upload es un destino prefirmado para subir un artefacto.
type Upload struct {
	Kind      Kind      `json:"kind"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store prefirma operaciones PUT/GET sobre el bucket de evidencias.
type S3Store struct {
	presign presigner
	bucket  string
	ttl     time.Duration
	now     func() time.Time
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Store construye el cliente S3 (credenciales estaticas si se proveen).
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(s3.NewPresignClient(client), cfg.Bucket, cfg.LinkTTL), nil
}

func newS3Store(p presigner, bucket string, ttl time.Duration) *S3Store {
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	return &S3Store{
		presign: p,
		bucket:  bucket,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewUpload genera una clave nueva para kind y su URL PUT prefirmada.
func (s *S3Store) NewUpload(ctx context.Context, kind Kind) (Upload, error) {
	if kind != KindSelfie && kind != KindPhoto {
		return Upload{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	now := s.now()
	key := fmt.Sprintf("evidence/%s/%d/%02d/%s", kind, now.Year(), now.Month(), uuid.NewString())
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return Upload{}, fmt.Errorf("presign put: %w", err)
	}
	return Upload{Kind: kind, Key: key, URL: req.URL, ExpiresAt: now.Add(s.ttl)}, nil
}

// DownloadURL prefirma un GET para una clave existente.
func (s *S3Store) DownloadURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
