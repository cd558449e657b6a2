package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pina-onboarding/internal/domain"
)

// ErrDuplicate indica que se violo una restriccion de unicidad.
var ErrDuplicate = errors.New("duplicate creator")

const (
	uniqueViolation   = "23505"
	invalidTextFormat = "22P02"
)

// CreatorRepository define el contrato de persistencia para creadoras.
// Las busquedas devuelven pgx.ErrNoRows cuando no hay registro.
type CreatorRepository interface {
	Create(ctx context.Context, creator domain.Creator) (domain.Creator, error)
	GetByID(ctx context.Context, id string) (domain.Creator, error)
	GetByEmail(ctx context.Context, email string) (domain.Creator, error)
	GetByNationalID(ctx context.Context, nationalID string) (domain.Creator, error)
	GetByProvider(ctx context.Context, provider domain.Provider, providerID string) (domain.Creator, error)
	// ResetVerification reemplaza la evidencia, vuelve a pending e incrementa el intento.
	ResetVerification(ctx context.Context, id, selfiePath, photoPath string) (domain.Creator, error)
	// CompleteVerification guarda el resultado solo si attempt sigue siendo el intento vigente.
	CompleteVerification(ctx context.Context, id string, attempt int64, status domain.VerificationStatus) (bool, error)
	IncrementTokenVersion(ctx context.Context, id string) (domain.Creator, error)
	Ping(ctx context.Context) error
}

// PgCreatorRepository implementa CreatorRepository usando pgxpool.
type PgCreatorRepository struct {
	pool *pgxpool.Pool
}

func NewPgCreatorRepository(pool *pgxpool.Pool) *PgCreatorRepository {
	return &PgCreatorRepository{pool: pool}
}

const creatorColumns = `
	id, full_name, email, national_id, phone, birth_date, password_hash,
	provider, provider_id, verification_status, verification_attempt,
	selfie_path, photo_path, token_version, created_at, updated_at
`

func (r *PgCreatorRepository) Create(ctx context.Context, c domain.Creator) (domain.Creator, error) {
	query := `
		INSERT INTO creators (
			id, full_name, email, national_id, phone, birth_date, password_hash,
			provider, provider_id, verification_status, verification_attempt,
			selfie_path, photo_path, token_version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, now(), now())
		RETURNING ` + creatorColumns
	row := r.pool.QueryRow(ctx, query,
		c.ID,
		c.FullName,
		c.Email,
		c.NationalID,
		c.Phone,
		c.BirthDate,
		c.PasswordHash,
		string(c.Provider),
		c.ProviderID,
		string(c.VerificationStatus),
		c.VerificationAttempt,
		c.SelfiePath,
		c.PhotoPath,
	)
	created, err := scanCreator(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Creator{}, fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
		return domain.Creator{}, err
	}
	return created, nil
}

func (r *PgCreatorRepository) GetByID(ctx context.Context, id string) (domain.Creator, error) {
	if !isCreatorID(id) {
		return domain.Creator{}, pgx.ErrNoRows
	}
	query := `SELECT ` + creatorColumns + ` FROM creators WHERE id = $1`
	return scanCreator(r.pool.QueryRow(ctx, query, id))
}

func (r *PgCreatorRepository) GetByEmail(ctx context.Context, email string) (domain.Creator, error) {
	query := `SELECT ` + creatorColumns + ` FROM creators WHERE email = $1`
	return scanCreator(r.pool.QueryRow(ctx, query, email))
}

func (r *PgCreatorRepository) GetByNationalID(ctx context.Context, nationalID string) (domain.Creator, error) {
	query := `SELECT ` + creatorColumns + ` FROM creators WHERE national_id = $1`
	return scanCreator(r.pool.QueryRow(ctx, query, nationalID))
}

func (r *PgCreatorRepository) GetByProvider(ctx context.Context, provider domain.Provider, providerID string) (domain.Creator, error) {
	query := `SELECT ` + creatorColumns + ` FROM creators WHERE provider = $1 AND provider_id = $2`
	return scanCreator(r.pool.QueryRow(ctx, query, string(provider), providerID))
}

func (r *PgCreatorRepository) ResetVerification(ctx context.Context, id, selfiePath, photoPath string) (domain.Creator, error) {
	if !isCreatorID(id) {
		return domain.Creator{}, pgx.ErrNoRows
	}
	query := `
		UPDATE creators
		SET selfie_path = $2,
		    photo_path = $3,
		    verification_status = 'pending',
		    verification_attempt = verification_attempt + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + creatorColumns
	return scanCreator(r.pool.QueryRow(ctx, query, id, selfiePath, photoPath))
}

func (r *PgCreatorRepository) CompleteVerification(ctx context.Context, id string, attempt int64, status domain.VerificationStatus) (bool, error) {
	if !isCreatorID(id) {
		return false, nil
	}
	const query = `
		UPDATE creators
		SET verification_status = $3,
		    updated_at = now()
		WHERE id = $1 AND verification_attempt = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, attempt, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgCreatorRepository) IncrementTokenVersion(ctx context.Context, id string) (domain.Creator, error) {
	if !isCreatorID(id) {
		return domain.Creator{}, pgx.ErrNoRows
	}
	query := `
		UPDATE creators
		SET token_version = token_version + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + creatorColumns
	return scanCreator(r.pool.QueryRow(ctx, query, id))
}

func (r *PgCreatorRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// isCreatorID filtra ids que la columna UUID rechazaria; un id mal formado es un miss.
func isCreatorID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanCreator(row pgx.Row) (domain.Creator, error) {
	var (
		c        domain.Creator
		provider string
		status   string
	)
	err := row.Scan(
		&c.ID,
		&c.FullName,
		&c.Email,
		&c.NationalID,
		&c.Phone,
		&c.BirthDate,
		&c.PasswordHash,
		&provider,
		&c.ProviderID,
		&status,
		&c.VerificationAttempt,
		&c.SelfiePath,
		&c.PhotoPath,
		&c.TokenVersion,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == invalidTextFormat {
			return domain.Creator{}, pgx.ErrNoRows
		}
		return domain.Creator{}, err
	}
	c.Provider = domain.Provider(provider)
	c.VerificationStatus = domain.VerificationStatus(status)
	return c, nil
}
