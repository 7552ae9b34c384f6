package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

type AdminCredentialRepository struct {
	*base.Repository
}

func NewAdminCredentialRepository(db base.DBTX) *AdminCredentialRepository {
	return &AdminCredentialRepository{Repository: base.NewRepository(db)}
}

// Create создаёт учётку администратора учреждения
func (r *AdminCredentialRepository) Create(ctx context.Context, cred *model.AdminCredential) error {
	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}

	query := `
		INSERT INTO institution_admin_credentials (id, institution_id, username, email, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.QueryRow(ctx, query,
		cred.ID,
		cred.InstitutionID,
		cred.Username,
		cred.Email,
		cred.PasswordHash,
		cred.IsActive,
	).Scan(&cred.CreatedAt)
	if err != nil {
		return writeErr("create admin credential", err)
	}

	return nil
}

// GetByUsername получает учётку по логину
func (r *AdminCredentialRepository) GetByUsername(ctx context.Context, username string) (*model.AdminCredential, error) {
	query := `
		SELECT id, institution_id, username, email, password_hash, is_active, created_at
		FROM institution_admin_credentials
		WHERE username = $1
	`

	var cred model.AdminCredential
	err := r.QueryRow(ctx, query, username).Scan(
		&cred.ID,
		&cred.InstitutionID,
		&cred.Username,
		&cred.Email,
		&cred.PasswordHash,
		&cred.IsActive,
		&cred.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin credential: %w", err)
	}

	return &cred, nil
}

// HasActive проверяет активную учётку учреждения по логину или email
func (r *AdminCredentialRepository) HasActive(ctx context.Context, institutionID uuid.UUID, username, email string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM institution_admin_credentials
			WHERE institution_id = $1 AND is_active = true
				AND (($2 <> '' AND username = $2) OR ($3 <> '' AND lower(email) = lower($3)))
		)
	`

	var exists bool
	if err := r.QueryRow(ctx, query, institutionID, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check admin credential: %w", err)
	}

	return exists, nil
}
