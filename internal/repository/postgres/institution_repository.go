package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

const institutionColumns = `id, name, type, contact_email, is_active, is_premium, max_teachers, max_students,
	contract_start_date, contract_end_date, payment_status, created_at`

type InstitutionRepository struct {
	*base.Repository
}

func NewInstitutionRepository(db base.DBTX) *InstitutionRepository {
	return &InstitutionRepository{Repository: base.NewRepository(db)}
}

func scanInstitution(row base.Scanner) (*model.Institution, error) {
	var inst model.Institution
	err := row.Scan(
		&inst.ID,
		&inst.Name,
		&inst.Type,
		&inst.ContactEmail,
		&inst.IsActive,
		&inst.IsPremium,
		&inst.MaxTeachers,
		&inst.MaxStudents,
		&inst.ContractStart,
		&inst.ContractEnd,
		&inst.PaymentStatus,
		&inst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// Create создаёт учреждение (используется платформенным администратором и сидами)
func (r *InstitutionRepository) Create(ctx context.Context, inst *model.Institution) error {
	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	if inst.PaymentStatus == "" {
		inst.PaymentStatus = model.PaymentStatusPending
	}

	query := `
		INSERT INTO institutions (id, name, type, contact_email, is_active, is_premium, max_teachers, max_students,
			contract_start_date, contract_end_date, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := r.QueryRow(ctx, query,
		inst.ID,
		inst.Name,
		inst.Type,
		inst.ContactEmail,
		inst.IsActive,
		inst.IsPremium,
		inst.MaxTeachers,
		inst.MaxStudents,
		inst.ContractStart,
		inst.ContractEnd,
		inst.PaymentStatus,
	).Scan(&inst.CreatedAt)
	if err != nil {
		return fmt.Errorf("create institution: %w", err)
	}

	return nil
}

// GetByID получает учреждение по ID
func (r *InstitutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = $1`

	inst, err := scanInstitution(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get institution: %w", err)
	}

	return inst, nil
}

// GetByIDs получает учреждения по списку ID
func (r *InstitutionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Institution, error) {
	if len(ids) == 0 {
		return []*model.Institution{}, nil
	}

	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = ANY($1) ORDER BY name`

	rows, err := r.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get institutions by ids: %w", err)
	}
	defer rows.Close()

	var institutions []*model.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		institutions = append(institutions, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate institutions: %w", err)
	}

	return institutions, nil
}

// Lock блокирует строку учреждения до конца транзакции (FOR UPDATE)
func (r *InstitutionRepository) Lock(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := r.QueryRow(ctx, `SELECT id FROM institutions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if base.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("lock institution: %w", err)
	}
	return nil
}
