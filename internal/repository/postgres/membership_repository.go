package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

const membershipColumns = `id, user_id, institution_id, role, is_active, joined_at, updated_at`

type MembershipRepository struct {
	*base.Repository
}

func NewMembershipRepository(db base.DBTX) *MembershipRepository {
	return &MembershipRepository{Repository: base.NewRepository(db)}
}

func scanMembership(row base.Scanner) (*model.Membership, error) {
	var m model.Membership
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.InstitutionID,
		&m.Role,
		&m.IsActive,
		&m.JoinedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MembershipRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*model.Membership, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	return memberships, nil
}

// Create создаёт членство
func (r *MembershipRepository) Create(ctx context.Context, m *model.Membership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	query := `
		INSERT INTO institution_memberships (id, user_id, institution_id, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING joined_at
	`

	err := r.QueryRow(ctx, query, m.ID, m.UserID, m.InstitutionID, m.Role, m.IsActive).Scan(&m.JoinedAt)
	if err != nil {
		return writeErr("create membership", err)
	}

	return nil
}

// GetByUserAndInstitution получает членство пары пользователь/учреждение (активное или нет)
func (r *MembershipRepository) GetByUserAndInstitution(ctx context.Context, userID, institutionID uuid.UUID) (*model.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM institution_memberships WHERE user_id = $1 AND institution_id = $2`

	m, err := scanMembership(r.QueryRow(ctx, query, userID, institutionID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}

	return m, nil
}

// ListActiveByUser получает активные членства пользователя
func (r *MembershipRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*model.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM institution_memberships
		WHERE user_id = $1 AND is_active = true
		ORDER BY joined_at DESC
	`

	memberships, err := r.queryMany(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list active memberships by user: %w", err)
	}

	return memberships, nil
}

// CountActiveByRole считает активные места через join с профилем
func (r *MembershipRepository) CountActiveByRole(ctx context.Context, institutionID uuid.UUID, role model.Role) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM institution_memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.institution_id = $1 AND m.is_active = true AND u.role = $2
	`

	var count int
	if err := r.QueryRow(ctx, query, institutionID, role).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active memberships: %w", err)
	}

	return count, nil
}

// SetActive активирует или деактивирует членство
func (r *MembershipRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `
		UPDATE institution_memberships
		SET is_active = $1, updated_at = $2
		WHERE id = $3
	`

	affected, err := r.ExecAffected(ctx, query, active, time.Now(), id)
	if err != nil {
		return writeErr("set membership active", err)
	}

	if affected == 0 {
		return fmt.Errorf("set membership active: %w", base.ErrNoRowsAffected)
	}

	return nil
}

// DeactivateOthers деактивирует все активные членства пользователя кроме указанного учреждения
func (r *MembershipRepository) DeactivateOthers(ctx context.Context, userID, keepInstitutionID uuid.UUID) (int64, error) {
	query := `
		UPDATE institution_memberships
		SET is_active = false, updated_at = $1
		WHERE user_id = $2 AND institution_id <> $3 AND is_active = true
	`

	affected, err := r.ExecAffected(ctx, query, time.Now(), userID, keepInstitutionID)
	if err != nil {
		return 0, fmt.Errorf("deactivate other memberships: %w", err)
	}

	return affected, nil
}
