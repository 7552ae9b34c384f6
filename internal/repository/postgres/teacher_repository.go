package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

const teacherSelect = `
	SELECT t.id, t.branch, t.phone, t.teacher_code, t.institution_id, u.name, u.email
	FROM teachers t
	JOIN users u ON u.id = t.id
`

type TeacherRepository struct {
	*base.Repository
}

func NewTeacherRepository(db base.DBTX) *TeacherRepository {
	return &TeacherRepository{Repository: base.NewRepository(db)}
}

func scanTeacher(row base.Scanner) (*model.Teacher, error) {
	var t model.Teacher
	err := row.Scan(
		&t.ID,
		&t.Branch,
		&t.Phone,
		&t.TeacherCode,
		&t.InstitutionID,
		&t.Name,
		&t.Email,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TeacherRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*model.Teacher, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teachers []*model.Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan teacher: %w", err)
		}
		teachers = append(teachers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate teachers: %w", err)
	}

	return teachers, nil
}

// Create создаёт строку учителя
func (r *TeacherRepository) Create(ctx context.Context, t *model.Teacher) error {
	query := `
		INSERT INTO teachers (id, branch, phone, teacher_code, institution_id)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.DB().Exec(ctx, query, t.ID, t.Branch, t.Phone, t.TeacherCode, t.InstitutionID); err != nil {
		return writeErr("create teacher", err)
	}

	return nil
}

// GetByID получает учителя по ID пользователя
func (r *TeacherRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Teacher, error) {
	t, err := scanTeacher(r.QueryRow(ctx, teacherSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get teacher: %w", err)
	}

	return t, nil
}

// GetByIDs получает учителей по списку ID
func (r *TeacherRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Teacher, error) {
	if len(ids) == 0 {
		return []*model.Teacher{}, nil
	}

	teachers, err := r.queryMany(ctx, teacherSelect+` WHERE t.id = ANY($1) ORDER BY u.name`, ids)
	if err != nil {
		return nil, fmt.Errorf("get teachers by ids: %w", err)
	}

	return teachers, nil
}

// GetByCode получает учителя по коду подключения
func (r *TeacherRepository) GetByCode(ctx context.Context, code string) (*model.Teacher, error) {
	t, err := scanTeacher(r.QueryRow(ctx, teacherSelect+` WHERE t.teacher_code = $1`, code))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get teacher by code: %w", err)
	}

	return t, nil
}

// CodeExists проверяет, занят ли код
func (r *TeacherRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM teachers WHERE teacher_code = $1)`

	var exists bool
	if err := r.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check teacher code exists: %w", err)
	}

	return exists, nil
}

// Update обновляет branch и phone
func (r *TeacherRepository) Update(ctx context.Context, t *model.Teacher) error {
	query := `UPDATE teachers SET branch = $1, phone = $2 WHERE id = $3`

	affected, err := r.ExecAffected(ctx, query, t.Branch, t.Phone, t.ID)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("update teacher: %w", base.ErrNoRowsAffected)
	}

	return nil
}

// SetInstitution синхронизирует денормализованный institution_id
func (r *TeacherRepository) SetInstitution(ctx context.Context, id uuid.UUID, institutionID *uuid.UUID) error {
	query := `UPDATE teachers SET institution_id = $1 WHERE id = $2`

	affected, err := r.ExecAffected(ctx, query, institutionID, id)
	if err != nil {
		return fmt.Errorf("set teacher institution: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("set teacher institution: %w", base.ErrNoRowsAffected)
	}

	return nil
}

// List получает всех учителей
func (r *TeacherRepository) List(ctx context.Context) ([]*model.Teacher, error) {
	teachers, err := r.queryMany(ctx, teacherSelect+` ORDER BY u.name`)
	if err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}

	return teachers, nil
}

// Lock блокирует строку учителя до конца транзакции (FOR UPDATE)
func (r *TeacherRepository) Lock(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := r.QueryRow(ctx, `SELECT id FROM teachers WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if base.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("lock teacher: %w", err)
	}
	return nil
}
