package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

const studentSelect = `
	SELECT s.id, s.school, s.grade, s.phone, s.institution_id, u.name, u.email
	FROM students s
	JOIN users u ON u.id = s.id
`

type StudentRepository struct {
	*base.Repository
}

func NewStudentRepository(db base.DBTX) *StudentRepository {
	return &StudentRepository{Repository: base.NewRepository(db)}
}

func scanStudent(row base.Scanner) (*model.Student, error) {
	var s model.Student
	err := row.Scan(
		&s.ID,
		&s.School,
		&s.Grade,
		&s.Phone,
		&s.InstitutionID,
		&s.Name,
		&s.Email,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StudentRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*model.Student, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}

	return students, nil
}

// Create создаёт строку ученика
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	query := `
		INSERT INTO students (id, school, grade, phone, institution_id)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.DB().Exec(ctx, query, s.ID, s.School, s.Grade, s.Phone, s.InstitutionID); err != nil {
		return writeErr("create student", err)
	}

	return nil
}

// GetByID получает ученика по ID пользователя
func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	s, err := scanStudent(r.QueryRow(ctx, studentSelect+` WHERE s.id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}

	return s, nil
}

// GetByIDs получает учеников по списку ID
func (r *StudentRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Student, error) {
	if len(ids) == 0 {
		return []*model.Student{}, nil
	}

	students, err := r.queryMany(ctx, studentSelect+` WHERE s.id = ANY($1) ORDER BY u.name`, ids)
	if err != nil {
		return nil, fmt.Errorf("get students by ids: %w", err)
	}

	return students, nil
}

// Update обновляет school, grade и phone
func (r *StudentRepository) Update(ctx context.Context, s *model.Student) error {
	query := `UPDATE students SET school = $1, grade = $2, phone = $3 WHERE id = $4`

	affected, err := r.ExecAffected(ctx, query, s.School, s.Grade, s.Phone, s.ID)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("update student: %w", base.ErrNoRowsAffected)
	}

	return nil
}

// SetInstitution синхронизирует денормализованный institution_id
func (r *StudentRepository) SetInstitution(ctx context.Context, id uuid.UUID, institutionID *uuid.UUID) error {
	query := `UPDATE students SET institution_id = $1 WHERE id = $2`

	affected, err := r.ExecAffected(ctx, query, institutionID, id)
	if err != nil {
		return fmt.Errorf("set student institution: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("set student institution: %w", base.ErrNoRowsAffected)
	}

	return nil
}

// List получает всех учеников
func (r *StudentRepository) List(ctx context.Context) ([]*model.Student, error) {
	students, err := r.queryMany(ctx, studentSelect+` ORDER BY u.name`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	return students, nil
}

// Lock блокирует строку студента до конца транзакции (FOR UPDATE)
func (r *StudentRepository) Lock(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	err := r.QueryRow(ctx, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if base.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("lock student: %w", err)
	}
	return nil
}
