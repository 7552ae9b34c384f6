package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

const connectionColumns = `id, student_id, teacher_id, request_type, approval_status, is_active, created_at, updated_at`

type ConnectionRepository struct {
	*base.Repository
}

func NewConnectionRepository(db base.DBTX) *ConnectionRepository {
	return &ConnectionRepository{Repository: base.NewRepository(db)}
}

func scanConnection(row base.Scanner) (*model.Connection, error) {
	var c model.Connection
	err := row.Scan(
		&c.ID,
		&c.StudentID,
		&c.TeacherID,
		&c.RequestType,
		&c.ApprovalStatus,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConnectionRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*model.Connection, error) {
	c, err := scanConnection(r.QueryRow(ctx, query, args...))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *ConnectionRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*model.Connection, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connections []*model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		connections = append(connections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}

	return connections, nil
}

// Create создает заявку
func (r *ConnectionRepository) Create(ctx context.Context, c *model.Connection) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	query := `
		INSERT INTO student_teachers (id, student_id, teacher_id, request_type, approval_status, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.QueryRow(ctx, query,
		c.ID,
		c.StudentID,
		c.TeacherID,
		c.RequestType,
		c.ApprovalStatus,
		c.IsActive,
	).Scan(&c.CreatedAt)
	if err != nil {
		return writeErr("create connection", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *ConnectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	c, err := r.queryOne(ctx, `SELECT `+connectionColumns+` FROM student_teachers WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

// GetByIDForUpdate получает заявку и блокирует строку до конца транзакции
func (r *ConnectionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	c, err := r.queryOne(ctx, `SELECT `+connectionColumns+` FROM student_teachers WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("get connection for update: %w", err)
	}
	return c, nil
}

// GetPending получает pending заявку студента к учителю (любого типа)
func (r *ConnectionRepository) GetPending(ctx context.Context, studentID, teacherID uuid.UUID) (*model.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM student_teachers
		WHERE student_id = $1 AND teacher_id = $2 AND approval_status = $3
	`

	c, err := r.queryOne(ctx, query, studentID, teacherID, model.ApprovalPending)
	if err != nil {
		return nil, fmt.Errorf("get pending connection: %w", err)
	}
	return c, nil
}

// GetActive получает действующую связь пары (в том числе с pending-запросом на отключение)
func (r *ConnectionRepository) GetActive(ctx context.Context, studentID, teacherID uuid.UUID) (*model.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM student_teachers
		WHERE student_id = $1 AND teacher_id = $2 AND is_active = true
			AND approval_status IN ($3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`

	c, err := r.queryOne(ctx, query, studentID, teacherID, model.ApprovalApproved, model.ApprovalPending)
	if err != nil {
		return nil, fmt.Errorf("get active connection: %w", err)
	}
	return c, nil
}

// ListPendingByTeacher получает pending заявки учителя обоих типов
func (r *ConnectionRepository) ListPendingByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*model.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM student_teachers
		WHERE teacher_id = $1 AND approval_status = $2
		ORDER BY created_at ASC
	`

	connections, err := r.queryMany(ctx, query, teacherID, model.ApprovalPending)
	if err != nil {
		return nil, fmt.Errorf("get pending connections: %w", err)
	}
	return connections, nil
}

// ListByStudent получает все заявки студента
func (r *ConnectionRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*model.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM student_teachers
		WHERE student_id = $1
		ORDER BY created_at DESC
	`

	connections, err := r.queryMany(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student connections: %w", err)
	}
	return connections, nil
}

// ListActiveByTeacher получает действующие связи учителя
func (r *ConnectionRepository) ListActiveByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*model.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM student_teachers
		WHERE teacher_id = $1 AND is_active = true AND approval_status IN ($2, $3)
		ORDER BY created_at DESC
	`

	connections, err := r.queryMany(ctx, query, teacherID, model.ApprovalApproved, model.ApprovalPending)
	if err != nil {
		return nil, fmt.Errorf("get teacher connections: %w", err)
	}
	return connections, nil
}

// UpdateState обновляет тип запроса, статус и активность
func (r *ConnectionRepository) UpdateState(ctx context.Context, c *model.Connection) error {
	query := `
		UPDATE student_teachers
		SET request_type = $1, approval_status = $2, is_active = $3, updated_at = $4
		WHERE id = $5
	`

	now := time.Now()
	affected, err := r.ExecAffected(ctx, query, c.RequestType, c.ApprovalStatus, c.IsActive, now, c.ID)
	if err != nil {
		return writeErr("update connection state", err)
	}

	if affected == 0 {
		return fmt.Errorf("update connection state: %w", base.ErrNoRowsAffected)
	}

	c.UpdatedAt = &now
	return nil
}

// Delete удаляет заявку
func (r *ConnectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := r.ExecAffected(ctx, `DELETE FROM student_teachers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("delete connection: %w", base.ErrNoRowsAffected)
	}

	return nil
}
