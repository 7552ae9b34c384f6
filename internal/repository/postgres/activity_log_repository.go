package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

type ActivityLogRepository struct {
	*base.Repository
}

func NewActivityLogRepository(db base.DBTX) *ActivityLogRepository {
	return &ActivityLogRepository{Repository: base.NewRepository(db)}
}

// Insert добавляет запись журнала (append-only)
func (r *ActivityLogRepository) Insert(ctx context.Context, entry *model.ActivityLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal activity details: %w", err)
	}

	query := `
		INSERT INTO admin_activity_logs (id, institution_id, actor, action, target_user_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err = r.QueryRow(ctx, query,
		entry.ID,
		entry.InstitutionID,
		entry.Actor,
		entry.Action,
		entry.TargetUserID,
		details,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}

	return nil
}

// ListByInstitution получает последние записи учреждения
func (r *ActivityLogRepository) ListByInstitution(ctx context.Context, institutionID uuid.UUID, limit int) ([]*model.ActivityLog, error) {
	query := `
		SELECT id, institution_id, actor, action, target_user_id, details, created_at
		FROM admin_activity_logs
		WHERE institution_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.Query(ctx, query, institutionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	defer rows.Close()

	var entries []*model.ActivityLog
	for rows.Next() {
		var entry model.ActivityLog
		var details []byte
		err := rows.Scan(
			&entry.ID,
			&entry.InstitutionID,
			&entry.Actor,
			&entry.Action,
			&entry.TargetUserID,
			&details,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal activity details: %w", err)
			}
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity logs: %w", err)
	}

	return entries, nil
}
