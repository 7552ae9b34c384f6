package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

type StudyLogRepository struct {
	*base.Repository
}

func NewStudyLogRepository(db base.DBTX) *StudyLogRepository {
	return &StudyLogRepository{Repository: base.NewRepository(db)}
}

// Create записывает учебную сессию
func (r *StudyLogRepository) Create(ctx context.Context, entry *model.StudyLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO study_logs (id, student_id, subject, duration_minutes, questions_solved, note, studied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.QueryRow(ctx, query,
		entry.ID,
		entry.StudentID,
		entry.Subject,
		entry.DurationMinutes,
		entry.QuestionsSolved,
		entry.Note,
		entry.StudiedAt,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create study log: %w", err)
	}

	return nil
}

// ListByStudent получает сессии ученика начиная с since
func (r *StudyLogRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, since time.Time) ([]*model.StudyLog, error) {
	query := `
		SELECT id, student_id, subject, duration_minutes, questions_solved, note, studied_at, created_at
		FROM study_logs
		WHERE student_id = $1 AND studied_at >= $2
		ORDER BY studied_at DESC
	`

	rows, err := r.Query(ctx, query, studentID, since)
	if err != nil {
		return nil, fmt.Errorf("list study logs: %w", err)
	}
	defer rows.Close()

	var entries []*model.StudyLog
	for rows.Next() {
		var e model.StudyLog
		err := rows.Scan(
			&e.ID,
			&e.StudentID,
			&e.Subject,
			&e.DurationMinutes,
			&e.QuestionsSolved,
			&e.Note,
			&e.StudiedAt,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan study log: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate study logs: %w", err)
	}

	return entries, nil
}

type MessageRepository struct {
	*base.Repository
}

func NewMessageRepository(db base.DBTX) *MessageRepository {
	return &MessageRepository{Repository: base.NewRepository(db)}
}

// Create сохраняет сообщение
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	query := `
		INSERT INTO messages (id, sender_id, recipient_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	if err := r.QueryRow(ctx, query, msg.ID, msg.SenderID, msg.RecipientID, msg.Body).Scan(&msg.CreatedAt); err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

// ListConversation получает последние сообщения между двумя пользователями
func (r *MessageRepository) ListConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]*model.Message, error) {
	query := `
		SELECT id, sender_id, recipient_id, body, read_at, created_at
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.Query(ctx, query, a, b, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// MarkRead отмечает входящие сообщения от senderID прочитанными
func (r *MessageRepository) MarkRead(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	query := `
		UPDATE messages
		SET read_at = $1
		WHERE recipient_id = $2 AND sender_id = $3 AND read_at IS NULL
	`

	affected, err := r.ExecAffected(ctx, query, time.Now(), recipientID, senderID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}

	return affected, nil
}
