package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxStudyMinutes     = 24 * 60
	maxMessageLength    = 4000
	defaultHistoryLimit = 50
	defaultLogWindow    = 30 * 24 * time.Hour
)

type StudyLogInput struct {
	Subject         string    `json:"subject"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionsSolved int       `json:"questions_solved"`
	Note            string    `json:"note"`
	StudiedAt       time.Time `json:"studied_at"`
}

// StudyService records study sessions and relays messages between connected pairs.
type StudyService struct {
	store       repository.Store
	connections *ConnectionService
	logger      *zap.Logger
}

func NewStudyService(store repository.Store, connections *ConnectionService, logger *zap.Logger) *StudyService {
	return &StudyService{
		store:       store,
		connections: connections,
		logger:      logger,
	}
}

// LogStudy записывает учебную сессию студента
func (s *StudyService) LogStudy(ctx context.Context, studentID uuid.UUID, in StudyLogInput) (*model.StudyLog, error) {
	student, err := s.store.Students().GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, apperrors.NotAuthorized("only students can log study sessions")
	}

	in.Subject = strings.TrimSpace(in.Subject)
	if in.Subject == "" {
		return nil, apperrors.Validation("subject", "is required")
	}
	if in.DurationMinutes <= 0 || in.DurationMinutes > maxStudyMinutes {
		return nil, apperrors.Validation("duration_minutes", "must be between 1 and 1440")
	}
	if in.QuestionsSolved < 0 {
		return nil, apperrors.Validation("questions_solved", "must not be negative")
	}

	now := time.Now()
	if in.StudiedAt.IsZero() {
		in.StudiedAt = now
	}
	if in.StudiedAt.After(now.Add(time.Hour)) {
		return nil, apperrors.Validation("studied_at", "must not be in the future")
	}

	entry := &model.StudyLog{
		StudentID:       studentID,
		Subject:         in.Subject,
		DurationMinutes: in.DurationMinutes,
		QuestionsSolved: in.QuestionsSolved,
		Note:            in.Note,
		StudiedAt:       in.StudiedAt,
	}
	if err := s.store.StudyLogs().Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create study log: %w", err)
	}

	s.logger.Debug("Study session logged",
		zap.String("student_id", studentID.String()),
		zap.String("subject", entry.Subject),
		zap.Int("minutes", entry.DurationMinutes),
	)

	return entry, nil
}

// ListOwnLogs получает сессии самого студента
func (s *StudyService) ListOwnLogs(ctx context.Context, studentID uuid.UUID, since time.Time) ([]*model.StudyLog, error) {
	logs, err := s.store.StudyLogs().ListByStudent(ctx, studentID, sinceOrDefault(since))
	if err != nil {
		return nil, fmt.Errorf("list study logs: %w", err)
	}
	return logs, nil
}

// ListStudentLogs учитель читает сессии только подключённого студента
func (s *StudyService) ListStudentLogs(ctx context.Context, teacherID, studentID uuid.UUID, since time.Time) ([]*model.StudyLog, error) {
	connected, err := s.connections.IsConnected(ctx, studentID, teacherID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, apperrors.NotAuthorized("student %s is not connected to you", studentID)
	}

	return s.ListOwnLogs(ctx, studentID, since)
}

// SendMessage отправляет сообщение внутри подключённой пары
func (s *StudyService) SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.Validation("body", "is required")
	}
	if len(body) > maxMessageLength {
		return nil, apperrors.Validation("body", "is too long")
	}

	ok, err := s.pairConnected(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotAuthorized("you can only message connected teachers and students")
	}

	msg := &model.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
	}
	if err := s.store.Messages().Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	return msg, nil
}

// Conversation получает переписку с собеседником и отмечает входящие прочитанными
func (s *StudyService) Conversation(ctx context.Context, userID, peerID uuid.UUID, limit int) ([]*model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}

	messages, err := s.store.Messages().ListConversation(ctx, userID, peerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}

	if _, err := s.store.Messages().MarkRead(ctx, userID, peerID); err != nil {
		s.logger.Warn("Failed to mark messages read", zap.Error(err))
	}

	return messages, nil
}

func (s *StudyService) pairConnected(ctx context.Context, a, b uuid.UUID) (bool, error) {
	student, err := s.store.Students().GetByID(ctx, a)
	if err != nil {
		return false, fmt.Errorf("get student: %w", err)
	}
	if student != nil {
		return s.connections.IsConnected(ctx, a, b)
	}
	return s.connections.IsConnected(ctx, b, a)
}

func sinceOrDefault(since time.Time) time.Time {
	if since.IsZero() {
		return time.Now().Add(-defaultLogWindow)
	}
	return since
}
