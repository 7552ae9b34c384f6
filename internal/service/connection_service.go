package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StudentTeachers is the student's view of their connections.
// Pending holds both request types, so a connection waiting on a disconnect
// decision is listed there even though it is still active. The student can
// cancel anything in Pending.
type StudentTeachers struct {
	Connected []*model.Connection `json:"connected"`
	Pending   []*model.Connection `json:"pending"`
	// RejectedActive holds rejected rows still flagged active
	RejectedActive []*model.Connection `json:"rejected_active"`
}

type ConnectionService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewConnectionService(store repository.Store, logger *zap.Logger) *ConnectionService {
	return &ConnectionService{
		store:  store,
		logger: logger,
	}
}

// ============ Студент ============

// ConnectToTeacher создаёт заявку на подключение к учителю по коду
func (s *ConnectionService) ConnectToTeacher(ctx context.Context, studentID uuid.UUID, teacherCode string) (*model.Connection, error) {
	code := strings.ToUpper(strings.TrimSpace(teacherCode))
	if code == "" {
		return nil, apperrors.Validation("teacher_code", "is required")
	}

	var conn *model.Connection
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		student, err := tx.Students().GetByID(ctx, studentID)
		if err != nil {
			return fmt.Errorf("get student: %w", err)
		}
		if student == nil {
			return apperrors.NotAuthorized("only students can connect to a teacher")
		}

		teacher, err := tx.Teachers().GetByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("get teacher by code: %w", err)
		}
		if teacher == nil {
			return apperrors.NotFound("teacher with code %s not found", code)
		}

		// Уже подключены или ждём решения по отключению
		active, err := tx.Connections().GetActive(ctx, studentID, teacher.ID)
		if err != nil {
			return fmt.Errorf("get active connection: %w", err)
		}
		if active != nil && (active.IsConnected() || active.IsPendingDisconnect()) {
			return apperrors.Conflict("already connected to teacher %s", code)
		}

		// Повторная заявка возвращает существующую
		pending, err := tx.Connections().GetPending(ctx, studentID, teacher.ID)
		if err != nil {
			return fmt.Errorf("get pending connection: %w", err)
		}
		if pending != nil {
			conn = pending
			return nil
		}

		conn = &model.Connection{
			StudentID:      studentID,
			TeacherID:      teacher.ID,
			RequestType:    model.RequestTypeConnect,
			ApprovalStatus: model.ApprovalPending,
			IsActive:       false,
		}
		if err := tx.Connections().Create(ctx, conn); err != nil {
			return fmt.Errorf("create connection: %w", err)
		}
		conn.Teacher = teacher
		return nil
	})
	if err != nil {
		// Параллельная заявка успела раньше
		if errors.Is(err, repository.ErrDuplicate) {
			return s.existingPending(ctx, studentID, code)
		}
		return nil, err
	}

	s.logger.Info("Connection requested",
		zap.String("connection_id", conn.ID.String()),
		zap.String("student_id", studentID.String()),
		zap.String("teacher_id", conn.TeacherID.String()),
	)

	return conn, nil
}

func (s *ConnectionService) existingPending(ctx context.Context, studentID uuid.UUID, code string) (*model.Connection, error) {
	teacher, err := s.store.Teachers().GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get teacher by code: %w", err)
	}
	if teacher == nil {
		return nil, apperrors.NotFound("teacher with code %s not found", code)
	}
	pending, err := s.store.Connections().GetPending(ctx, studentID, teacher.ID)
	if err != nil {
		return nil, fmt.Errorf("get pending connection: %w", err)
	}
	if pending == nil {
		return nil, apperrors.Conflict("connection request changed concurrently, retry")
	}
	return pending, nil
}

// RequestDisconnection студент просит отключиться, решение за учителем
func (s *ConnectionService) RequestDisconnection(ctx context.Context, studentID, connectionID uuid.UUID) (*model.Connection, error) {
	return s.transition(ctx, connectionID, "disconnect requested", func(c *model.Connection) error {
		if c.StudentID != studentID {
			return apperrors.NotAuthorized("connection %s belongs to another student", connectionID)
		}
		if !c.IsConnected() || c.RequestType != model.RequestTypeConnect {
			return apperrors.InvalidTransition("connection is not approved")
		}
		c.RequestType = model.RequestTypeDisconnect
		c.ApprovalStatus = model.ApprovalPending
		return nil
	})
}

// CancelPendingRequest отменяет заявку студента, пока она pending
func (s *ConnectionService) CancelPendingRequest(ctx context.Context, studentID, connectionID uuid.UUID) error {
	var cancelled *model.Connection
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		c, err := s.load(ctx, tx, connectionID)
		if err != nil {
			return err
		}
		if c.StudentID != studentID {
			return apperrors.NotAuthorized("connection %s belongs to another student", connectionID)
		}

		switch {
		case c.IsPendingConnect():
			if err := tx.Connections().Delete(ctx, c.ID); err != nil {
				return s.writeErr("delete connection", c.ID, err)
			}
		case c.IsPendingDisconnect():
			// Отзыв запроса на отключение возвращает связь в approved
			c.RequestType = model.RequestTypeConnect
			c.ApprovalStatus = model.ApprovalApproved
			if err := tx.Connections().UpdateState(ctx, c); err != nil {
				return s.writeErr("update connection", c.ID, err)
			}
		default:
			return apperrors.InvalidTransition("only pending requests can be cancelled")
		}
		cancelled = c
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Connection request cancelled",
		zap.String("connection_id", connectionID.String()),
		zap.String("request_type", string(cancelled.RequestType)),
	)

	return nil
}

// GetStudentTeachers получает связи студента, сгруппированные по состоянию
func (s *ConnectionService) GetStudentTeachers(ctx context.Context, studentID uuid.UUID) (*StudentTeachers, error) {
	student, err := s.store.Students().GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, apperrors.NotAuthorized("caller is not a student")
	}

	connections, err := s.store.Connections().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student connections: %w", err)
	}

	if err := s.attachTeachers(ctx, connections); err != nil {
		return nil, err
	}

	result := &StudentTeachers{
		Connected:      []*model.Connection{},
		Pending:        []*model.Connection{},
		RejectedActive: []*model.Connection{},
	}
	for _, c := range connections {
		switch {
		case c.IsConnected():
			result.Connected = append(result.Connected, c)
		case c.IsPending():
			result.Pending = append(result.Pending, c)
		case c.IsRejectedButActive():
			result.RejectedActive = append(result.RejectedActive, c)
		}
	}

	return result, nil
}

// ============ Учитель ============

// ApproveStudentRequest одобряет заявку на подключение
func (s *ConnectionService) ApproveStudentRequest(ctx context.Context, teacherID, connectionID uuid.UUID) (*model.Connection, error) {
	return s.transition(ctx, connectionID, "connection approved", func(c *model.Connection) error {
		if err := s.ownedByTeacher(c, teacherID); err != nil {
			return err
		}
		if !c.IsPendingConnect() {
			return apperrors.InvalidTransition("connection is %s, not a pending connect request", c.ApprovalStatus)
		}
		c.ApprovalStatus = model.ApprovalApproved
		c.IsActive = true
		return nil
	})
}

// RejectStudentRequest отклоняет заявку на подключение
func (s *ConnectionService) RejectStudentRequest(ctx context.Context, teacherID, connectionID uuid.UUID) (*model.Connection, error) {
	return s.transition(ctx, connectionID, "connection rejected", func(c *model.Connection) error {
		if err := s.ownedByTeacher(c, teacherID); err != nil {
			return err
		}
		if !c.IsPendingConnect() {
			return apperrors.InvalidTransition("connection is %s, not a pending connect request", c.ApprovalStatus)
		}
		c.ApprovalStatus = model.ApprovalRejected
		c.IsActive = false
		return nil
	})
}

// ApproveDisconnectionRequest учитель подтверждает отключение студента
func (s *ConnectionService) ApproveDisconnectionRequest(ctx context.Context, teacherID, connectionID uuid.UUID) (*model.Connection, error) {
	return s.transition(ctx, connectionID, "disconnect approved", func(c *model.Connection) error {
		if err := s.ownedByTeacher(c, teacherID); err != nil {
			return err
		}
		if !c.IsPendingDisconnect() {
			return apperrors.InvalidTransition("connection has no pending disconnect request")
		}
		c.ApprovalStatus = model.ApprovalDisconnected
		c.IsActive = false
		return nil
	})
}

// RejectDisconnectionRequest учитель отказывает в отключении, связь остаётся
func (s *ConnectionService) RejectDisconnectionRequest(ctx context.Context, teacherID, connectionID uuid.UUID) (*model.Connection, error) {
	return s.transition(ctx, connectionID, "disconnect denied", func(c *model.Connection) error {
		if err := s.ownedByTeacher(c, teacherID); err != nil {
			return err
		}
		if !c.IsPendingDisconnect() {
			return apperrors.InvalidTransition("connection has no pending disconnect request")
		}
		c.RequestType = model.RequestTypeConnect
		c.ApprovalStatus = model.ApprovalApproved
		return nil
	})
}

// DisconnectStudent учитель сам отключает студента
func (s *ConnectionService) DisconnectStudent(ctx context.Context, teacherID, connectionID uuid.UUID) (*model.Connection, error) {
	return s.transition(ctx, connectionID, "student disconnected", func(c *model.Connection) error {
		if err := s.ownedByTeacher(c, teacherID); err != nil {
			return err
		}
		if !c.IsConnected() && !c.IsPendingDisconnect() && !c.IsRejectedButActive() {
			return apperrors.InvalidTransition("connection is not active")
		}
		c.RequestType = model.RequestTypeDisconnect
		c.ApprovalStatus = model.ApprovalDisconnected
		c.IsActive = false
		return nil
	})
}

// GetPendingRequests получает pending заявки учителя обоих типов
func (s *ConnectionService) GetPendingRequests(ctx context.Context, teacherID uuid.UUID) ([]*model.Connection, error) {
	if err := s.requireTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	connections, err := s.store.Connections().ListPendingByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get pending requests: %w", err)
	}

	if err := s.attachStudents(ctx, connections); err != nil {
		return nil, err
	}

	return connections, nil
}

// GetTeacherStudents получает подключённых студентов учителя
func (s *ConnectionService) GetTeacherStudents(ctx context.Context, teacherID uuid.UUID) ([]*model.Connection, error) {
	if err := s.requireTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	connections, err := s.store.Connections().ListActiveByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher connections: %w", err)
	}

	// pending disconnect всё ещё считается подключением
	students := make([]*model.Connection, 0, len(connections))
	for _, c := range connections {
		if c.IsConnected() || c.IsPendingDisconnect() {
			students = append(students, c)
		}
	}

	if err := s.attachStudents(ctx, students); err != nil {
		return nil, err
	}

	return students, nil
}

// IsConnected проверяет, что пара связана (в том числе с pending-запросом на отключение)
func (s *ConnectionService) IsConnected(ctx context.Context, studentID, teacherID uuid.UUID) (bool, error) {
	active, err := s.store.Connections().GetActive(ctx, studentID, teacherID)
	if err != nil {
		return false, fmt.Errorf("get active connection: %w", err)
	}
	return active != nil && (active.IsConnected() || active.IsPendingDisconnect()), nil
}

// ============ Внутренние ============

func (s *ConnectionService) load(ctx context.Context, tx repository.Store, connectionID uuid.UUID) (*model.Connection, error) {
	c, err := tx.Connections().GetByIDForUpdate(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if c == nil {
		return nil, apperrors.NotFound("connection %s not found", connectionID)
	}
	return c, nil
}

// writeErr превращает исчезнувшую строку в NotFound
func (s *ConnectionService) writeErr(op string, connectionID uuid.UUID, err error) error {
	if errors.Is(err, base.ErrNoRowsAffected) {
		return apperrors.NotFound("connection %s not found", connectionID)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *ConnectionService) ownedByTeacher(c *model.Connection, teacherID uuid.UUID) error {
	if c.TeacherID != teacherID {
		return apperrors.NotAuthorized("connection %s belongs to another teacher", c.ID)
	}
	return nil
}

func (s *ConnectionService) requireTeacher(ctx context.Context, teacherID uuid.UUID) error {
	teacher, err := s.store.Teachers().GetByID(ctx, teacherID)
	if err != nil {
		return fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return apperrors.NotAuthorized("caller is not a teacher")
	}
	return nil
}

// transition загружает связь, применяет mutate и сохраняет в одной транзакции
func (s *ConnectionService) transition(ctx context.Context, connectionID uuid.UUID, event string, mutate func(c *model.Connection) error) (*model.Connection, error) {
	var conn *model.Connection
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		c, err := s.load(ctx, tx, connectionID)
		if err != nil {
			return err
		}
		if err := mutate(c); err != nil {
			return err
		}
		if err := tx.Connections().UpdateState(ctx, c); err != nil {
			return s.writeErr("update connection", c.ID, err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Connection "+event,
		zap.String("connection_id", conn.ID.String()),
		zap.String("student_id", conn.StudentID.String()),
		zap.String("teacher_id", conn.TeacherID.String()),
		zap.String("approval_status", string(conn.ApprovalStatus)),
	)

	return conn, nil
}

func (s *ConnectionService) attachTeachers(ctx context.Context, connections []*model.Connection) error {
	if len(connections) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(connections))
	for _, c := range connections {
		ids = append(ids, c.TeacherID)
	}

	teachers, err := s.store.Teachers().GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("get teachers: %w", err)
	}

	byID := make(map[uuid.UUID]*model.Teacher, len(teachers))
	for _, t := range teachers {
		byID[t.ID] = t
	}
	for _, c := range connections {
		c.Teacher = byID[c.TeacherID]
	}
	return nil
}

func (s *ConnectionService) attachStudents(ctx context.Context, connections []*model.Connection) error {
	if len(connections) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(connections))
	for _, c := range connections {
		ids = append(ids, c.StudentID)
	}

	students, err := s.store.Students().GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("get students: %w", err)
	}

	byID := make(map[uuid.UUID]*model.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}
	for _, c := range connections {
		c.Student = byID[c.StudentID]
	}
	return nil
}
