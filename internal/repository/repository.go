package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/google/uuid"
)

// All Get* methods return (nil, nil) when the row does not exist.

// ErrDuplicate is returned when a write violates a uniqueness rule.
var ErrDuplicate = errors.New("duplicate key")

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	SetTelegramID(ctx context.Context, id uuid.UUID, telegramID int64) error
}

type InstitutionRepository interface {
	Create(ctx context.Context, inst *model.Institution) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Institution, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Institution, error)
	// Lock holds the institution row until the surrounding transaction ends.
	Lock(ctx context.Context, id uuid.UUID) error
}

type MembershipRepository interface {
	Create(ctx context.Context, m *model.Membership) error
	GetByUserAndInstitution(ctx context.Context, userID, institutionID uuid.UUID) (*model.Membership, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*model.Membership, error)
	// CountActiveByRole counts active memberships whose profile has the given role.
	CountActiveByRole(ctx context.Context, institutionID uuid.UUID, role model.Role) (int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// DeactivateOthers deactivates every active membership of userID outside keepInstitutionID.
	DeactivateOthers(ctx context.Context, userID, keepInstitutionID uuid.UUID) (int64, error)
}

type TeacherRepository interface {
	Create(ctx context.Context, t *model.Teacher) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Teacher, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Teacher, error)
	GetByCode(ctx context.Context, code string) (*model.Teacher, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, t *model.Teacher) error
	SetInstitution(ctx context.Context, id uuid.UUID, institutionID *uuid.UUID) error
	List(ctx context.Context) ([]*model.Teacher, error)
	// Lock holds the teacher row until the surrounding transaction ends.
	Lock(ctx context.Context, id uuid.UUID) error
}

type StudentRepository interface {
	Create(ctx context.Context, s *model.Student) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Student, error)
	Update(ctx context.Context, s *model.Student) error
	SetInstitution(ctx context.Context, id uuid.UUID, institutionID *uuid.UUID) error
	List(ctx context.Context) ([]*model.Student, error)
	// Lock holds the student row until the surrounding transaction ends.
	Lock(ctx context.Context, id uuid.UUID) error
}

type ConnectionRepository interface {
	Create(ctx context.Context, c *model.Connection) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Connection, error)
	// GetByIDForUpdate reads the row and holds it until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Connection, error)
	// GetPending returns the pending request of either type for the pair.
	GetPending(ctx context.Context, studentID, teacherID uuid.UUID) (*model.Connection, error)
	// GetActive returns the live connection of the pair, including one with a pending disconnect.
	GetActive(ctx context.Context, studentID, teacherID uuid.UUID) (*model.Connection, error)
	ListPendingByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*model.Connection, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*model.Connection, error)
	ListActiveByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*model.Connection, error)
	UpdateState(ctx context.Context, c *model.Connection) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type AdminCredentialRepository interface {
	Create(ctx context.Context, cred *model.AdminCredential) error
	GetByUsername(ctx context.Context, username string) (*model.AdminCredential, error)
	// HasActive reports an active credential for the institution matching username or email.
	HasActive(ctx context.Context, institutionID uuid.UUID, username, email string) (bool, error)
}

type ActivityLogRepository interface {
	Insert(ctx context.Context, entry *model.ActivityLog) error
	ListByInstitution(ctx context.Context, institutionID uuid.UUID, limit int) ([]*model.ActivityLog, error)
}

type SessionRepository interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type StudyLogRepository interface {
	Create(ctx context.Context, entry *model.StudyLog) error
	ListByStudent(ctx context.Context, studentID uuid.UUID, since time.Time) ([]*model.StudyLog, error)
}

type StudyPlanRepository interface {
	// Upsert replaces the goals of an existing plan for the same student, period and start.
	Upsert(ctx context.Context, plan *model.StudyPlan) error
	ListByStudent(ctx context.Context, studentID uuid.UUID, period model.PlanPeriod, from time.Time) ([]*model.StudyPlan, error)
	Delete(ctx context.Context, studentID uuid.UUID, period model.PlanPeriod, startsOn time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	ListConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]*model.Message, error)
	MarkRead(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error)
}

// Store groups the repositories over one connection or transaction.
type Store interface {
	Users() UserRepository
	Institutions() InstitutionRepository
	Memberships() MembershipRepository
	Teachers() TeacherRepository
	Students() StudentRepository
	Connections() ConnectionRepository
	AdminCredentials() AdminCredentialRepository
	ActivityLogs() ActivityLogRepository
	Sessions() SessionRepository
	StudyLogs() StudyLogRepository
	Messages() MessageRepository
	StudyPlans() StudyPlanRepository

	// WithTx runs fn against a Store bound to a single transaction.
	// The transaction is rolled back when fn returns an error.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
