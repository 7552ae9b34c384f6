package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTxTimeout = 30 * time.Second

// Store собирает репозитории поверх пула или открытой транзакции
type Store struct {
	pool *pgxpool.Pool
	db   base.DBTX
}

// NewStore создаёт Store поверх пула соединений
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (s *Store) Users() repository.UserRepository { return NewUserRepository(s.db) }
func (s *Store) Institutions() repository.InstitutionRepository {
	return NewInstitutionRepository(s.db)
}
func (s *Store) Memberships() repository.MembershipRepository { return NewMembershipRepository(s.db) }
func (s *Store) Teachers() repository.TeacherRepository       { return NewTeacherRepository(s.db) }
func (s *Store) Students() repository.StudentRepository       { return NewStudentRepository(s.db) }
func (s *Store) Connections() repository.ConnectionRepository { return NewConnectionRepository(s.db) }
func (s *Store) AdminCredentials() repository.AdminCredentialRepository {
	return NewAdminCredentialRepository(s.db)
}
func (s *Store) ActivityLogs() repository.ActivityLogRepository { return NewActivityLogRepository(s.db) }
func (s *Store) Sessions() repository.SessionRepository         { return NewSessionRepository(s.db) }
func (s *Store) StudyLogs() repository.StudyLogRepository       { return NewStudyLogRepository(s.db) }
func (s *Store) Messages() repository.MessageRepository         { return NewMessageRepository(s.db) }
func (s *Store) StudyPlans() repository.StudyPlanRepository     { return NewStudyPlanRepository(s.db) }

// WithTx выполняет fn в одной транзакции. Вложенный вызов переиспользует текущую.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.pool == nil {
		return fn(s)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(&Store{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%v, rollback: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

var _ repository.Store = (*Store)(nil)
