// Package memory is a map-backed repository.Store used for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/google/uuid"
)

type tables struct {
	users        map[uuid.UUID]model.User
	institutions map[uuid.UUID]model.Institution
	memberships  map[uuid.UUID]model.Membership
	teachers     map[uuid.UUID]model.Teacher
	students     map[uuid.UUID]model.Student
	connections  map[uuid.UUID]model.Connection
	adminCreds   map[uuid.UUID]model.AdminCredential
	activityLogs []model.ActivityLog
	revoked      map[string]time.Time
	studyLogs    []model.StudyLog
	messages     []model.Message
	plans        map[uuid.UUID]model.StudyPlan
	lastTick     time.Time
}

func newTables() *tables {
	return &tables{
		users:        make(map[uuid.UUID]model.User),
		institutions: make(map[uuid.UUID]model.Institution),
		memberships:  make(map[uuid.UUID]model.Membership),
		teachers:     make(map[uuid.UUID]model.Teacher),
		students:     make(map[uuid.UUID]model.Student),
		connections:  make(map[uuid.UUID]model.Connection),
		adminCreds:   make(map[uuid.UUID]model.AdminCredential),
		revoked:      make(map[string]time.Time),
		plans:        make(map[uuid.UUID]model.StudyPlan),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.institutions {
		c.institutions[k] = v
	}
	for k, v := range t.memberships {
		c.memberships[k] = v
	}
	for k, v := range t.teachers {
		c.teachers[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.connections {
		c.connections[k] = v
	}
	for k, v := range t.adminCreds {
		c.adminCreds[k] = v
	}
	for k, v := range t.revoked {
		c.revoked[k] = v
	}
	for k, v := range t.plans {
		c.plans[k] = v
	}
	c.activityLogs = append(c.activityLogs, t.activityLogs...)
	c.studyLogs = append(c.studyLogs, t.studyLogs...)
	c.messages = append(c.messages, t.messages...)
	c.lastTick = t.lastTick
	return c
}

// now returns a strictly increasing timestamp so rows keep insertion order.
func (t *tables) now() time.Time {
	n := time.Now()
	if !n.After(t.lastTick) {
		n = t.lastTick.Add(time.Microsecond)
	}
	t.lastTick = n
	return n
}

// Store implements repository.Store over in-process maps.
type Store struct {
	mu   *sync.RWMutex
	txMu *sync.Mutex
	db   *tables
	inTx bool
}

func NewStore() *Store {
	return &Store{
		mu:   &sync.RWMutex{},
		txMu: &sync.Mutex{},
		db:   newTables(),
	}
}

func (s *Store) Users() repository.UserRepository               { return &userRepo{s} }
func (s *Store) Institutions() repository.InstitutionRepository { return &institutionRepo{s} }
func (s *Store) Memberships() repository.MembershipRepository   { return &membershipRepo{s} }
func (s *Store) Teachers() repository.TeacherRepository         { return &teacherRepo{s} }
func (s *Store) Students() repository.StudentRepository         { return &studentRepo{s} }
func (s *Store) Connections() repository.ConnectionRepository   { return &connectionRepo{s} }
func (s *Store) AdminCredentials() repository.AdminCredentialRepository {
	return &adminCredentialRepo{s}
}
func (s *Store) ActivityLogs() repository.ActivityLogRepository { return &activityLogRepo{s} }
func (s *Store) Sessions() repository.SessionRepository         { return &sessionRepo{s} }
func (s *Store) StudyLogs() repository.StudyLogRepository       { return &studyLogRepo{s} }
func (s *Store) Messages() repository.MessageRepository         { return &messageRepo{s} }
func (s *Store) StudyPlans() repository.StudyPlanRepository     { return &studyPlanRepo{s} }

// write takes the table lock for a mutation. Outside a transaction it first
// waits for the running one, so a rollback never discards the write.
func (s *Store) write() func() {
	if !s.inTx {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if !s.inTx {
			s.txMu.Unlock()
		}
	}
}

// WithTx serializes transactions and restores a snapshot when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.db.clone()
	s.mu.Unlock()

	restore := func() {
		s.mu.Lock()
		*s.db = *snapshot
		s.mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			restore()
			panic(r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &Store{mu: s.mu, txMu: s.txMu, db: s.db, inTx: true}
	if err := fn(tx); err != nil {
		restore()
		return err
	}

	return nil
}

var _ repository.Store = (*Store)(nil)
