package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/studytrack/internal/auth"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/Freeeeeet/studytrack/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureRecorder struct {
	mu      sync.Mutex
	entries []*model.ActivityLog
}

func (r *captureRecorder) Record(_ context.Context, entry *model.ActivityLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *captureRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	jwt      *auth.JWTService
	recorder *captureRecorder
	conns    *ConnectionService
	members  *MembershipService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	store := memory.NewStore()
	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: "test-secret", TokenIssuer: "studytrack"})
	recorder := &captureRecorder{}

	return &fixture{
		ctx:      context.Background(),
		store:    store,
		jwt:      jwtService,
		recorder: recorder,
		conns:    NewConnectionService(store, logger),
		members:  NewMembershipService(store, NewAuthorizer(), NewPlanSigner(jwtService, time.Minute), recorder, logger),
		auth:     NewAuthService(store, jwtService, time.Hour, logger),
	}
}

func (f *fixture) institution(t *testing.T, name string, maxTeachers, maxStudents int) *model.Institution {
	t.Helper()
	inst := &model.Institution{
		Name:         name,
		Type:         "school",
		ContactEmail: "office@" + name + ".edu",
		IsActive:     true,
		MaxTeachers:  maxTeachers,
		MaxStudents:  maxStudents,
	}
	require.NoError(t, f.store.Institutions().Create(f.ctx, inst))
	return inst
}

// admin creates an active admin credential and returns the matching caller.
func (f *fixture) admin(t *testing.T, inst *model.Institution) Caller {
	t.Helper()
	cred := &model.AdminCredential{
		InstitutionID: inst.ID,
		Username:      "admin-" + inst.Name,
		Email:         "admin@" + inst.Name + ".edu",
		PasswordHash:  "x",
		IsActive:      true,
	}
	require.NoError(t, f.store.AdminCredentials().Create(f.ctx, cred))
	return Caller{AdminUsername: cred.Username}
}

func (f *fixture) user(t *testing.T, role model.Role, name, email string) *model.User {
	t.Helper()
	u := &model.User{Role: role, Name: name, Email: email}
	require.NoError(t, f.store.Users().Create(f.ctx, u))
	return u
}

func (f *fixture) teacher(t *testing.T, name, code string) *model.User {
	t.Helper()
	u := f.user(t, model.RoleTeacher, name, name+"@teachers.io")
	require.NoError(t, f.store.Teachers().Create(f.ctx, &model.Teacher{ID: u.ID, TeacherCode: code}))
	return u
}

func (f *fixture) student(t *testing.T, name string) *model.User {
	t.Helper()
	u := f.user(t, model.RoleStudent, name, name+"@students.io")
	require.NoError(t, f.store.Students().Create(f.ctx, &model.Student{ID: u.ID}))
	return u
}

// member places an existing user in inst with the given active flag.
func (f *fixture) member(t *testing.T, u *model.User, inst *model.Institution, active bool) *model.Membership {
	t.Helper()
	m := &model.Membership{UserID: u.ID, InstitutionID: inst.ID, Role: u.Role, IsActive: active}
	require.NoError(t, f.store.Memberships().Create(f.ctx, m))
	return m
}

func (f *fixture) activeMemberships(t *testing.T, userID uuid.UUID) []*model.Membership {
	t.Helper()
	ms, err := f.store.Memberships().ListActiveByUser(f.ctx, userID)
	require.NoError(t, err)
	return ms
}

func teacherData(first, email string) MemberData {
	return MemberData{FirstName: first, LastName: "Test", Email: email, Password: "pass-1234", Branch: "Math"}
}

// hooks lets a test interleave a concurrent caller with the code under test.
type hooks struct {
	beforeTeacherList func()
	beforeConnUpdate  func(ctx context.Context, tx repository.Store, c *model.Connection)

	// rivalConnect is committed by another caller while our insert is running.
	rivalConnect *model.Connection
	rivalDue     bool
}

type hookStore struct {
	*memory.Store
	hooks *hooks
}

func (h *hookStore) Teachers() repository.TeacherRepository {
	return &hookTeachers{TeacherRepository: h.Store.Teachers(), hooks: h.hooks}
}

func (h *hookStore) Connections() repository.ConnectionRepository {
	return &hookConnections{ConnectionRepository: h.Store.Connections(), store: h}
}

func (h *hookStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	err := h.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(&hookStore{Store: tx.(*memory.Store), hooks: h.hooks})
	})
	if h.hooks.rivalDue {
		h.hooks.rivalDue = false
		rival := h.hooks.rivalConnect
		h.hooks.rivalConnect = nil
		if cerr := h.Store.Connections().Create(ctx, rival); cerr != nil {
			return cerr
		}
	}
	return err
}

type hookTeachers struct {
	repository.TeacherRepository
	hooks *hooks
}

func (r *hookTeachers) List(ctx context.Context) ([]*model.Teacher, error) {
	if hook := r.hooks.beforeTeacherList; hook != nil {
		r.hooks.beforeTeacherList = nil
		hook()
	}
	return r.TeacherRepository.List(ctx)
}

type hookConnections struct {
	repository.ConnectionRepository
	store *hookStore
}

func (r *hookConnections) Create(ctx context.Context, c *model.Connection) error {
	if h := r.store.hooks; h.rivalConnect != nil && !h.rivalDue {
		h.rivalDue = true
		return fmt.Errorf("create connection: %w", repository.ErrDuplicate)
	}
	return r.ConnectionRepository.Create(ctx, c)
}

func (r *hookConnections) UpdateState(ctx context.Context, c *model.Connection) error {
	if hook := r.store.hooks.beforeConnUpdate; hook != nil {
		r.store.hooks.beforeConnUpdate = nil
		hook(ctx, r.store, c)
	}
	return r.ConnectionRepository.UpdateState(ctx, c)
}
