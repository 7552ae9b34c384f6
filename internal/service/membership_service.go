package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/auth"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const temporaryPasswordLength = 12

// MemberData is the profile payload of the add-teacher / add-student functions.
type MemberData struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password,omitempty" binding:"max=72"`
	Phone     string `json:"phone,omitempty"`
	Branch    string `json:"branch,omitempty"`
	School    string `json:"school,omitempty"`
	Grade     string `json:"grade,omitempty"`
}

func (d MemberData) fullName() string {
	return strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
}

type AddMemberRequest struct {
	InstitutionID               uuid.UUID
	Role                        model.Role
	Data                        MemberData
	DeactivateOtherInstitutions bool
}

func (r *AddMemberRequest) validate() error {
	if r.InstitutionID == uuid.Nil {
		return apperrors.Validation("institution_id", "is required")
	}
	if !r.Role.IsValid() {
		return apperrors.Validation("role", "must be teacher or student")
	}
	r.Data.Email = strings.ToLower(strings.TrimSpace(r.Data.Email))
	if err := checkEmail("email", r.Data.Email); err != nil {
		return err
	}
	if err := checkPassword("password", r.Data.Password); err != nil {
		return err
	}
	if strings.TrimSpace(r.Data.FirstName) == "" {
		return apperrors.Validation("firstName", "is required")
	}
	return nil
}

// OtherInstitution names an institution where the user is currently active.
type OtherInstitution struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type AddMemberResult struct {
	UserID            uuid.UUID `json:"user_id"`
	IsNewUser         bool      `json:"is_new_user"`
	Reactivated       bool      `json:"reactivated"`
	Message           string    `json:"message"`
	TemporaryPassword string    `json:"temporary_password,omitempty"`
	TeacherCode       string    `json:"teacher_code,omitempty"`

	RequiresConfirmation bool               `json:"requires_confirmation,omitempty"`
	OtherInstitutions    []OtherInstitution `json:"other_institutions,omitempty"`
}

// MemberPlan describes what CommitAddMember will do.
type MemberPlan struct {
	Token      string             `json:"plan_token"`
	IsNewUser  bool               `json:"is_new_user"`
	Reactivate bool               `json:"reactivate"`
	Deactivate []OtherInstitution `json:"deactivate"`
	SeatsUsed  int                `json:"seats_used"`
	SeatLimit  int                `json:"seat_limit"`
}

type UpdateUserRequest struct {
	InstitutionID uuid.UUID
	UserID        uuid.UUID
	UserType      model.Role
	Name          string
	Email         string
	Branch        *string
	Grade         *string
	School        *string
	Phone         *string
}

type MembershipService struct {
	store      repository.Store
	authorizer *Authorizer
	plans      *PlanSigner
	recorder   Recorder
	logger     *zap.Logger
}

func NewMembershipService(
	store repository.Store,
	authorizer *Authorizer,
	plans *PlanSigner,
	recorder Recorder,
	logger *zap.Logger,
) *MembershipService {
	return &MembershipService{
		store:      store,
		authorizer: authorizer,
		plans:      plans,
		recorder:   recorder,
		logger:     logger,
	}
}

// AddTeacherToInstitution добавляет учителя в учреждение
func (s *MembershipService) AddTeacherToInstitution(ctx context.Context, caller Caller, institutionID uuid.UUID, data MemberData, deactivateOthers bool) (*AddMemberResult, error) {
	return s.AddMember(ctx, caller, AddMemberRequest{
		InstitutionID:               institutionID,
		Role:                        model.RoleTeacher,
		Data:                        data,
		DeactivateOtherInstitutions: deactivateOthers,
	})
}

// AddStudentToInstitution добавляет студента в учреждение
func (s *MembershipService) AddStudentToInstitution(ctx context.Context, caller Caller, institutionID uuid.UUID, data MemberData, deactivateOthers bool) (*AddMemberResult, error) {
	return s.AddMember(ctx, caller, AddMemberRequest{
		InstitutionID:               institutionID,
		Role:                        model.RoleStudent,
		Data:                        data,
		DeactivateOtherInstitutions: deactivateOthers,
	})
}

// AddMember проверяет лимит и конфликты членства и добавляет пользователя.
// Без подтверждения активное членство в другом учреждении возвращает RequiresConfirmation без изменений.
func (s *MembershipService) AddMember(ctx context.Context, caller Caller, req AddMemberRequest) (*AddMemberResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var (
		result  *AddMemberResult
		entries []*model.ActivityLog
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		result, entries, err = s.apply(ctx, tx, caller, req, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, entries)
	return result, nil
}

// PlanAddMember выполняет все проверки без записи и выдаёт подписанный план
func (s *MembershipService) PlanAddMember(ctx context.Context, caller Caller, req AddMemberRequest) (*MemberPlan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	st, err := s.inspect(ctx, s.store, caller, req)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(st.others))
	for _, m := range st.others {
		ids = append(ids, m.ID)
	}

	token, err := s.plans.Sign(req.InstitutionID, req.Role, req.Data.Email, ids)
	if err != nil {
		return nil, err
	}

	plan := &MemberPlan{
		Token:      token,
		IsNewUser:  st.user == nil,
		Reactivate: st.target != nil && !st.target.IsActive,
		Deactivate: st.otherInstitutions,
		SeatsUsed:  st.seatsUsed,
		SeatLimit:  st.inst.SeatLimit(req.Role),
	}
	if plan.Deactivate == nil {
		plan.Deactivate = []OtherInstitution{}
	}

	return plan, nil
}

// CommitAddMember применяет план, если набор затрагиваемых членств не изменился
func (s *MembershipService) CommitAddMember(ctx context.Context, caller Caller, planToken string, req AddMemberRequest) (*AddMemberResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	plan, err := s.plans.Verify(planToken)
	if err != nil {
		return nil, err
	}
	if plan.InstitutionID != req.InstitutionID.String() || plan.Role != string(req.Role) || plan.Email != req.Data.Email {
		return nil, apperrors.Validation("plan_token", "does not match the request")
	}

	expected, err := plan.DeactivateIDs()
	if err != nil {
		return nil, err
	}

	var (
		result  *AddMemberResult
		entries []*model.ActivityLog
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		result, entries, err = s.apply(ctx, tx, caller, req, expected)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, entries)
	return result, nil
}

// addState is everything the add flow reads before deciding.
type addState struct {
	inst              *model.Institution
	user              *model.User
	target            *model.Membership
	others            []*model.Membership
	otherInstitutions []OtherInstitution
	seatsUsed         int
}

// inspect resolves the institution, authorizes the caller, checks seats and
// collects the user's other active memberships. It never writes.
func (s *MembershipService) inspect(ctx context.Context, tx repository.Store, caller Caller, req AddMemberRequest) (*addState, error) {
	inst, err := s.resolveInstitution(ctx, tx, caller, req.InstitutionID)
	if err != nil {
		return nil, err
	}

	st := &addState{inst: inst}

	st.user, err = tx.Users().GetByEmail(ctx, req.Data.Email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if st.user != nil && st.user.Role != req.Role {
		return nil, apperrors.Conflict("%s is registered as a %s", req.Data.Email, st.user.Role)
	}

	if st.user != nil {
		st.target, err = tx.Memberships().GetByUserAndInstitution(ctx, st.user.ID, inst.ID)
		if err != nil {
			return nil, fmt.Errorf("get membership: %w", err)
		}
	}

	st.seatsUsed, err = tx.Memberships().CountActiveByRole(ctx, inst.ID, req.Role)
	if err != nil {
		return nil, fmt.Errorf("count active memberships: %w", err)
	}

	// Уже активен здесь: место не расходуется
	alreadyActive := st.target != nil && st.target.IsActive
	if limit := inst.SeatLimit(req.Role); !alreadyActive && st.seatsUsed >= limit {
		return nil, &apperrors.LimitExceededError{Role: string(req.Role), Current: st.seatsUsed, Max: limit}
	}

	if st.user == nil {
		return st, nil
	}

	active, err := tx.Memberships().ListActiveByUser(ctx, st.user.ID)
	if err != nil {
		return nil, fmt.Errorf("list active memberships: %w", err)
	}

	var otherIDs []uuid.UUID
	for _, m := range active {
		if m.InstitutionID != inst.ID {
			st.others = append(st.others, m)
			otherIDs = append(otherIDs, m.InstitutionID)
		}
	}

	if len(otherIDs) > 0 {
		insts, err := tx.Institutions().GetByIDs(ctx, otherIDs)
		if err != nil {
			return nil, fmt.Errorf("get other institutions: %w", err)
		}
		for _, other := range insts {
			st.otherInstitutions = append(st.otherInstitutions, OtherInstitution{ID: other.ID, Name: other.Name})
		}
	}

	return st, nil
}

// apply runs the add flow inside tx. A non-nil expected switches to plan mode:
// the other active memberships must be exactly expected, and are deactivated.
func (s *MembershipService) apply(ctx context.Context, tx repository.Store, caller Caller, req AddMemberRequest, expected []uuid.UUID) (*AddMemberResult, []*model.ActivityLog, error) {
	if err := tx.Institutions().Lock(ctx, req.InstitutionID); err != nil {
		return nil, nil, err
	}

	st, err := s.inspect(ctx, tx, caller, req)
	if err != nil {
		return nil, nil, err
	}

	confirmed := req.DeactivateOtherInstitutions
	if expected != nil {
		if !sameMemberships(st.others, expected) {
			return nil, nil, apperrors.Conflict("plan is stale")
		}
		confirmed = true
	}

	if st.user == nil {
		return s.createMember(ctx, tx, caller, req, st.inst)
	}

	if len(st.others) > 0 && !confirmed {
		return &AddMemberResult{
			UserID:               st.user.ID,
			RequiresConfirmation: true,
			OtherInstitutions:    st.otherInstitutions,
			Message:              "user is active in another institution",
		}, nil, nil
	}

	return s.moveMember(ctx, tx, caller, req, st)
}

func (s *MembershipService) createMember(ctx context.Context, tx repository.Store, caller Caller, req AddMemberRequest, inst *model.Institution) (*AddMemberResult, []*model.ActivityLog, error) {
	result := &AddMemberResult{IsNewUser: true}

	password := req.Data.Password
	if password == "" {
		generated, err := auth.GeneratePassword(temporaryPasswordLength)
		if err != nil {
			return nil, nil, err
		}
		password = generated
		result.TemporaryPassword = generated
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	user := &model.User{
		Role:         req.Role,
		Name:         req.Data.fullName(),
		Email:        req.Data.Email,
		PasswordHash: hash,
	}
	if err := tx.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, apperrors.Conflict("user %s already exists", req.Data.Email)
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}
	result.UserID = user.ID

	code, err := s.createProfile(ctx, tx, user.ID, req.Role, req.Data, &inst.ID)
	if err != nil {
		return nil, nil, err
	}
	result.TeacherCode = code

	membership := &model.Membership{
		UserID:        user.ID,
		InstitutionID: inst.ID,
		Role:          req.Role,
		IsActive:      true,
	}
	if err := tx.Memberships().Create(ctx, membership); err != nil {
		return nil, nil, fmt.Errorf("create membership: %w", err)
	}

	action := model.ActivityStudentAdded
	if req.Role == model.RoleTeacher {
		action = model.ActivityTeacherAdded
		result.Message = "Teacher created and added to institution"
	} else {
		result.Message = "Student created and added to institution"
	}

	s.logger.Info("Member created",
		zap.String("institution_id", inst.ID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(req.Role)),
	)

	entry := s.entry(caller, inst.ID, user.ID, action, map[string]string{
		"email":       user.Email,
		"is_new_user": "true",
	})
	return result, []*model.ActivityLog{entry}, nil
}

func (s *MembershipService) moveMember(ctx context.Context, tx repository.Store, caller Caller, req AddMemberRequest, st *addState) (*AddMemberResult, []*model.ActivityLog, error) {
	var entries []*model.ActivityLog
	user := st.user
	result := &AddMemberResult{UserID: user.ID}

	// Сначала гасим чужие членства: активным может быть только одно
	if len(st.others) > 0 {
		n, err := tx.Memberships().DeactivateOthers(ctx, user.ID, st.inst.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("deactivate other memberships: %w", err)
		}
		for _, m := range st.others {
			entries = append(entries, s.entry(caller, m.InstitutionID, user.ID, model.ActivityMembershipsMoved, map[string]string{
				"moved_to": st.inst.ID.String(),
			}))
		}
		s.logger.Info("Other memberships deactivated",
			zap.String("user_id", user.ID.String()),
			zap.Int64("count", n),
		)
	}

	switch {
	case st.target == nil:
		membership := &model.Membership{
			UserID:        user.ID,
			InstitutionID: st.inst.ID,
			Role:          req.Role,
			IsActive:      true,
		}
		if err := tx.Memberships().Create(ctx, membership); err != nil {
			return nil, nil, fmt.Errorf("create membership: %w", err)
		}
		result.Message = "Existing user added to institution"
	case !st.target.IsActive:
		if err := tx.Memberships().SetActive(ctx, st.target.ID, true); err != nil {
			return nil, nil, fmt.Errorf("reactivate membership: %w", err)
		}
		result.Reactivated = true
		result.Message = "Membership reactivated"
	default:
		result.Message = "User is already an active member of this institution"
	}

	code, err := s.syncProfile(ctx, tx, user.ID, req.Role, req.Data, &st.inst.ID)
	if err != nil {
		return nil, nil, err
	}
	result.TeacherCode = code

	if result.Reactivated {
		entries = append(entries, s.entry(caller, st.inst.ID, user.ID, model.ActivityMemberReactivated, map[string]string{
			"email": user.Email,
		}))
	} else if st.target == nil {
		action := model.ActivityStudentAdded
		if req.Role == model.RoleTeacher {
			action = model.ActivityTeacherAdded
		}
		entries = append(entries, s.entry(caller, st.inst.ID, user.ID, action, map[string]string{
			"email":       user.Email,
			"is_new_user": "false",
		}))
	}

	s.logger.Info("Member added",
		zap.String("institution_id", st.inst.ID.String()),
		zap.String("user_id", user.ID.String()),
		zap.Bool("reactivated", result.Reactivated),
	)

	return result, entries, nil
}

// createProfile создаёт строку teachers/students, для учителя генерирует код
func (s *MembershipService) createProfile(ctx context.Context, tx repository.Store, userID uuid.UUID, role model.Role, data MemberData, institutionID *uuid.UUID) (string, error) {
	if role == model.RoleStudent {
		student := &model.Student{
			ID:            userID,
			School:        data.School,
			Grade:         data.Grade,
			Phone:         data.Phone,
			InstitutionID: institutionID,
		}
		if err := tx.Students().Create(ctx, student); err != nil {
			return "", fmt.Errorf("create student: %w", err)
		}
		return "", nil
	}

	code, err := generateTeacherCode(ctx, tx.Teachers())
	if err != nil {
		return "", err
	}
	teacher := &model.Teacher{
		ID:            userID,
		Branch:        data.Branch,
		Phone:         data.Phone,
		TeacherCode:   code,
		InstitutionID: institutionID,
	}
	if err := tx.Teachers().Create(ctx, teacher); err != nil {
		return "", fmt.Errorf("create teacher: %w", err)
	}
	return code, nil
}

// syncProfile переносит денормализованный institution_id, создавая строку профиля при отсутствии
func (s *MembershipService) syncProfile(ctx context.Context, tx repository.Store, userID uuid.UUID, role model.Role, data MemberData, institutionID *uuid.UUID) (string, error) {
	if role == model.RoleStudent {
		student, err := tx.Students().GetByID(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("get student: %w", err)
		}
		if student == nil {
			return s.createProfile(ctx, tx, userID, role, data, institutionID)
		}
		if err := tx.Students().SetInstitution(ctx, userID, institutionID); err != nil {
			return "", fmt.Errorf("set student institution: %w", err)
		}
		return "", nil
	}

	teacher, err := tx.Teachers().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return s.createProfile(ctx, tx, userID, role, data, institutionID)
	}
	if err := tx.Teachers().SetInstitution(ctx, userID, institutionID); err != nil {
		return "", fmt.Errorf("set teacher institution: %w", err)
	}
	return teacher.TeacherCode, nil
}

// UpdateUser обновляет профиль участника учреждения
func (s *MembershipService) UpdateUser(ctx context.Context, caller Caller, req UpdateUserRequest) error {
	if req.InstitutionID == uuid.Nil {
		return apperrors.Validation("institution_id", "is required")
	}
	if req.UserID == uuid.Nil {
		return apperrors.Validation("user_id", "is required")
	}
	if !req.UserType.IsValid() {
		return apperrors.Validation("user_type", "must be teacher or student")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return apperrors.Validation("name", "is required")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkEmail("email", req.Email); err != nil {
		return err
	}

	var entry *model.ActivityLog
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		inst, err := s.resolveInstitution(ctx, tx, caller, req.InstitutionID)
		if err != nil {
			return err
		}

		user, err := tx.Users().GetByID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return apperrors.NotFound("user %s not found", req.UserID)
		}
		if user.Role != req.UserType {
			return apperrors.Validation("user_type", fmt.Sprintf("user is a %s", user.Role))
		}

		membership, err := tx.Memberships().GetByUserAndInstitution(ctx, user.ID, inst.ID)
		if err != nil {
			return fmt.Errorf("get membership: %w", err)
		}
		if membership == nil || !membership.IsActive {
			return apperrors.Forbidden("user is not an active member of this institution")
		}

		user.Name = req.Name
		user.Email = req.Email
		if err := tx.Users().Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Conflict("email %s is already in use", req.Email)
			}
			return fmt.Errorf("update user: %w", err)
		}

		if err := s.updateDetails(ctx, tx, user.ID, req); err != nil {
			return err
		}

		entry = s.entry(caller, inst.ID, user.ID, model.ActivityUserUpdated, map[string]string{
			"email": user.Email,
			"name":  user.Name,
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Member updated",
		zap.String("institution_id", req.InstitutionID.String()),
		zap.String("user_id", req.UserID.String()),
	)
	s.record(ctx, []*model.ActivityLog{entry})
	return nil
}

func (s *MembershipService) updateDetails(ctx context.Context, tx repository.Store, userID uuid.UUID, req UpdateUserRequest) error {
	if req.UserType == model.RoleTeacher {
		teacher, err := tx.Teachers().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("get teacher: %w", err)
		}
		if teacher == nil {
			return apperrors.NotFound("teacher profile %s not found", userID)
		}
		if req.Branch != nil {
			teacher.Branch = *req.Branch
		}
		if req.Phone != nil {
			teacher.Phone = *req.Phone
		}
		if err := tx.Teachers().Update(ctx, teacher); err != nil {
			return fmt.Errorf("update teacher: %w", err)
		}
		return nil
	}

	student, err := tx.Students().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return apperrors.NotFound("student profile %s not found", userID)
	}
	if req.Grade != nil {
		student.Grade = *req.Grade
	}
	if req.School != nil {
		student.School = *req.School
	}
	if req.Phone != nil {
		student.Phone = *req.Phone
	}
	if err := tx.Students().Update(ctx, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// DeactivateMember освобождает место: членство становится неактивным, institution_id очищается
func (s *MembershipService) DeactivateMember(ctx context.Context, caller Caller, institutionID, userID uuid.UUID) error {
	if institutionID == uuid.Nil {
		return apperrors.Validation("institution_id", "is required")
	}
	if userID == uuid.Nil {
		return apperrors.Validation("user_id", "is required")
	}

	var entry *model.ActivityLog
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		inst, err := s.resolveInstitution(ctx, tx, caller, institutionID)
		if err != nil {
			return err
		}

		membership, err := tx.Memberships().GetByUserAndInstitution(ctx, userID, inst.ID)
		if err != nil {
			return fmt.Errorf("get membership: %w", err)
		}
		if membership == nil || !membership.IsActive {
			return apperrors.NotFound("user %s has no active membership in this institution", userID)
		}

		if err := tx.Memberships().SetActive(ctx, membership.ID, false); err != nil {
			return fmt.Errorf("deactivate membership: %w", err)
		}

		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user != nil {
			if err := s.clearInstitution(ctx, tx, user); err != nil {
				return err
			}
		}

		entry = s.entry(caller, inst.ID, userID, model.ActivityMemberDeactivated, nil)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Member deactivated",
		zap.String("institution_id", institutionID.String()),
		zap.String("user_id", userID.String()),
	)
	s.record(ctx, []*model.ActivityLog{entry})
	return nil
}

func (s *MembershipService) clearInstitution(ctx context.Context, tx repository.Store, user *model.User) error {
	if user.IsTeacher() {
		teacher, err := tx.Teachers().GetByID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("get teacher: %w", err)
		}
		if teacher != nil {
			if err := tx.Teachers().SetInstitution(ctx, user.ID, nil); err != nil {
				return fmt.Errorf("clear teacher institution: %w", err)
			}
		}
		return nil
	}

	student, err := tx.Students().GetByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("get student: %w", err)
	}
	if student != nil {
		if err := tx.Students().SetInstitution(ctx, user.ID, nil); err != nil {
			return fmt.Errorf("clear student institution: %w", err)
		}
	}
	return nil
}

// ListActivity возвращает последние записи журнала учреждения
func (s *MembershipService) ListActivity(ctx context.Context, caller Caller, institutionID uuid.UUID, limit int) ([]*model.ActivityLog, error) {
	if _, err := s.resolveInstitution(ctx, s.store, caller, institutionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	entries, err := s.store.ActivityLogs().ListByInstitution(ctx, institutionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	return entries, nil
}

// resolveInstitution загружает учреждение и проверяет права вызывающего
func (s *MembershipService) resolveInstitution(ctx context.Context, tx repository.Store, caller Caller, institutionID uuid.UUID) (*model.Institution, error) {
	inst, err := tx.Institutions().GetByID(ctx, institutionID)
	if err != nil {
		return nil, fmt.Errorf("get institution: %w", err)
	}
	if inst == nil {
		return nil, apperrors.NotFound("institution %s not found", institutionID)
	}

	decision, err := s.authorizer.Decide(ctx, tx, caller, inst)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.logger.Warn("Admin access denied",
			zap.String("institution_id", inst.ID.String()),
			zap.String("actor", caller.Actor()),
		)
		return nil, apperrors.Forbidden("not an administrator of institution %s", inst.Name)
	}

	if !inst.IsActive {
		return nil, apperrors.Forbidden("institution %s is inactive", inst.Name)
	}

	return inst, nil
}

func (s *MembershipService) entry(caller Caller, institutionID, userID uuid.UUID, action string, details map[string]string) *model.ActivityLog {
	return &model.ActivityLog{
		InstitutionID: &institutionID,
		Actor:         caller.Actor(),
		Action:        action,
		TargetUserID:  &userID,
		Details:       details,
	}
}

func (s *MembershipService) record(ctx context.Context, entries []*model.ActivityLog) {
	if s.recorder == nil {
		return
	}
	for _, e := range entries {
		s.recorder.Record(ctx, e)
	}
}

func sameMemberships(current []*model.Membership, expected []uuid.UUID) bool {
	if len(current) != len(expected) {
		return false
	}
	got := make([]string, 0, len(current))
	for _, m := range current {
		got = append(got, m.ID.String())
	}
	want := make([]string, 0, len(expected))
	for _, id := range expected {
		want = append(want, id.String())
	}
	sort.Strings(got)
	sort.Strings(want)
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
