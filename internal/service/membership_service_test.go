package service

import (
	"strings"
	"testing"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTeacherCreatesUser(t *testing.T) {
	f := newFixture(t)
	inst := f.institution(t, "north", 2, 10)
	admin := f.admin(t, inst)

	res, err := f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, MemberData{
		FirstName: "Ada",
		LastName:  "King",
		Email:     " Ada@North.edu ",
		Branch:    "Physics",
	}, false)
	require.NoError(t, err)

	assert.True(t, res.IsNewUser)
	assert.NotEmpty(t, res.TemporaryPassword)
	assert.Regexp(t, `^TCH[A-Z2-7]{5}$`, res.TeacherCode)

	user, err := f.store.Users().GetByEmail(f.ctx, "ada@north.edu")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Ada King", user.Name)
	assert.Equal(t, model.RoleTeacher, user.Role)

	teacher, err := f.store.Teachers().GetByID(f.ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, teacher)
	assert.Equal(t, "Physics", teacher.Branch)
	require.NotNil(t, teacher.InstitutionID)
	assert.Equal(t, inst.ID, *teacher.InstitutionID)

	active := f.activeMemberships(t, user.ID)
	require.Len(t, active, 1)
	assert.Equal(t, inst.ID, active[0].InstitutionID)

	assert.Equal(t, []string{model.ActivityTeacherAdded}, f.recorder.actions())
}

func TestAddStudentWithPassword(t *testing.T) {
	f := newFixture(t)
	inst := f.institution(t, "north", 1, 1)
	admin := f.admin(t, inst)

	res, err := f.members.AddStudentToInstitution(f.ctx, admin, inst.ID, MemberData{
		FirstName: "Bo",
		Email:     "bo@north.edu",
		Password:  "chosen-pass",
		Grade:     "9",
	}, false)
	require.NoError(t, err)
	assert.True(t, res.IsNewUser)
	assert.Empty(t, res.TemporaryPassword)
	assert.Empty(t, res.TeacherCode)

	session, err := f.auth.SignIn(f.ctx, "bo@north.edu", "chosen-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)

	student, err := f.store.Students().GetByID(f.ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, "9", student.Grade)
}

func TestSeatLimit(t *testing.T) {
	f := newFixture(t)
	inst := f.institution(t, "north", 2, 5)
	admin := f.admin(t, inst)

	_, err := f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, teacherData("A", "a@north.edu"), false)
	require.NoError(t, err)
	_, err = f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, teacherData("B", "b@north.edu"), false)
	require.NoError(t, err)

	_, err = f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, teacherData("C", "c@north.edu"), false)
	require.Error(t, err)

	var limitErr *apperrors.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 2, limitErr.Current)
	assert.Equal(t, 2, limitErr.Max)
	assert.Equal(t, "teacher", limitErr.Role)

	// nothing written for the rejected add
	u, err := f.store.Users().GetByEmail(f.ctx, "c@north.edu")
	require.NoError(t, err)
	assert.Nil(t, u)

	// student seats are counted separately
	_, err = f.members.AddStudentToInstitution(f.ctx, admin, inst.ID, MemberData{FirstName: "S", Email: "s@north.edu"}, false)
	assert.NoError(t, err)
}

func TestSeatFreedByDeactivation(t *testing.T) {
	f := newFixture(t)
	inst := f.institution(t, "north", 1, 5)
	admin := f.admin(t, inst)

	a, err := f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, teacherData("A", "a@north.edu"), false)
	require.NoError(t, err)

	_, err = f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, teacherData("B", "b@north.edu"), false)
	assert.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	require.NoError(t, f.members.DeactivateMember(f.ctx, admin, inst.ID, a.UserID))

	teacher, err := f.store.Teachers().GetByID(f.ctx, a.UserID)
	require.NoError(t, err)
	assert.Nil(t, teacher.InstitutionID)

	_, err = f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, teacherData("B", "b@north.edu"), false)
	assert.NoError(t, err)
}

func TestAddRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	south := f.institution(t, "south", 5, 5)
	northAdmin := f.admin(t, north)
	southAdmin := f.admin(t, south)

	first, err := f.members.AddTeacherToInstitution(f.ctx, northAdmin, north.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)
	f.recorder.entries = nil

	res, err := f.members.AddTeacherToInstitution(f.ctx, southAdmin, south.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)
	assert.True(t, res.RequiresConfirmation)
	require.Len(t, res.OtherInstitutions, 1)
	assert.Equal(t, "north", res.OtherInstitutions[0].Name)

	// no mutation
	active := f.activeMemberships(t, first.UserID)
	require.Len(t, active, 1)
	assert.Equal(t, north.ID, active[0].InstitutionID)
	m, err := f.store.Memberships().GetByUserAndInstitution(f.ctx, first.UserID, south.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Empty(t, f.recorder.actions())

	// confirmed: exactly one active membership, in south
	res, err = f.members.AddTeacherToInstitution(f.ctx, southAdmin, south.ID, teacherData("A", "a@x.edu"), true)
	require.NoError(t, err)
	assert.False(t, res.RequiresConfirmation)
	assert.False(t, res.IsNewUser)

	active = f.activeMemberships(t, first.UserID)
	require.Len(t, active, 1)
	assert.Equal(t, south.ID, active[0].InstitutionID)

	teacher, err := f.store.Teachers().GetByID(f.ctx, first.UserID)
	require.NoError(t, err)
	assert.Equal(t, south.ID, *teacher.InstitutionID)
	assert.Equal(t, first.TeacherCode, teacher.TeacherCode)

	assert.ElementsMatch(t, []string{model.ActivityMembershipsMoved, model.ActivityTeacherAdded}, f.recorder.actions())
}

func TestReAddReactivatesSameRow(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	admin := f.admin(t, north)

	res, err := f.members.AddTeacherToInstitution(f.ctx, admin, north.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)

	before, err := f.store.Memberships().GetByUserAndInstitution(f.ctx, res.UserID, north.ID)
	require.NoError(t, err)

	require.NoError(t, f.members.DeactivateMember(f.ctx, admin, north.ID, res.UserID))

	again, err := f.members.AddTeacherToInstitution(f.ctx, admin, north.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)
	assert.True(t, again.Reactivated)

	after, err := f.store.Memberships().GetByUserAndInstitution(f.ctx, res.UserID, north.ID)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.True(t, after.IsActive)
}

func TestReAddActiveMemberSkipsSeatCheck(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 1, 5)
	admin := f.admin(t, north)

	_, err := f.members.AddTeacherToInstitution(f.ctx, admin, north.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)

	res, err := f.members.AddTeacherToInstitution(f.ctx, admin, north.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)
	assert.False(t, res.Reactivated)
	assert.False(t, res.IsNewUser)
}

func TestAddRoleConflict(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	admin := f.admin(t, north)
	f.user(t, model.RoleStudent, "S", "s@x.edu")

	_, err := f.members.AddTeacherToInstitution(f.ctx, admin, north.ID, teacherData("S", "s@x.edu"), false)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestAdminAuthorization(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	south := f.institution(t, "south", 5, 5)
	southAdmin := f.admin(t, south)

	tests := []struct {
		name    string
		caller  Caller
		inst    uuid.UUID
		wantErr error
	}{
		{"admin of another institution", southAdmin, north.ID, apperrors.ErrForbidden},
		{"anonymous", Caller{}, north.ID, apperrors.ErrForbidden},
		{"unknown institution", southAdmin, uuid.New(), apperrors.ErrNotFound},
		{"contact email", Caller{UserID: uuid.New(), Email: "OFFICE@north.edu"}, north.ID, nil},
		{"admin email as profile", Caller{UserID: uuid.New(), Email: "admin@south.edu"}, south.ID, nil},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := string(rune('a'+i)) + "@auth.edu"
			_, err := f.members.AddTeacherToInstitution(f.ctx, tt.caller, tt.inst, teacherData("X", email), false)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAdminTokenScopedToInstitution(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	south := f.institution(t, "south", 5, 5)
	northAdmin := f.admin(t, north)

	// admin token of south presenting a username that exists in north
	southID := south.ID
	caller := Caller{AdminUsername: northAdmin.AdminUsername, AdminInstitutionID: &southID}
	_, err := f.members.AddTeacherToInstitution(f.ctx, caller, north.ID, teacherData("X", "x@x.edu"), false)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	err = f.members.UpdateUser(f.ctx, admin, UpdateUserRequest{
		InstitutionID: north.ID, UserID: res.UserID, UserType: model.RoleTeacher, Name: "X", Email: "a@",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateUserRequiresActiveMembership(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	south := f.institution(t, "south", 5, 5)
	northAdmin := f.admin(t, north)
	southAdmin := f.admin(t, south)

	res, err := f.members.AddTeacherToInstitution(f.ctx, northAdmin, north.ID, teacherData("Ada", "ada@x.edu"), false)
	require.NoError(t, err)
	_, err = f.members.AddTeacherToInstitution(f.ctx, southAdmin, south.ID, teacherData("Ada", "ada@x.edu"), true)
	require.NoError(t, err)

	// north keeps only an inactive history row
	err = f.members.UpdateUser(f.ctx, northAdmin, UpdateUserRequest{
		InstitutionID: north.ID,
		UserID:        res.UserID,
		UserType:      model.RoleTeacher,
		Name:          "Hijacked",
		Email:         south.ContactEmail,
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	user, err := f.store.Users().GetByID(f.ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, "ada@x.edu", user.Email)
	assert.NotEqual(t, "Hijacked", user.Name)

	err = f.members.UpdateUser(f.ctx, southAdmin, UpdateUserRequest{
		InstitutionID: south.ID, UserID: res.UserID, UserType: model.RoleTeacher, Name: "Ada South", Email: "ada@x.edu",
	})
	assert.NoError(t, err)
}

func TestInactiveInstitution(t *testing.T) {
	f := newFixture(t)
	inst := &model.Institution{Name: "closed", ContactEmail: "c@closed.edu", IsActive: false, MaxTeachers: 5}
	require.NoError(t, f.store.Institutions().Create(f.ctx, inst))
	admin := f.admin(t, inst)

	_, err := f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, teacherData("X", "x@x.edu"), false)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAddValidation(t *testing.T) {
	f := newFixture(t)
	inst := f.institution(t, "north", 5, 5)
	admin := f.admin(t, inst)

	_, err := f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, MemberData{FirstName: "X", Email: "nope"}, false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.members.AddTeacherToInstitution(f.ctx, admin, inst.ID, MemberData{Email: "x@x.edu"}, false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.members.AddTeacherToInstitution(f.ctx, admin, uuid.Nil, teacherData("X", "x@x.edu"), false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAddRejectsMalformedInput(t *testing.T) {
	f := newFixture(t)
	inst := f.institution(t, "north", 5, 5)
	admin := f.admin(t, inst)

	tests := []struct {
		name  string
		data  MemberData
		field string
	}{
		{"only at sign", MemberData{FirstName: "X", Email: "@"}, "email"},
		{"missing domain", MemberData{FirstName: "X", Email: "a@"}, "email"},
		{"space in local part", MemberData{FirstName: "X", Email: "not an@email"}, "email"},
		{"password over bcrypt limit", MemberData{FirstName: "X", Email: "x@x.edu", Password: strings.Repeat("p", 73)}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.members.AddStudentToInstitution(f.ctx, admin, inst.ID, tt.data, false)
			require.ErrorIs(t, err, apperrors.ErrValidation)

			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	count, err := f.store.Memberships().CountActiveByRole(f.ctx, inst.ID, model.RoleStudent)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPlanAndCommit(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	south := f.institution(t, "south", 5, 5)
	northAdmin := f.admin(t, north)
	southAdmin := f.admin(t, south)

	first, err := f.members.AddTeacherToInstitution(f.ctx, northAdmin, north.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)

	req := AddMemberRequest{InstitutionID: south.ID, Role: model.RoleTeacher, Data: teacherData("A", "a@x.edu")}
	plan, err := f.members.PlanAddMember(f.ctx, southAdmin, req)
	require.NoError(t, err)
	assert.False(t, plan.IsNewUser)
	require.Len(t, plan.Deactivate, 1)
	assert.Equal(t, north.ID, plan.Deactivate[0].ID)
	assert.Equal(t, 0, plan.SeatsUsed)
	assert.Equal(t, 5, plan.SeatLimit)

	// planning writes nothing
	assert.Len(t, f.activeMemberships(t, first.UserID), 1)

	res, err := f.members.CommitAddMember(f.ctx, southAdmin, plan.Token, req)
	require.NoError(t, err)
	assert.False(t, res.RequiresConfirmation)

	active := f.activeMemberships(t, first.UserID)
	require.Len(t, active, 1)
	assert.Equal(t, south.ID, active[0].InstitutionID)
}

func TestCommitStalePlan(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	south := f.institution(t, "south", 5, 5)
	east := f.institution(t, "east", 5, 5)
	northAdmin := f.admin(t, north)
	southAdmin := f.admin(t, south)
	eastAdmin := f.admin(t, east)

	_, err := f.members.AddTeacherToInstitution(f.ctx, northAdmin, north.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)

	req := AddMemberRequest{InstitutionID: south.ID, Role: model.RoleTeacher, Data: teacherData("A", "a@x.edu")}
	plan, err := f.members.PlanAddMember(f.ctx, southAdmin, req)
	require.NoError(t, err)

	// membership moved elsewhere after planning
	_, err = f.members.AddTeacherToInstitution(f.ctx, eastAdmin, east.ID, teacherData("A", "a@x.edu"), true)
	require.NoError(t, err)

	_, err = f.members.CommitAddMember(f.ctx, southAdmin, plan.Token, req)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// plan bound to a different email
	other := req
	other.Data.Email = "b@x.edu"
	_, err = f.members.CommitAddMember(f.ctx, southAdmin, plan.Token, other)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.members.CommitAddMember(f.ctx, southAdmin, "garbage", req)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	admin := f.admin(t, north)

	res, err := f.members.AddTeacherToInstitution(f.ctx, admin, north.ID, teacherData("A", "a@x.edu"), false)
	require.NoError(t, err)
	f.user(t, model.RoleStudent, "Taken", "taken@x.edu")

	branch := "Chemistry"
	err = f.members.UpdateUser(f.ctx, admin, UpdateUserRequest{
		InstitutionID: north.ID,
		UserID:        res.UserID,
		UserType:      model.RoleTeacher,
		Name:          "Ada Renamed",
		Email:         "ada@x.edu",
		Branch:        &branch,
	})
	require.NoError(t, err)

	user, err := f.store.Users().GetByID(f.ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Renamed", user.Name)
	assert.Equal(t, "ada@x.edu", user.Email)

	teacher, err := f.store.Teachers().GetByID(f.ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", teacher.Branch)

	err = f.members.UpdateUser(f.ctx, admin, UpdateUserRequest{
		InstitutionID: north.ID, UserID: res.UserID, UserType: model.RoleTeacher, Name: "X", Email: "taken@x.edu",
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	err = f.members.UpdateUser(f.ctx, admin, UpdateUserRequest{
		InstitutionID: north.ID, UserID: res.UserID, UserType: model.RoleStudent, Name: "X", Email: "ada@x.edu",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	outsider := f.teacher(t, "out", "TCHOUT00")
	err = f.members.UpdateUser(f.ctx, admin, UpdateUserRequest{
		InstitutionID: north.ID, UserID: outsider.ID, UserType: model.RoleTeacher, Name: "X", Email: "out@x.edu",
	})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestDeactivateMemberErrors(t *testing.T) {
	f := newFixture(t)
	north := f.institution(t, "north", 5, 5)
	admin := f.admin(t, north)

	err := f.members.DeactivateMember(f.ctx, admin, north.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.members.DeactivateMember(f.ctx, admin, north.ID, uuid.Nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
