package service

import (
	"context"
	"testing"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnectToTeacher(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "lee", "TCH1234")
	student := f.student(t, "ann")

	conn, err := f.conns.ConnectToTeacher(f.ctx, student.ID, " tch1234 ")
	require.NoError(t, err)

	assert.Equal(t, teacher.ID, conn.TeacherID)
	assert.Equal(t, model.RequestTypeConnect, conn.RequestType)
	assert.Equal(t, model.ApprovalPending, conn.ApprovalStatus)
	assert.False(t, conn.IsActive)
}

func TestConnectToTeacherUnknownCode(t *testing.T) {
	f := newFixture(t)
	student := f.student(t, "ann")

	_, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCHNOPE")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	conns, err := f.store.Connections().ListByStudent(f.ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestConnectToTeacherValidation(t *testing.T) {
	f := newFixture(t)
	f.teacher(t, "lee", "TCH1234")
	other := f.teacher(t, "kim", "TCH5678")

	_, err := f.conns.ConnectToTeacher(f.ctx, uuid.New(), "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// teachers cannot connect to teachers
	_, err = f.conns.ConnectToTeacher(f.ctx, other.ID, "TCH1234")
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)
}

func TestSinglePendingConnectRequest(t *testing.T) {
	f := newFixture(t)
	f.teacher(t, "lee", "TCH1234")
	student := f.student(t, "ann")

	first, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)
	second, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	conns, err := f.store.Connections().ListByStudent(f.ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestConnectWhenAlreadyConnected(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "lee", "TCH1234")
	student := f.student(t, "ann")

	conn, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)
	_, err = f.conns.ApproveStudentRequest(f.ctx, teacher.ID, conn.ID)
	require.NoError(t, err)

	_, err = f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestApproveStudentRequest(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "lee", "TCH1234")
	student := f.student(t, "ann")

	conn, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)

	approved, err := f.conns.ApproveStudentRequest(f.ctx, teacher.ID, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, approved.ApprovalStatus)
	assert.True(t, approved.IsActive)

	// second approve fails
	_, err = f.conns.ApproveStudentRequest(f.ctx, teacher.ID, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestApproveFailsOnRejected(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "lee", "TCH1234")
	student := f.student(t, "ann")

	conn, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)
	_, err = f.conns.RejectStudentRequest(f.ctx, teacher.ID, conn.ID)
	require.NoError(t, err)

	_, err = f.conns.ApproveStudentRequest(f.ctx, teacher.ID, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	stored, err := f.store.Connections().GetByID(f.ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalRejected, stored.ApprovalStatus)
	assert.False(t, stored.IsActive)
}

func TestConnectionOwnershipChecks(t *testing.T) {
	f := newFixture(t)
	f.teacher(t, "lee", "TCH1234")
	intruder := f.teacher(t, "kim", "TCH5678")
	student := f.student(t, "ann")
	otherStudent := f.student(t, "bob")

	conn, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)

	_, err = f.conns.ApproveStudentRequest(f.ctx, intruder.ID, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	_, err = f.conns.RejectStudentRequest(f.ctx, intruder.ID, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	err = f.conns.CancelPendingRequest(f.ctx, otherStudent.ID, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	_, err = f.conns.ApproveStudentRequest(f.ctx, intruder.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRejectThenReconnect(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "lee", "TCH1234")
	student := f.student(t, "ann")

	first, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalPending, first.ApprovalStatus)

	rejected, err := f.conns.RejectStudentRequest(f.ctx, teacher.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalRejected, rejected.ApprovalStatus)
	assert.False(t, rejected.IsActive)

	second, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, model.ApprovalPending, second.ApprovalStatus)
}

func TestDisconnectionFlow(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "lee", "TCH1234")
	student := f.student(t, "ann")

	conn, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)

	// disconnect requires approved
	_, err = f.conns.RequestDisconnection(f.ctx, student.ID, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.conns.ApproveStudentRequest(f.ctx, teacher.ID, conn.ID)
	require.NoError(t, err)

	pending, err := f.conns.RequestDisconnection(f.ctx, student.ID, conn.ID)
	require.NoError(t, err)
	assert.True(t, pending.IsPendingDisconnect())
	assert.True(t, pending.IsActive)

	requests, err := f.conns.GetPendingRequests(f.ctx, teacher.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, model.RequestTypeDisconnect, requests[0].RequestType)
	require.NotNil(t, requests[0].Student)
	assert.Equal(t, "ann", requests[0].Student.Name)

	// teacher denies: stays approved
	kept, err := f.conns.RejectDisconnectionRequest(f.ctx, teacher.ID, conn.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsConnected())
	assert.Equal(t, model.RequestTypeConnect, kept.RequestType)

	_, err = f.conns.RequestDisconnection(f.ctx, student.ID, conn.ID)
	require.NoError(t, err)

	done, err := f.conns.ApproveDisconnectionRequest(f.ctx, teacher.ID, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalDisconnected, done.ApprovalStatus)
	assert.False(t, done.IsActive)

	connected, err := f.conns.IsConnected(f.ctx, student.ID, teacher.ID)
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestCancelPendingRequest(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "lee", "TCH1234")
	student := f.student(t, "ann")

	conn, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)

	require.NoError(t, f.conns.CancelPendingRequest(f.ctx, student.ID, conn.ID))

	gone, err := f.store.Connections().GetByID(f.ctx, conn.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// cancelling a pending disconnect restores the connection
	conn, err = f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)
	_, err = f.conns.ApproveStudentRequest(f.ctx, teacher.ID, conn.ID)
	require.NoError(t, err)

	err = f.conns.CancelPendingRequest(f.ctx, student.ID, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.conns.RequestDisconnection(f.ctx, student.ID, conn.ID)
	require.NoError(t, err)
	require.NoError(t, f.conns.CancelPendingRequest(f.ctx, student.ID, conn.ID))

	restored, err := f.store.Connections().GetByID(f.ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, restored.IsConnected())
}

func TestDisconnectStudentByTeacher(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "lee", "TCH1234")
	student := f.student(t, "ann")

	conn, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1234")
	require.NoError(t, err)

	_, err = f.conns.DisconnectStudent(f.ctx, teacher.ID, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.conns.ApproveStudentRequest(f.ctx, teacher.ID, conn.ID)
	require.NoError(t, err)

	students, err := f.conns.GetTeacherStudents(f.ctx, teacher.ID)
	require.NoError(t, err)
	assert.Len(t, students, 1)

	done, err := f.conns.DisconnectStudent(f.ctx, teacher.ID, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalDisconnected, done.ApprovalStatus)

	students, err = f.conns.GetTeacherStudents(f.ctx, teacher.ID)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestGetStudentTeachersGroups(t *testing.T) {
	f := newFixture(t)
	lee := f.teacher(t, "lee", "TCH1111")
	f.teacher(t, "kim", "TCH2222")
	park := f.teacher(t, "park", "TCH3333")
	student := f.student(t, "ann")

	c1, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH1111")
	require.NoError(t, err)
	_, err = f.conns.ApproveStudentRequest(f.ctx, lee.ID, c1.ID)
	require.NoError(t, err)

	_, err = f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH2222")
	require.NoError(t, err)

	// rejected row left active by an older client
	anomaly := &model.Connection{
		StudentID:      student.ID,
		TeacherID:      park.ID,
		RequestType:    model.RequestTypeConnect,
		ApprovalStatus: model.ApprovalRejected,
		IsActive:       true,
	}
	require.NoError(t, f.store.Connections().Create(f.ctx, anomaly))

	groups, err := f.conns.GetStudentTeachers(f.ctx, student.ID)
	require.NoError(t, err)

	require.Len(t, groups.Connected, 1)
	require.NotNil(t, groups.Connected[0].Teacher)
	assert.Equal(t, "lee", groups.Connected[0].Teacher.Name)
	require.Len(t, groups.Pending, 1)
	assert.Equal(t, "TCH2222", groups.Pending[0].Teacher.TeacherCode)
	require.Len(t, groups.RejectedActive, 1)
	assert.Equal(t, park.ID, groups.RejectedActive[0].TeacherID)

	// teacher can clear the anomaly
	_, err = f.conns.DisconnectStudent(f.ctx, park.ID, anomaly.ID)
	require.NoError(t, err)
}

func TestTeacherOnlyListings(t *testing.T) {
	f := newFixture(t)
	student := f.student(t, "ann")

	_, err := f.conns.GetPendingRequests(f.ctx, student.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	_, err = f.conns.GetTeacherStudents(f.ctx, student.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	_, err = f.conns.GetStudentTeachers(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)
}

func TestConnectReturnsConcurrentPendingRequest(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "tom", "TCHRACE1")
	student := f.student(t, "ann")

	rival := &model.Connection{
		StudentID:      student.ID,
		TeacherID:      teacher.ID,
		RequestType:    model.RequestTypeConnect,
		ApprovalStatus: model.ApprovalPending,
	}
	store := &hookStore{Store: f.store, hooks: &hooks{rivalConnect: rival}}
	svc := NewConnectionService(store, zap.NewNop())

	conn, err := svc.ConnectToTeacher(f.ctx, student.ID, "tchrace1")
	require.NoError(t, err)
	assert.Equal(t, rival.ID, conn.ID)
	assert.True(t, conn.IsPendingConnect())

	pending, err := f.conns.GetPendingRequests(f.ctx, teacher.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestTransitionOnVanishedConnection(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "tom", "TCH4444")
	student := f.student(t, "ann")

	conn, err := f.conns.ConnectToTeacher(f.ctx, student.ID, "TCH4444")
	require.NoError(t, err)

	// the student cancels while the teacher's approve is in flight
	store := &hookStore{Store: f.store, hooks: &hooks{
		beforeConnUpdate: func(ctx context.Context, tx repository.Store, c *model.Connection) {
			require.NoError(t, tx.Connections().Delete(ctx, c.ID))
		},
	}}
	svc := NewConnectionService(store, zap.NewNop())

	_, err = svc.ApproveStudentRequest(f.ctx, teacher.ID, conn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// the failed transaction rolled back the delete as well
	got, err := f.store.Connections().GetByID(f.ctx, conn.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsPendingConnect())
}

func TestPendingDisconnectListedAsPending(t *testing.T) {
	f := newFixture(t)
	teacher := f.teacher(t, "tom", "TCH5555")
	student := f.student(t, "ann")

	conn := connectPair(t, f, student, teacher, "TCH5555")
	_, err := f.conns.RequestDisconnection(f.ctx, student.ID, conn.ID)
	require.NoError(t, err)

	groups, err := f.conns.GetStudentTeachers(f.ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, groups.Connected)
	require.Len(t, groups.Pending, 1)
	assert.True(t, groups.Pending[0].IsPendingDisconnect())
	assert.True(t, groups.Pending[0].IsActive)
}
