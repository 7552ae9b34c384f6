package common

import (
	"fmt"
	"testing"
	"time"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDFromCallback(t *testing.T) {
	id := uuid.New()

	got, err := ParseIDFromCallback(CallbackData(ApproveConnect, id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseIDFromCallback("conn_approve")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = ParseIDFromCallback("conn_approve:42")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestCommandArg(t *testing.T) {
	assert.Equal(t, "tch1234", CommandArg("/connect tch1234"))
	assert.Equal(t, "abc", CommandArg("  /link   abc  "))
	assert.Equal(t, "", CommandArg("/connect"))
}

func TestRequestsKeyboard(t *testing.T) {
	connect := &model.Connection{ID: uuid.New(), RequestType: model.RequestTypeConnect, ApprovalStatus: model.ApprovalPending,
		Student: &model.Student{Name: "Ann"}}
	disconnect := &model.Connection{ID: uuid.New(), RequestType: model.RequestTypeDisconnect, ApprovalStatus: model.ApprovalPending,
		Student: &model.Student{Name: "A very long student name"}}

	kb := RequestsKeyboard([]*model.Connection{connect, disconnect})
	require.Len(t, kb.InlineKeyboard, 2)

	assert.Equal(t, "1. Ann", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, CallbackData(ApproveConnect, connect.ID), kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, CallbackData(RejectConnect, connect.ID), kb.InlineKeyboard[0][2].CallbackData)

	assert.Equal(t, "2. A very long stu...", kb.InlineKeyboard[1][0].Text)
	assert.Equal(t, CallbackData(ApproveDisconnect, disconnect.ID), kb.InlineKeyboard[1][1].CallbackData)
	assert.Equal(t, CallbackData(RejectDisconnect, disconnect.ID), kb.InlineKeyboard[1][2].CallbackData)

	many := make([]*model.Connection, 15)
	for i := range many {
		many[i] = &model.Connection{ID: uuid.New(), RequestType: model.RequestTypeConnect, ApprovalStatus: model.ApprovalPending}
	}
	assert.Len(t, RequestsKeyboard(many).InlineKeyboard, 10)
}

func TestConnectionStatusDisplay(t *testing.T) {
	tests := []struct {
		conn model.Connection
		want string
	}{
		{model.Connection{RequestType: model.RequestTypeConnect, ApprovalStatus: model.ApprovalPending}, "Ожидает одобрения"},
		{model.Connection{RequestType: model.RequestTypeDisconnect, ApprovalStatus: model.ApprovalPending, IsActive: true}, "Ожидает отключения"},
		{model.Connection{RequestType: model.RequestTypeConnect, ApprovalStatus: model.ApprovalApproved, IsActive: true}, "Подключён"},
		{model.Connection{RequestType: model.RequestTypeConnect, ApprovalStatus: model.ApprovalRejected, IsActive: true}, "Отклонена, но активна"},
		{model.Connection{RequestType: model.RequestTypeConnect, ApprovalStatus: model.ApprovalRejected}, "Отклонена"},
		{model.Connection{RequestType: model.RequestTypeDisconnect, ApprovalStatus: model.ApprovalDisconnected}, "Отключён"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.conn.RequestType, tt.conn.ApprovalStatus), func(t *testing.T) {
			assert.Equal(t, tt.want, GetConnectionStatusDisplay(&tt.conn).Text)
		})
	}
}

func TestFormatTeachers(t *testing.T) {
	assert.Contains(t, FormatTeachers(nil, nil, nil), "/connect")

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	connected := []*model.Connection{{
		RequestType: model.RequestTypeConnect, ApprovalStatus: model.ApprovalApproved, IsActive: true,
		CreatedAt: created, Teacher: &model.Teacher{Name: "Lee"},
	}}
	text := FormatTeachers(connected, nil, nil)
	assert.Contains(t, text, "Мои учителя (1)")
	assert.Contains(t, text, "1. ✅ Lee - Подключён (с 01.03.2025)")
	assert.NotContains(t, text, "Заявки")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "❌ teacher with code X not found", ErrorMessage(apperrors.NotFound("teacher with code X not found")))
	assert.Equal(t, "⚠️ Заявка уже обработана", ErrorMessage(apperrors.InvalidTransition("done")))
	assert.Equal(t, "❌ Достигнут лимит мест в учреждении", ErrorMessage(&apperrors.LimitExceededError{Role: "teacher", Current: 1, Max: 1}))
	assert.Equal(t, "❌ Неверный формат данных", ErrorMessage(fmt.Errorf("wrap: %w", ErrInvalidFormat)))
}

func TestTeachersKeyboard(t *testing.T) {
	connected := &model.Connection{ID: uuid.New(), ApprovalStatus: model.ApprovalApproved, IsActive: true,
		Teacher: &model.Teacher{Name: "Mr. Smith"}}
	pending := &model.Connection{ID: uuid.New(), RequestType: model.RequestTypeConnect, ApprovalStatus: model.ApprovalPending,
		Teacher: &model.Teacher{Name: "Ms. Jones"}}

	kb := TeachersKeyboard([]*model.Connection{connected}, []*model.Connection{pending})
	require.Len(t, kb.InlineKeyboard, 2)

	// Сначала отмена заявок, затем отключение
	assert.Equal(t, CallbackData(CancelRequest, pending.ID), kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, CallbackData(LeaveTeacher, connected.ID), kb.InlineKeyboard[1][0].CallbackData)

	assert.Empty(t, StudentsKeyboard(nil).InlineKeyboard)
}
