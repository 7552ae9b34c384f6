package common

import (
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/go-telegram/bot/models"
)

// Callback data для кнопок связей
const (
	ApproveConnect    = "conn_approve"
	RejectConnect     = "conn_reject"
	ApproveDisconnect = "disc_approve"
	RejectDisconnect  = "disc_reject"
	RemoveStudent     = "conn_remove"
	CancelRequest     = "conn_cancel"
	LeaveTeacher      = "conn_leave"
	Noop              = "noop"
)

// Button создаёт кнопку
func Button(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// RequestsKeyboard строит кнопки ✅/❌ для входящих заявок учителя (не больше 10)
func RequestsKeyboard(requests []*model.Connection) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(requests))
	for i, req := range requests {
		if i >= 10 {
			break
		}

		approve, reject := ApproveConnect, RejectConnect
		if req.IsPendingDisconnect() {
			approve, reject = ApproveDisconnect, RejectDisconnect
		}

		rows = append(rows, []models.InlineKeyboardButton{
			Button(fmt.Sprintf("%d. %s", i+1, truncate(studentName(req), 15)), Noop),
			Button("✅", CallbackData(approve, req.ID)),
			Button("❌", CallbackData(reject, req.ID)),
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// StudentsKeyboard строит кнопки отключения для подключённых студентов
func StudentsKeyboard(connections []*model.Connection) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(connections))
	for i, c := range connections {
		if i >= 10 {
			break
		}
		rows = append(rows, []models.InlineKeyboardButton{
			Button(fmt.Sprintf("🚪 Отключить %s", truncate(studentName(c), 20)), CallbackData(RemoveStudent, c.ID)),
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// TeachersKeyboard строит кнопки студента: отмена заявок и запрос на отключение
func TeachersKeyboard(connected, pending []*model.Connection) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(connected)+len(pending))
	for _, c := range pending {
		rows = append(rows, []models.InlineKeyboardButton{
			Button("↩️ Отменить заявку: "+truncate(teacherName(c), 20), CallbackData(CancelRequest, c.ID)),
		})
	}
	for _, c := range connected {
		rows = append(rows, []models.InlineKeyboardButton{
			Button("🚪 Отключиться: "+truncate(teacherName(c), 20), CallbackData(LeaveTeacher, c.ID)),
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
