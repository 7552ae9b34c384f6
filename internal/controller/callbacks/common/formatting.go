package common

import (
	"fmt"
	"strings"

	"github.com/Freeeeeet/studytrack/internal/model"
)

// StatusDisplay представляет отображение статуса связи
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetConnectionStatusDisplay возвращает emoji и текст для состояния связи
func GetConnectionStatusDisplay(c *model.Connection) StatusDisplay {
	switch {
	case c.IsPendingConnect():
		return StatusDisplay{"⏳", "Ожидает одобрения"}
	case c.IsPendingDisconnect():
		return StatusDisplay{"🚪", "Ожидает отключения"}
	case c.IsConnected():
		return StatusDisplay{"✅", "Подключён"}
	case c.IsRejectedButActive():
		return StatusDisplay{"⚠️", "Отклонена, но активна"}
	case c.ApprovalStatus == model.ApprovalRejected:
		return StatusDisplay{"🚫", "Отклонена"}
	case c.ApprovalStatus == model.ApprovalDisconnected:
		return StatusDisplay{"⚫️", "Отключён"}
	default:
		return StatusDisplay{"❓", "Неизвестно"}
	}
}

// FormatConnectionLine форматирует одну строку списка
func FormatConnectionLine(i int, name string, c *model.Connection) string {
	display := GetConnectionStatusDisplay(c)
	return fmt.Sprintf("%d. %s %s - %s (с %s)", i, display.Emoji, name, display.Text, c.CreatedAt.Format("02.01.2006"))
}

// FormatTeachers форматирует группы учителей студента
func FormatTeachers(connected, pending, rejectedActive []*model.Connection) string {
	var sb strings.Builder

	section := func(title string, list []*model.Connection) {
		if len(list) == 0 {
			return
		}
		fmt.Fprintf(&sb, "%s (%d)\n", title, len(list))
		for i, c := range list {
			sb.WriteString(FormatConnectionLine(i+1, teacherName(c), c))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	section("👩‍🏫 Мои учителя", connected)
	section("⏳ Заявки", pending)
	section("⚠️ Требуют внимания", rejectedActive)

	if sb.Len() == 0 {
		return "У вас пока нет учителей.\n\nПодключитесь по коду: /connect <код>"
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatRequests форматирует входящие заявки учителя
func FormatRequests(requests []*model.Connection) string {
	if len(requests) == 0 {
		return "📩 Новых заявок нет."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📩 Заявки (%d)\n\n", len(requests))
	for i, c := range requests {
		kind := "подключение"
		if c.IsPendingDisconnect() {
			kind = "отключение"
		}
		fmt.Fprintf(&sb, "%d. %s - %s, %s\n", i+1, studentName(c), kind, c.CreatedAt.Format("02.01.2006 15:04"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatStudents форматирует список студентов учителя
func FormatStudents(connections []*model.Connection) string {
	if len(connections) == 0 {
		return "👥 У вас пока нет студентов."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Мои студенты (%d)\n\n", len(connections))
	for i, c := range connections {
		sb.WriteString(FormatConnectionLine(i+1, studentName(c), c))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func teacherName(c *model.Connection) string {
	if c.Teacher != nil && c.Teacher.Name != "" {
		return c.Teacher.Name
	}
	return "Учитель"
}

func studentName(c *model.Connection) string {
	if c.Student != nil && c.Student.Name != "" {
		return c.Student.Name
	}
	return "Студент"
}
