package state

import "time"

// UserState представляет текущее состояние пользователя в диалоге
type UserState string

const (
	StateNone UserState = "" // Нет активного состояния

	// Студент ввёл /connect без кода
	StateAwaitingTeacherCode UserState = "awaiting_teacher_code"
	// Пользователь ввёл /link без токена
	StateAwaitingLinkToken UserState = "awaiting_link_token"
)

// DefaultTTL сколько живёт незавершённый диалог
const DefaultTTL = 10 * time.Minute

// UserData хранит временные данные пользователя во время диалога
type UserData struct {
	State     UserState
	Data      map[string]string
	UpdatedAt time.Time
}
