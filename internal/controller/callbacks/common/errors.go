package common

import (
	"errors"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
)

// Ошибки разбора callback
var (
	ErrInvalidFormat = errors.New("invalid callback format")
	ErrNoMessage     = errors.New("no message in callback")
)

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	var limitErr *apperrors.LimitExceededError

	switch {
	case errors.Is(err, ErrInvalidFormat):
		return "❌ Неверный формат данных"
	case errors.Is(err, ErrNoMessage):
		return "❌ Ошибка обработки сообщения"
	case errors.As(err, &limitErr):
		return "❌ Достигнут лимит мест в учреждении"
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return "❌ Аккаунт не привязан. Используйте /link <токен>"
	case errors.Is(err, apperrors.ErrNotFound):
		return "❌ " + apperrors.Message(err)
	case apperrors.Is(err, apperrors.ErrNotAuthorized, apperrors.ErrForbidden):
		return "❌ Недостаточно прав: " + apperrors.Message(err)
	case errors.Is(err, apperrors.ErrValidation):
		return "❌ Некорректные данные: " + err.Error()
	case errors.Is(err, apperrors.ErrConflict):
		return "⚠️ " + apperrors.Message(err)
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return "⚠️ Заявка уже обработана"
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}
