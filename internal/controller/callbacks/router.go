package callbacks

import (
	"context"
	"strings"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/controller/callbacks/common"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler обрабатывает нажатия на inline кнопки
type Handler struct {
	auth        *service.AuthService
	connections *service.ConnectionService
	logger      *zap.Logger
}

func NewHandler(auth *service.AuthService, connections *service.ConnectionService, logger *zap.Logger) *Handler {
	return &Handler{
		auth:        auth,
		connections: connections,
		logger:      logger,
	}
}

// teacherAction и studentAction выполняют переход заявки от имени владельца кнопки
type teacherAction func(ctx context.Context, teacherID, connectionID uuid.UUID) (*model.Connection, error)

type studentAction func(ctx context.Context, studentID, connectionID uuid.UUID) error

// HandleCallbackQuery точка входа для bot.HandlerTypeCallbackQueryData
func (h *Handler) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	Route(ctx, b, update.CallbackQuery, h)
}

// Route распределяет callback query по соответствующим обработчикам
func Route(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *Handler) {
	data := callback.Data

	h.logger.Debug("Routing callback",
		zap.String("data", data),
		zap.Int64("user_id", callback.From.ID))

	action, _, _ := strings.Cut(data, ":")

	switch action {
	case common.Noop:
		common.AnswerCallback(ctx, b, callback.ID, "")
	case common.ApproveConnect:
		h.teacherTransition(ctx, b, callback, h.connections.ApproveStudentRequest, "✅ Студент подключён", false)
	case common.RejectConnect:
		h.teacherTransition(ctx, b, callback, h.connections.RejectStudentRequest, "❌ Заявка отклонена", false)
	case common.ApproveDisconnect:
		h.teacherTransition(ctx, b, callback, h.connections.ApproveDisconnectionRequest, "✅ Отключение подтверждено", false)
	case common.RejectDisconnect:
		h.teacherTransition(ctx, b, callback, h.connections.RejectDisconnectionRequest, "❌ Отключение отклонено", false)
	case common.RemoveStudent:
		h.teacherTransition(ctx, b, callback, h.connections.DisconnectStudent, "🚪 Студент отключён", true)
	case common.CancelRequest:
		h.studentTransition(ctx, b, callback, h.connections.CancelPendingRequest, "↩️ Заявка отменена")
	case common.LeaveTeacher:
		leave := func(ctx context.Context, studentID, connectionID uuid.UUID) error {
			_, err := h.connections.RequestDisconnection(ctx, studentID, connectionID)
			return err
		}
		h.studentTransition(ctx, b, callback, leave, "🚪 Запрос на отключение отправлен")
	default:
		h.logger.Warn("Unknown callback", zap.String("data", data))
		common.AnswerCallbackAlert(ctx, b, callback.ID, "❌ Неизвестная команда")
	}
}

func (h *Handler) teacherTransition(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, do teacherAction, done string, studentsView bool) {
	user, id, ok := h.prepare(ctx, b, callback, model.RoleTeacher)
	if !ok {
		return
	}

	if _, err := do(ctx, user.ID, id); err != nil {
		h.answerError(ctx, b, callback, err)
		return
	}
	common.AnswerCallback(ctx, b, callback.ID, done)

	var (
		text     string
		keyboard *models.InlineKeyboardMarkup
	)
	if studentsView {
		students, err := h.connections.GetTeacherStudents(ctx, user.ID)
		if err != nil {
			h.logger.Error("Failed to reload students", zap.Error(err))
			return
		}
		text, keyboard = common.FormatStudents(students), common.StudentsKeyboard(students)
	} else {
		requests, err := h.connections.GetPendingRequests(ctx, user.ID)
		if err != nil {
			h.logger.Error("Failed to reload requests", zap.Error(err))
			return
		}
		text, keyboard = common.FormatRequests(requests), common.RequestsKeyboard(requests)
	}
	h.edit(ctx, b, callback, text, keyboard)
}

func (h *Handler) studentTransition(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, do studentAction, done string) {
	user, id, ok := h.prepare(ctx, b, callback, model.RoleStudent)
	if !ok {
		return
	}

	if err := do(ctx, user.ID, id); err != nil {
		h.answerError(ctx, b, callback, err)
		return
	}
	common.AnswerCallback(ctx, b, callback.ID, done)

	groups, err := h.connections.GetStudentTeachers(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to reload teachers", zap.Error(err))
		return
	}
	h.edit(ctx, b, callback,
		common.FormatTeachers(groups.Connected, groups.Pending, groups.RejectedActive),
		common.TeachersKeyboard(groups.Connected, groups.Pending),
	)
}

// prepare загружает пользователя по telegram-аккаунту и ID заявки из кнопки
func (h *Handler) prepare(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, role model.Role) (*model.User, uuid.UUID, bool) {
	id, err := common.ParseIDFromCallback(callback.Data)
	if err != nil {
		h.logger.Warn("Bad callback data", zap.String("data", callback.Data), zap.Error(err))
		common.AnswerCallbackAlert(ctx, b, callback.ID, "❌ Неверный формат")
		return nil, uuid.Nil, false
	}

	user, err := h.auth.UserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		h.answerError(ctx, b, callback, err)
		return nil, uuid.Nil, false
	}
	if user.Role != role {
		common.AnswerCallbackAlert(ctx, b, callback.ID, "❌ Действие недоступно для вашей роли")
		return nil, uuid.Nil, false
	}
	return user, id, true
}

func (h *Handler) answerError(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, err error) {
	if !apperrors.Is(err, apperrors.ErrNotFound,
		apperrors.ErrNotAuthorized,
		apperrors.ErrInvalidTransition,
		apperrors.ErrConflict,
		apperrors.ErrUnauthenticated,
	) {
		h.logger.Error("Callback failed", zap.String("data", callback.Data), zap.Error(err))
	}
	common.AnswerCallbackAlert(ctx, b, callback.ID, common.ErrorMessage(err))
}

func (h *Handler) edit(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, text string, keyboard *models.InlineKeyboardMarkup) {
	msg := common.GetMessageFromCallback(callback)
	if msg == nil {
		return
	}
	_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        text,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		h.logger.Debug("Failed to edit message", zap.Error(err))
	}
}
