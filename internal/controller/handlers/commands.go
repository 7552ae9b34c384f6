package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/studytrack/internal/controller/callbacks/common"
	"github.com/Freeeeeet/studytrack/internal/controller/state"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const studentCommands = "Для студентов:\n" +
	"/connect <код> - Подключиться к учителю\n" +
	"/teachers - Мои учителя и заявки\n" +
	"/disconnect <id> - Попросить отключения\n" +
	"/cancel <id> - Отменить заявку\n"

const teacherCommands = "Для учителей:\n" +
	"/requests - Входящие заявки\n" +
	"/students - Мои студенты\n"

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	user, err := h.authService.UserByTelegramID(ctx, update.Message.From.ID)
	if err != nil || user == nil {
		h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
			"👋 Привет, %s!\n\n"+
				"Это бот StudyTrack: связь студентов и учителей.\n\n"+
				"Чтобы начать, привяжите аккаунт: войдите в приложении и отправьте\n"+
				"/link <токен доступа>",
			update.Message.From.FirstName,
		))
		return
	}

	commands := studentCommands
	if user.IsTeacher() {
		commands = teacherCommands
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"👋 Привет, %s!\n\n%s\n/help - Справка",
		user.Name,
		commands,
	))
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID, "📚 Справка по командам:\n\n"+
		"/start - Начать работу с ботом\n"+
		"/link <токен> - Привязать аккаунт\n\n"+
		studentCommands+"\n"+
		teacherCommands)
}

// HandleLink обрабатывает /link <токен>: привязывает telegram к пользователю токена
func (h *Handlers) HandleLink(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	token := common.CommandArg(update.Message.Text)
	if token == "" {
		h.stateManager.SetState(update.Message.From.ID, state.StateAwaitingLinkToken)
		h.sendMessage(ctx, b, update.Message.Chat.ID, "🔑 Отправьте токен доступа из приложения.\n\n/cancel - отменить")
		return
	}

	h.link(ctx, b, update.Message, token)
}

func (h *Handlers) link(ctx context.Context, b *bot.Bot, msg *models.Message, token string) {
	// Токен не должен оставаться в истории чата
	if _, err := b.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: msg.Chat.ID, MessageID: msg.ID}); err != nil {
		h.logger.Debug("Failed to delete token message", zap.Error(err))
	}

	principal, err := h.authService.Authenticate(ctx, token)
	if err != nil {
		h.sendServiceError(ctx, b, msg.Chat.ID, "link", err)
		return
	}

	user, err := h.authService.LinkTelegram(ctx, principal, msg.From.ID)
	if err != nil {
		h.sendServiceError(ctx, b, msg.Chat.ID, "link", err)
		return
	}

	h.logger.Info("Telegram account linked",
		zap.String("user_id", user.ID.String()),
		zap.Int64("telegram_id", msg.From.ID),
	)

	role := "студент"
	if user.Role == model.RoleTeacher {
		role = "учитель"
	}
	h.sendMessage(ctx, b, msg.Chat.ID, fmt.Sprintf("✅ Аккаунт %s привязан (%s).\n\nСправка: /help", user.Email, role))
}

// HandleCancel обрабатывает /cancel: прерывает диалог или отменяет заявку /cancel <id>
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	telegramID := update.Message.From.ID
	if h.stateManager.GetState(telegramID) != state.StateNone {
		h.stateManager.ClearState(telegramID)
		h.sendMessage(ctx, b, update.Message.Chat.ID, "✅ Операция отменена.")
		return
	}

	if common.CommandArg(update.Message.Text) == "" {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Нет активных операций для отмены.\n\nЧтобы отменить заявку: /cancel <id> или кнопки в /teachers")
		return
	}

	h.HandleCancelRequest(ctx, b, update)
}

// HandleTextMessage обрабатывает текстовые сообщения в зависимости от состояния пользователя
func (h *Handlers) HandleTextMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	// Игнорируем команды (они обрабатываются другими handlers)
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	telegramID := update.Message.From.ID
	currentState := h.stateManager.GetState(telegramID)
	if currentState == state.StateNone {
		return
	}

	h.logger.Debug("Dialog input",
		zap.Int64("telegram_id", telegramID),
		zap.String("state", string(currentState)))

	text := strings.TrimSpace(update.Message.Text)
	h.stateManager.ClearState(telegramID)

	switch currentState {
	case state.StateAwaitingLinkToken:
		h.link(ctx, b, update.Message, text)
	case state.StateAwaitingTeacherCode:
		user, ok := h.requireStudent(ctx, b, update)
		if !ok {
			return
		}
		h.connect(ctx, b, update.Message.Chat.ID, user, text)
	}
}
