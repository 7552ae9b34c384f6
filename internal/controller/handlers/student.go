package handlers

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/controller/callbacks/common"
	"github.com/Freeeeeet/studytrack/internal/controller/state"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

// HandleConnect обрабатывает /connect <код>
func (h *Handlers) HandleConnect(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireStudent(ctx, b, update)
	if !ok {
		return
	}

	code := common.CommandArg(update.Message.Text)
	if code == "" {
		h.stateManager.SetState(update.Message.From.ID, state.StateAwaitingTeacherCode)
		h.sendMessage(ctx, b, update.Message.Chat.ID, "🔑 Введите код учителя (например, TCH4KQ2M).\n\n/cancel - отменить")
		return
	}

	h.connect(ctx, b, update.Message.Chat.ID, user, code)
}

func (h *Handlers) connect(ctx context.Context, b *bot.Bot, chatID int64, user *model.User, code string) {
	conn, err := h.connectionService.ConnectToTeacher(ctx, user.ID, code)
	if err != nil {
		h.sendServiceError(ctx, b, chatID, "connect", err)
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf(
		"⏳ Заявка отправлена учителю.\n\nID заявки: %s\nСтатус заявок: /teachers",
		conn.ID,
	))
}

// HandleTeachers показывает учителей студента по группам
func (h *Handlers) HandleTeachers(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireStudent(ctx, b, update)
	if !ok {
		return
	}

	groups, err := h.connectionService.GetStudentTeachers(ctx, user.ID)
	if err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "teachers", err)
		return
	}

	h.send(ctx, b, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        common.FormatTeachers(groups.Connected, groups.Pending, groups.RejectedActive),
		ReplyMarkup: common.TeachersKeyboard(groups.Connected, groups.Pending),
	})
}

// HandleDisconnect обрабатывает /disconnect <id>
func (h *Handlers) HandleDisconnect(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireStudent(ctx, b, update)
	if !ok {
		return
	}

	id, ok := h.commandID(ctx, b, update, "/disconnect <id>")
	if !ok {
		return
	}

	if _, err := h.connectionService.RequestDisconnection(ctx, user.ID, id); err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "disconnect", err)
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, "🚪 Запрос на отключение отправлен учителю.")
}

// HandleCancelRequest обрабатывает /cancel <id>
func (h *Handlers) HandleCancelRequest(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireStudent(ctx, b, update)
	if !ok {
		return
	}

	id, ok := h.commandID(ctx, b, update, "/cancel <id>")
	if !ok {
		return
	}

	if err := h.connectionService.CancelPendingRequest(ctx, user.ID, id); err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "cancel", err)
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, "↩️ Заявка отменена.")
}

func (h *Handlers) commandID(ctx context.Context, b *bot.Bot, update *models.Update, usage string) (uuid.UUID, bool) {
	id, err := uuid.Parse(common.CommandArg(update.Message.Text))
	if err != nil {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Укажите ID заявки: "+usage)
		return uuid.Nil, false
	}
	return id, true
}
