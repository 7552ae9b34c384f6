package handlers

import (
	"context"

	"github.com/Freeeeeet/studytrack/internal/controller/callbacks/common"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// HandleRequests показывает входящие заявки с кнопками ✅/❌
func (h *Handlers) HandleRequests(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireTeacher(ctx, b, update)
	if !ok {
		return
	}

	requests, err := h.connectionService.GetPendingRequests(ctx, user.ID)
	if err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "requests", err)
		return
	}

	h.send(ctx, b, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        common.FormatRequests(requests),
		ReplyMarkup: common.RequestsKeyboard(requests),
	})
}

// HandleStudents показывает подключённых студентов
func (h *Handlers) HandleStudents(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireTeacher(ctx, b, update)
	if !ok {
		return
	}

	students, err := h.connectionService.GetTeacherStudents(ctx, user.ID)
	if err != nil {
		h.sendServiceError(ctx, b, update.Message.Chat.ID, "students", err)
		return
	}

	h.send(ctx, b, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        common.FormatStudents(students),
		ReplyMarkup: common.StudentsKeyboard(students),
	})
}
