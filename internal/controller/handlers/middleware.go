package handlers

import (
	"context"
	"errors"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/controller/callbacks/common"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireUser находит пользователя по привязанному telegram-аккаунту
// Возвращает user и true если OK, nil и false если нет
func (h *Handlers) requireUser(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, false
	}

	telegramID := update.Message.From.ID
	user, err := h.authService.UserByTelegramID(ctx, telegramID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUnauthenticated) {
			h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		}
		h.sendMessage(ctx, b, update.Message.Chat.ID, common.ErrorMessage(err))
		return nil, false
	}

	return user, true
}

// requireTeacher проверяет что пользователь является учителем
func (h *Handlers) requireTeacher(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return nil, false
	}

	if !user.IsTeacher() {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Эта команда доступна только учителям.")
		return nil, false
	}

	return user, true
}

// requireStudent проверяет что пользователь является студентом
func (h *Handlers) requireStudent(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return nil, false
	}

	if !user.IsStudent() {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Эта команда доступна только студентам.")
		return nil, false
	}

	return user, true
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	h.send(ctx, b, &bot.SendMessageParams{ChatID: chatID, Text: text})
}

func (h *Handlers) send(ctx context.Context, b *bot.Bot, params *bot.SendMessageParams) {
	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message",
			zap.Any("chat_id", params.ChatID),
			zap.Error(err),
		)
	}
}

// sendServiceError логирует неожиданные ошибки и показывает пользователю понятный текст
func (h *Handlers) sendServiceError(ctx context.Context, b *bot.Bot, chatID int64, op string, err error) {
	if !isExpected(err) {
		h.logger.Error("Bot command failed", zap.String("op", op), zap.Error(err))
	}
	h.sendMessage(ctx, b, chatID, common.ErrorMessage(err))
}

func isExpected(err error) bool {
	return apperrors.Is(err, apperrors.ErrNotFound,
		apperrors.ErrNotAuthorized,
		apperrors.ErrForbidden,
		apperrors.ErrValidation,
		apperrors.ErrConflict,
		apperrors.ErrInvalidTransition,
		apperrors.ErrUnauthenticated,
		apperrors.ErrLimitExceeded,
	)
}
