package handlers

import (
	"github.com/Freeeeeet/studytrack/internal/controller/state"
	"github.com/Freeeeeet/studytrack/internal/service"
	"go.uber.org/zap"
)

// Handlers обрабатывает текстовые команды бота
type Handlers struct {
	authService       *service.AuthService
	connectionService *service.ConnectionService
	stateManager      *state.Manager
	logger            *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	authService *service.AuthService,
	connectionService *service.ConnectionService,
	stateManager *state.Manager,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		authService:       authService,
		connectionService: connectionService,
		stateManager:      stateManager,
		logger:            logger,
	}
}
