package state

import (
	"sync"
	"time"
)

// Manager управляет состояниями пользователей
type Manager struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[int64]*UserData // telegramID -> UserData
}

// NewManager создаёт новый менеджер состояний; диалог старше ttl считается брошенным
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:    ttl,
		now:    time.Now,
		states: make(map[int64]*UserData),
	}
}

// lookup возвращает живую запись, просроченную удаляет. Вызывать под mu.
func (sm *Manager) lookup(telegramID int64) *UserData {
	userData, exists := sm.states[telegramID]
	if !exists {
		return nil
	}
	if sm.ttl > 0 && sm.now().Sub(userData.UpdatedAt) > sm.ttl {
		delete(sm.states, telegramID)
		return nil
	}
	return userData
}

// GetState получает текущее состояние пользователя
func (sm *Manager) GetState(telegramID int64) UserState {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if userData := sm.lookup(telegramID); userData != nil {
		return userData.State
	}
	return StateNone
}

// SetState устанавливает состояние пользователя
func (sm *Manager) SetState(telegramID int64, state UserState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state == StateNone {
		delete(sm.states, telegramID)
		return
	}

	userData := sm.lookup(telegramID)
	if userData == nil {
		userData = &UserData{Data: make(map[string]string)}
		sm.states[telegramID] = userData
	}
	userData.State = state
	userData.UpdatedAt = sm.now()
}

// GetData получает временные данные пользователя
func (sm *Manager) GetData(telegramID int64, key string) (string, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if userData := sm.lookup(telegramID); userData != nil {
		value, ok := userData.Data[key]
		return value, ok
	}
	return "", false
}

// SetData сохраняет данные только внутри активного диалога
func (sm *Manager) SetData(telegramID int64, key, value string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	userData := sm.lookup(telegramID)
	if userData == nil {
		return false
	}
	userData.Data[key] = value
	userData.UpdatedAt = sm.now()
	return true
}

// ClearState очищает состояние и данные пользователя
func (sm *Manager) ClearState(telegramID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, telegramID)
}
