package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/auth"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tokenKindSession = "session"
	tokenKindAdmin   = "admin"
)

// SessionClaims are carried by access tokens.
type SessionClaims struct {
	Kind          string `json:"kind"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	AdminUsername string `json:"admin_username,omitempty"`
	InstitutionID string `json:"institution_id,omitempty"`
	jwt.RegisteredClaims
}

// Principal is an authenticated token holder.
type Principal struct {
	UserID        uuid.UUID
	Email         string
	Role          model.Role
	AdminUsername string
	InstitutionID *uuid.UUID
	TokenID       string
	ExpiresAt     time.Time
}

func (p *Principal) IsAdmin() bool {
	return p.AdminUsername != ""
}

// Caller converts the principal for admin checks.
func (p *Principal) Caller() Caller {
	return Caller{
		UserID:             p.UserID,
		Email:              p.Email,
		AdminUsername:      p.AdminUsername,
		AdminInstitutionID: p.InstitutionID,
	}
}

type Session struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user,omitempty"`
}

type SessionEventType string

const (
	SessionSignedIn  SessionEventType = "SIGNED_IN"
	SessionSignedOut SessionEventType = "SIGNED_OUT"
)

type SessionEvent struct {
	Type    SessionEventType
	UserID  uuid.UUID
	TokenID string
}

type AuthService struct {
	store  repository.Store
	jwt    *auth.JWTService
	ttl    time.Duration
	logger *zap.Logger

	mu        sync.RWMutex
	listeners map[int]func(SessionEvent)
	nextID    int
}

func NewAuthService(store repository.Store, jwtService *auth.JWTService, ttl time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:     store,
		jwt:       jwtService,
		ttl:       ttl,
		logger:    logger,
		listeners: make(map[int]func(SessionEvent)),
	}
}

// SignIn проверяет email и пароль и выдаёт токен сессии
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.Validation("email", "email and password are required")
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "invalid email or password")
	}

	claims := &SessionClaims{
		Kind:             tokenKindSession,
		Email:            user.Email,
		Role:             string(user.Role),
		RegisteredClaims: s.jwt.NewRegisteredClaims(user.ID.String(), s.ttl),
	}

	session, err := s.issue(claims)
	if err != nil {
		return nil, err
	}
	session.User = user

	s.logger.Info("User signed in", zap.String("user_id", user.ID.String()))
	s.emit(SessionEvent{Type: SessionSignedIn, UserID: user.ID, TokenID: claims.ID})

	return session, nil
}

// SignInAdmin выдаёт токен администратора учреждения по логину и паролю
func (s *AuthService) SignInAdmin(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.Validation("username", "username and password are required")
	}

	cred, err := s.store.AdminCredentials().GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get admin credential: %w", err)
	}
	if cred == nil || !cred.IsActive || !auth.CheckPassword(cred.PasswordHash, password) {
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "invalid username or password")
	}

	claims := &SessionClaims{
		Kind:             tokenKindAdmin,
		Email:            cred.Email,
		AdminUsername:    cred.Username,
		InstitutionID:    cred.InstitutionID.String(),
		RegisteredClaims: s.jwt.NewRegisteredClaims("admin:"+cred.Username, s.ttl),
	}

	session, err := s.issue(claims)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Institution admin signed in",
		zap.String("username", cred.Username),
		zap.String("institution_id", cred.InstitutionID.String()),
	)

	return session, nil
}

// Authenticate проверяет токен и отзыв сессии
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	var claims SessionClaims
	if err := s.jwt.Parse(token, &claims); err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.New(apperrors.ErrUnauthenticated, "session expired")
		}
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "invalid access token")
	}

	revoked, err := s.store.Sessions().IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revoked session: %w", err)
	}
	if revoked {
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "session has been signed out")
	}

	p := &Principal{
		Email:   claims.Email,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}

	switch claims.Kind {
	case tokenKindSession:
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrUnauthenticated, "invalid access token")
		}
		p.UserID = id
		p.Role = model.Role(claims.Role)
	case tokenKindAdmin:
		instID, err := uuid.Parse(claims.InstitutionID)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrUnauthenticated, "invalid access token")
		}
		p.AdminUsername = claims.AdminUsername
		p.InstitutionID = &instID
	default:
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "invalid access token")
	}

	return p, nil
}

// CurrentUser возвращает профиль владельца сессии
func (s *AuthService) CurrentUser(ctx context.Context, p *Principal) (*model.User, error) {
	if p == nil || p.UserID == uuid.Nil {
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "no user session")
	}

	user, err := s.store.Users().GetByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user %s not found", p.UserID)
	}
	return user, nil
}

// SignOut отзывает токен до истечения его срока
func (s *AuthService) SignOut(ctx context.Context, p *Principal) error {
	if err := s.store.Sessions().Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	s.logger.Info("Session signed out", zap.String("token_id", p.TokenID))
	s.emit(SessionEvent{Type: SessionSignedOut, UserID: p.UserID, TokenID: p.TokenID})
	return nil
}

// OnSessionChange подписывает cb на вход и выход; возвращает функцию отписки
func (s *AuthService) OnSessionChange(cb func(SessionEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = cb
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// LinkTelegram привязывает telegram-аккаунт к пользователю сессии
func (s *AuthService) LinkTelegram(ctx context.Context, p *Principal, telegramID int64) (*model.User, error) {
	user, err := s.CurrentUser(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.store.Users().SetTelegramID(ctx, user.ID, telegramID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("telegram account is linked to another user")
		}
		return nil, fmt.Errorf("link telegram: %w", err)
	}
	user.TelegramID = &telegramID
	return user, nil
}

// UserByTelegramID находит пользователя по привязанному telegram-аккаунту
func (s *AuthService) UserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.store.Users().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}
	if user == nil {
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "telegram account is not linked")
	}
	return user, nil
}

func (s *AuthService) issue(claims *SessionClaims) (*Session, error) {
	token, err := s.jwt.Sign(claims)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (s *AuthService) emit(ev SessionEvent) {
	s.mu.RLock()
	listeners := make([]func(SessionEvent), 0, len(s.listeners))
	for _, cb := range s.listeners {
		listeners = append(listeners, cb)
	}
	s.mu.RUnlock()

	for _, cb := range listeners {
		cb(ev)
	}
}
