package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/auth"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenKindPlan = "member_plan"

// PlanClaims bind a commit to the memberships that were going to be deactivated.
type PlanClaims struct {
	Kind          string   `json:"kind"`
	InstitutionID string   `json:"institution_id"`
	Role          string   `json:"role"`
	Email         string   `json:"email"`
	Deactivate    []string `json:"deactivate"`
	jwt.RegisteredClaims
}

func (c *PlanClaims) DeactivateIDs() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(c.Deactivate))
	for _, raw := range c.Deactivate {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperrors.Validation("plan_token", "malformed membership id")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PlanSigner issues and verifies member plan tokens.
type PlanSigner struct {
	jwt *auth.JWTService
	ttl time.Duration
}

func NewPlanSigner(jwtService *auth.JWTService, ttl time.Duration) *PlanSigner {
	return &PlanSigner{jwt: jwtService, ttl: ttl}
}

func (p *PlanSigner) Sign(institutionID uuid.UUID, role model.Role, email string, deactivate []uuid.UUID) (string, error) {
	ids := make([]string, 0, len(deactivate))
	for _, id := range deactivate {
		ids = append(ids, id.String())
	}

	claims := &PlanClaims{
		Kind:             tokenKindPlan,
		InstitutionID:    institutionID.String(),
		Role:             string(role),
		Email:            email,
		Deactivate:       ids,
		RegisteredClaims: p.jwt.NewRegisteredClaims(email, p.ttl),
	}

	token, err := p.jwt.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign plan: %w", err)
	}
	return token, nil
}

func (p *PlanSigner) Verify(token string) (*PlanClaims, error) {
	var claims PlanClaims
	if err := p.jwt.Parse(token, &claims); err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.Conflict("plan has expired")
		}
		return nil, apperrors.Validation("plan_token", "is invalid")
	}
	if claims.Kind != tokenKindPlan {
		return nil, apperrors.Validation("plan_token", "is not a plan token")
	}
	return &claims, nil
}
