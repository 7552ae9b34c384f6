package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/google/uuid"
)

// Caller identifies whoever invokes an admin function.
// UserID is zero for admin-credential principals.
type Caller struct {
	UserID        uuid.UUID
	Email         string
	AdminUsername string
	// AdminInstitutionID is set for principals signed in with an admin credential
	AdminInstitutionID *uuid.UUID
}

// Actor returns the label written to the activity log.
func (c Caller) Actor() string {
	switch {
	case c.AdminUsername != "":
		return "admin:" + c.AdminUsername
	case c.Email != "":
		return c.Email
	default:
		return c.UserID.String()
	}
}

type DecisionReason string

const (
	ReasonAdminCredential DecisionReason = "admin_credential"
	ReasonContactEmail    DecisionReason = "contact_email"
	ReasonDenied          DecisionReason = "denied"
)

// Decision is the outcome of an admin rights check.
type Decision struct {
	Allowed bool           `json:"allowed"`
	Reason  DecisionReason `json:"reason"`
}

// Authorizer decides whether a caller administers an institution.
type Authorizer struct{}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// Decide grants access when the caller holds an active admin credential of the
// institution (by username or email) or the caller's email is the institution contact.
func (a *Authorizer) Decide(ctx context.Context, store repository.Store, caller Caller, inst *model.Institution) (Decision, error) {
	if caller.AdminInstitutionID != nil && *caller.AdminInstitutionID != inst.ID {
		return Decision{Reason: ReasonDenied}, nil
	}

	if caller.AdminUsername != "" || caller.Email != "" {
		ok, err := store.AdminCredentials().HasActive(ctx, inst.ID, caller.AdminUsername, caller.Email)
		if err != nil {
			return Decision{}, fmt.Errorf("check admin credential: %w", err)
		}
		if ok {
			return Decision{Allowed: true, Reason: ReasonAdminCredential}, nil
		}
	}

	if caller.Email != "" && inst.ContactEmail != "" && strings.EqualFold(caller.Email, inst.ContactEmail) {
		return Decision{Allowed: true, Reason: ReasonContactEmail}, nil
	}

	return Decision{Reason: ReasonDenied}, nil
}
