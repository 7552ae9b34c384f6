package model

import (
	"time"

	"github.com/google/uuid"
)

// Membership links a user to an institution. A user holds at most one
// active membership; inactive rows are kept and reactivated on re-join.
type Membership struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	InstitutionID uuid.UUID  `json:"institution_id"`
	Role          Role       `json:"role"`
	IsActive      bool       `json:"is_active"`
	JoinedAt      time.Time  `json:"joined_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}
