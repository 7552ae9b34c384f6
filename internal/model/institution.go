package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// Institution is an organization that owns teacher and student seats.
// Institutions are deactivated, never deleted.
type Institution struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	Type          string        `json:"type"`
	ContactEmail  string        `json:"contact_email"`
	IsActive      bool          `json:"is_active"`
	IsPremium     bool          `json:"is_premium"`
	MaxTeachers   int           `json:"max_teachers"`
	MaxStudents   int           `json:"max_students"`
	ContractStart *time.Time    `json:"contract_start_date"`
	ContractEnd   *time.Time    `json:"contract_end_date"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SeatLimit returns the configured cap for role.
func (i *Institution) SeatLimit(role Role) int {
	if role == RoleTeacher {
		return i.MaxTeachers
	}
	return i.MaxStudents
}
