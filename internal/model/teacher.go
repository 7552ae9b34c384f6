package model

import "github.com/google/uuid"

// Teacher holds teacher details. ID is the owning user's id.
// InstitutionID mirrors the active membership.
type Teacher struct {
	ID            uuid.UUID  `json:"id"`
	Branch        string     `json:"branch"`
	Phone         string     `json:"phone"`
	TeacherCode   string     `json:"teacher_code"`
	InstitutionID *uuid.UUID `json:"institution_id"`

	// Filled by joins, not stored in teachers
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}
