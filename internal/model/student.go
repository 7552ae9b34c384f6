package model

import "github.com/google/uuid"

// Student holds student details. ID is the owning user's id.
type Student struct {
	ID            uuid.UUID  `json:"id"`
	School        string     `json:"school"`
	Grade         string     `json:"grade"`
	Phone         string     `json:"phone"`
	InstitutionID *uuid.UUID `json:"institution_id"`

	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}
