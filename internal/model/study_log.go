package model

import (
	"time"

	"github.com/google/uuid"
)

// StudyLog is one study session recorded by a student.
type StudyLog struct {
	ID              uuid.UUID `json:"id"`
	StudentID       uuid.UUID `json:"student_id"`
	Subject         string    `json:"subject"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionsSolved int       `json:"questions_solved"`
	Note            string    `json:"note"`
	StudiedAt       time.Time `json:"studied_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Message is a direct message between a connected student and teacher.
type Message struct {
	ID          uuid.UUID  `json:"id"`
	SenderID    uuid.UUID  `json:"sender_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	Body        string     `json:"body"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `json:"created_at"`
}
