package model

import (
	"time"

	"github.com/google/uuid"
)

type PlanPeriod string

const (
	PlanDaily  PlanPeriod = "daily"
	PlanWeekly PlanPeriod = "weekly"
)

// Days returns how many calendar days one plan of this period covers.
func (p PlanPeriod) Days() int {
	if p == PlanWeekly {
		return 7
	}
	return 1
}

func (p PlanPeriod) Valid() bool {
	return p == PlanDaily || p == PlanWeekly
}

// StudyPlan is a student's goal for one day or one week.
// StartsOn is midnight UTC of the day, or of the Monday for weekly plans.
type StudyPlan struct {
	ID              uuid.UUID  `json:"id"`
	StudentID       uuid.UUID  `json:"student_id"`
	Period          PlanPeriod `json:"period"`
	StartsOn        time.Time  `json:"starts_on"`
	TargetMinutes   int        `json:"target_minutes"`
	TargetQuestions int        `json:"target_questions"`
	Note            string     `json:"note"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EndsOn is the first instant after the plan window.
func (p *StudyPlan) EndsOn() time.Time {
	return p.StartsOn.AddDate(0, 0, p.Period.Days())
}

// StudyPlanProgress pairs a plan with what the student logged inside its window.
type StudyPlanProgress struct {
	*StudyPlan
	DoneMinutes   int  `json:"done_minutes"`
	DoneQuestions int  `json:"done_questions"`
	Completed     bool `json:"completed"`
}
