package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type StudyPlanInput struct {
	Period          model.PlanPeriod `json:"period"`
	Date            time.Time        `json:"date"`
	TargetMinutes   int              `json:"target_minutes"`
	TargetQuestions int              `json:"target_questions"`
	Note            string           `json:"note"`
}

// planStart приводит дату к началу дня или к понедельнику недели в UTC
func planStart(period model.PlanPeriod, date time.Time) time.Time {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	if period == model.PlanWeekly {
		start = start.AddDate(0, 0, -((int(start.Weekday()) + 6) % 7))
	}
	return start
}

func checkPeriod(period model.PlanPeriod) error {
	if !period.Valid() {
		return apperrors.Validation("period", "must be daily or weekly")
	}
	return nil
}

// SaveStudyPlan создает или заменяет план студента на день или неделю
func (s *StudyService) SaveStudyPlan(ctx context.Context, studentID uuid.UUID, in StudyPlanInput) (*model.StudyPlan, error) {
	student, err := s.store.Students().GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, apperrors.NotAuthorized("only students can plan their study")
	}

	if err := checkPeriod(in.Period); err != nil {
		return nil, err
	}
	if in.TargetMinutes < 0 || in.TargetMinutes > maxStudyMinutes*in.Period.Days() {
		return nil, apperrors.Validation("target_minutes", "must fit into the plan period")
	}
	if in.TargetQuestions < 0 {
		return nil, apperrors.Validation("target_questions", "must not be negative")
	}
	if in.TargetMinutes == 0 && in.TargetQuestions == 0 {
		return nil, apperrors.Validation("target_minutes", "set a minutes or questions target")
	}
	in.Note = strings.TrimSpace(in.Note)
	if len(in.Note) > maxMessageLength {
		return nil, apperrors.Validation("note", "is too long")
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	plan := &model.StudyPlan{
		StudentID:       studentID,
		Period:          in.Period,
		StartsOn:        planStart(in.Period, in.Date),
		TargetMinutes:   in.TargetMinutes,
		TargetQuestions: in.TargetQuestions,
		Note:            in.Note,
	}
	if err := s.store.StudyPlans().Upsert(ctx, plan); err != nil {
		return nil, fmt.Errorf("save study plan: %w", err)
	}

	s.logger.Debug("Study plan saved",
		zap.String("student_id", studentID.String()),
		zap.String("period", string(plan.Period)),
		zap.Time("starts_on", plan.StartsOn),
	)

	return plan, nil
}

// DeleteStudyPlan удаляет план студента на день или неделю, содержащие date
func (s *StudyService) DeleteStudyPlan(ctx context.Context, studentID uuid.UUID, period model.PlanPeriod, date time.Time) error {
	if err := checkPeriod(period); err != nil {
		return err
	}

	err := s.store.StudyPlans().Delete(ctx, studentID, period, planStart(period, date))
	if errors.Is(err, base.ErrNoRowsAffected) {
		return apperrors.NotFound("no %s plan for %s", period, date.Format(time.DateOnly))
	}
	if err != nil {
		return fmt.Errorf("delete study plan: %w", err)
	}
	return nil
}

// ListOwnPlans получает планы студента вместе с выполнением по журналу занятий
func (s *StudyService) ListOwnPlans(ctx context.Context, studentID uuid.UUID, period model.PlanPeriod, since time.Time) ([]*model.StudyPlanProgress, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}

	plans, err := s.store.StudyPlans().ListByStudent(ctx, studentID, period, planStart(period, sinceOrDefault(since)))
	if err != nil {
		return nil, fmt.Errorf("list study plans: %w", err)
	}
	if len(plans) == 0 {
		return []*model.StudyPlanProgress{}, nil
	}

	// Планы отсортированы от новых к старым
	logs, err := s.store.StudyLogs().ListByStudent(ctx, studentID, plans[len(plans)-1].StartsOn)
	if err != nil {
		return nil, fmt.Errorf("list study logs: %w", err)
	}

	result := make([]*model.StudyPlanProgress, 0, len(plans))
	for _, plan := range plans {
		progress := &model.StudyPlanProgress{StudyPlan: plan}
		for _, entry := range logs {
			if entry.StudiedAt.Before(plan.StartsOn) || !entry.StudiedAt.Before(plan.EndsOn()) {
				continue
			}
			progress.DoneMinutes += entry.DurationMinutes
			progress.DoneQuestions += entry.QuestionsSolved
		}
		progress.Completed = progress.DoneMinutes >= plan.TargetMinutes &&
			progress.DoneQuestions >= plan.TargetQuestions
		result = append(result, progress)
	}

	return result, nil
}

// ListStudentPlans учитель смотрит планы только подключённого студента
func (s *StudyService) ListStudentPlans(ctx context.Context, teacherID, studentID uuid.UUID, period model.PlanPeriod, since time.Time) ([]*model.StudyPlanProgress, error) {
	connected, err := s.connections.IsConnected(ctx, studentID, teacherID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, apperrors.NotAuthorized("student %s is not connected to you", studentID)
	}

	return s.ListOwnPlans(ctx, studentID, period, since)
}
