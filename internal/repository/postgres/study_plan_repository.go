package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

type planTable struct {
	name      string
	dateField string
}

var planTables = map[model.PlanPeriod]planTable{
	model.PlanDaily:  {name: "student_daily_plans", dateField: "plan_date"},
	model.PlanWeekly: {name: "student_weekly_plans", dateField: "week_start"},
}

type StudyPlanRepository struct {
	*base.Repository
}

func NewStudyPlanRepository(db base.DBTX) *StudyPlanRepository {
	return &StudyPlanRepository{Repository: base.NewRepository(db)}
}

func tableFor(period model.PlanPeriod) (planTable, error) {
	t, ok := planTables[period]
	if !ok {
		return planTable{}, fmt.Errorf("unknown plan period %q", period)
	}
	return t, nil
}

// Upsert создает план или обновляет цели уже существующего на ту же дату
func (r *StudyPlanRepository) Upsert(ctx context.Context, plan *model.StudyPlan) error {
	t, err := tableFor(plan.Period)
	if err != nil {
		return err
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (id, student_id, %[2]s, target_minutes, target_questions, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, %[2]s) DO UPDATE
		SET target_minutes = EXCLUDED.target_minutes,
		    target_questions = EXCLUDED.target_questions,
		    note = EXCLUDED.note,
		    updated_at = now()
		RETURNING id, created_at, updated_at
	`, t.name, t.dateField)

	err = r.QueryRow(ctx, query,
		plan.ID,
		plan.StudentID,
		plan.StartsOn,
		plan.TargetMinutes,
		plan.TargetQuestions,
		plan.Note,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert %s plan: %w", plan.Period, err)
	}

	return nil
}

// ListByStudent получает планы ученика, начинающиеся не раньше from
func (r *StudyPlanRepository) ListByStudent(ctx context.Context, studentID uuid.UUID, period model.PlanPeriod, from time.Time) ([]*model.StudyPlan, error) {
	t, err := tableFor(period)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, student_id, %[2]s, target_minutes, target_questions, note, created_at, updated_at
		FROM %[1]s
		WHERE student_id = $1 AND %[2]s >= $2
		ORDER BY %[2]s DESC
	`, t.name, t.dateField)

	rows, err := r.Query(ctx, query, studentID, from)
	if err != nil {
		return nil, fmt.Errorf("list %s plans: %w", period, err)
	}
	defer rows.Close()

	var plans []*model.StudyPlan
	for rows.Next() {
		p := model.StudyPlan{Period: period}
		err := rows.Scan(
			&p.ID,
			&p.StudentID,
			&p.StartsOn,
			&p.TargetMinutes,
			&p.TargetQuestions,
			&p.Note,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan %s plan: %w", period, err)
		}
		plans = append(plans, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s plans: %w", period, err)
	}

	return plans, nil
}

// Delete удаляет план ученика на дату
func (r *StudyPlanRepository) Delete(ctx context.Context, studentID uuid.UUID, period model.PlanPeriod, startsOn time.Time) error {
	t, err := tableFor(period)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE student_id = $1 AND %s = $2`, t.name, t.dateField)
	affected, err := r.ExecAffected(ctx, query, studentID, startsOn)
	if err != nil {
		return fmt.Errorf("delete %s plan: %w", period, err)
	}

	if affected == 0 {
		return fmt.Errorf("delete %s plan: %w", period, base.ErrNoRowsAffected)
	}

	return nil
}
