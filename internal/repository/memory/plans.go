package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

type studyPlanRepo struct{ s *Store }

func (r *studyPlanRepo) find(studentID uuid.UUID, period model.PlanPeriod, startsOn time.Time) (model.StudyPlan, bool) {
	for _, p := range r.s.db.plans {
		if p.StudentID == studentID && p.Period == period && p.StartsOn.Equal(startsOn) {
			return p, true
		}
	}
	return model.StudyPlan{}, false
}

func (r *studyPlanRepo) Upsert(_ context.Context, plan *model.StudyPlan) error {
	if !plan.Period.Valid() {
		return fmt.Errorf("unknown plan period %q", plan.Period)
	}

	defer r.s.write()()

	now := r.s.db.now()
	if existing, ok := r.find(plan.StudentID, plan.Period, plan.StartsOn); ok {
		plan.ID = existing.ID
		plan.CreatedAt = existing.CreatedAt
	} else {
		if plan.ID == uuid.Nil {
			plan.ID = uuid.New()
		}
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	r.s.db.plans[plan.ID] = *plan
	return nil
}

func (r *studyPlanRepo) ListByStudent(_ context.Context, studentID uuid.UUID, period model.PlanPeriod, from time.Time) ([]*model.StudyPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*model.StudyPlan
	for _, p := range r.s.db.plans {
		if p.StudentID == studentID && p.Period == period && !p.StartsOn.Before(from) {
			p := p
			result = append(result, &p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsOn.After(result[j].StartsOn) })
	return result, nil
}

func (r *studyPlanRepo) Delete(_ context.Context, studentID uuid.UUID, period model.PlanPeriod, startsOn time.Time) error {
	defer r.s.write()()

	existing, ok := r.find(studentID, period, startsOn)
	if !ok {
		return fmt.Errorf("delete %s plan: %w", period, base.ErrNoRowsAffected)
	}
	delete(r.s.db.plans, existing.ID)
	return nil
}
