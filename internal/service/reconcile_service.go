package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcileReport summarizes one reconcile pass.
type ReconcileReport struct {
	Checked  int
	Repaired int
	Orphans  []uuid.UUID
}

// ReconcileService keeps teachers/students.institution_id equal to the active membership.
type ReconcileService struct {
	store    repository.Store
	recorder Recorder
	logger   *zap.Logger
}

func NewReconcileService(store repository.Store, recorder Recorder, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{
		store:    store,
		recorder: recorder,
		logger:   logger,
	}
}

// Run сверяет денормализованный institution_id с активными членствами.
// Каждый профиль чинится в своей транзакции по свежему списку членств.
func (s *ReconcileService) Run(ctx context.Context) (*ReconcileReport, error) {
	teachers, err := s.store.Teachers().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	students, err := s.store.Students().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	report := &ReconcileReport{}
	var entries []*model.ActivityLog

	for _, t := range teachers {
		entry, err := s.repair(ctx, t.ID, teacherProfile)
		if err != nil {
			return nil, fmt.Errorf("repair teacher %s: %w", t.ID, err)
		}
		report.add(t.ID, entry)
		entries = appendEntry(entries, entry)
	}

	for _, st := range students {
		entry, err := s.repair(ctx, st.ID, studentProfile)
		if err != nil {
			return nil, fmt.Errorf("repair student %s: %w", st.ID, err)
		}
		report.add(st.ID, entry)
		entries = appendEntry(entries, entry)
	}

	if s.recorder != nil {
		for _, e := range entries {
			s.recorder.Record(ctx, e)
		}
	}

	s.logger.Info("Reconcile completed",
		zap.Int("checked", report.Checked),
		zap.Int("repaired", report.Repaired),
		zap.Int("orphans", len(report.Orphans)),
	)

	return report, nil
}

// profileAccess читает и пишет institution_id профиля одной роли
type profileAccess struct {
	current func(ctx context.Context, tx repository.Store, id uuid.UUID) (found bool, inst *uuid.UUID, err error)
	set     func(ctx context.Context, tx repository.Store, id uuid.UUID, inst *uuid.UUID) error
}

var teacherProfile = profileAccess{
	current: func(ctx context.Context, tx repository.Store, id uuid.UUID) (bool, *uuid.UUID, error) {
		if err := tx.Teachers().Lock(ctx, id); err != nil {
			return false, nil, err
		}
		t, err := tx.Teachers().GetByID(ctx, id)
		if err != nil || t == nil {
			return false, nil, err
		}
		return true, t.InstitutionID, nil
	},
	set: func(ctx context.Context, tx repository.Store, id uuid.UUID, inst *uuid.UUID) error {
		return tx.Teachers().SetInstitution(ctx, id, inst)
	},
}

var studentProfile = profileAccess{
	current: func(ctx context.Context, tx repository.Store, id uuid.UUID) (bool, *uuid.UUID, error) {
		if err := tx.Students().Lock(ctx, id); err != nil {
			return false, nil, err
		}
		st, err := tx.Students().GetByID(ctx, id)
		if err != nil || st == nil {
			return false, nil, err
		}
		return true, st.InstitutionID, nil
	},
	set: func(ctx context.Context, tx repository.Store, id uuid.UUID, inst *uuid.UUID) error {
		return tx.Students().SetInstitution(ctx, id, inst)
	},
}

// repair возвращает запись журнала, если institution_id пришлось исправить, иначе nil
func (s *ReconcileService) repair(ctx context.Context, userID uuid.UUID, profile profileAccess) (*model.ActivityLog, error) {
	var entry *model.ActivityLog

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		found, current, err := profile.current(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		if !found {
			return nil
		}

		active, err := tx.Memberships().ListActiveByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("list active memberships: %w", err)
		}
		var want *uuid.UUID
		if len(active) > 0 {
			want = &active[0].InstitutionID
		}
		if sameInstitution(current, want) {
			return nil
		}

		if err := profile.set(ctx, tx, userID, want); err != nil {
			return err
		}

		if want == nil {
			entry = s.entry(current, userID, model.ActivityOrphanDetected)
		} else {
			entry = s.entry(want, userID, model.ActivityInstitutionRepaired)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *ReconcileReport) add(userID uuid.UUID, entry *model.ActivityLog) {
	r.Checked++
	if entry == nil {
		return
	}
	r.Repaired++
	if entry.Action == model.ActivityOrphanDetected {
		r.Orphans = append(r.Orphans, userID)
	}
}

func appendEntry(entries []*model.ActivityLog, entry *model.ActivityLog) []*model.ActivityLog {
	if entry == nil {
		return entries
	}
	return append(entries, entry)
}

func (s *ReconcileService) entry(institutionID *uuid.UUID, userID uuid.UUID, action string) *model.ActivityLog {
	return &model.ActivityLog{
		InstitutionID: institutionID,
		Actor:         "system:reconcile",
		Action:        action,
		TargetUserID:  &userID,
	}
}

func sameInstitution(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
