package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

type membershipRepo struct{ s *Store }

func (r *membershipRepo) hasOtherActive(userID, exceptID uuid.UUID) bool {
	for id, m := range r.s.db.memberships {
		if id != exceptID && m.UserID == userID && m.IsActive {
			return true
		}
	}
	return false
}

func (r *membershipRepo) Create(_ context.Context, m *model.Membership) error {
	defer r.s.write()()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	for _, other := range r.s.db.memberships {
		if other.UserID == m.UserID && other.InstitutionID == m.InstitutionID {
			return fmt.Errorf("create membership: %w", repository.ErrDuplicate)
		}
	}
	if m.IsActive && r.hasOtherActive(m.UserID, m.ID) {
		return fmt.Errorf("create membership: second active membership: %w", repository.ErrDuplicate)
	}
	m.JoinedAt = r.s.db.now()
	r.s.db.memberships[m.ID] = *m
	return nil
}

func (r *membershipRepo) GetByUserAndInstitution(_ context.Context, userID, institutionID uuid.UUID) (*model.Membership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, m := range r.s.db.memberships {
		if m.UserID == userID && m.InstitutionID == institutionID {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *membershipRepo) list(match func(model.Membership) bool) []*model.Membership {
	var result []*model.Membership
	for _, m := range r.s.db.memberships {
		if match(m) {
			m := m
			result = append(result, &m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result
}

func (r *membershipRepo) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]*model.Membership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := r.list(func(m model.Membership) bool { return m.UserID == userID && m.IsActive })
	sort.SliceStable(result, func(i, j int) bool { return result[i].JoinedAt.After(result[j].JoinedAt) })
	return result, nil
}

func (r *membershipRepo) CountActiveByRole(_ context.Context, institutionID uuid.UUID, role model.Role) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, m := range r.s.db.memberships {
		if m.InstitutionID != institutionID || !m.IsActive {
			continue
		}
		if u, ok := r.s.db.users[m.UserID]; ok && u.Role == role {
			count++
		}
	}
	return count, nil
}

func (r *membershipRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	defer r.s.write()()

	m, ok := r.s.db.memberships[id]
	if !ok {
		return fmt.Errorf("set membership active: %w", base.ErrNoRowsAffected)
	}
	if active && r.hasOtherActive(m.UserID, id) {
		return fmt.Errorf("set membership active: second active membership: %w", repository.ErrDuplicate)
	}
	now := r.s.db.now()
	m.IsActive = active
	m.UpdatedAt = &now
	r.s.db.memberships[id] = m
	return nil
}

func (r *membershipRepo) DeactivateOthers(_ context.Context, userID, keepInstitutionID uuid.UUID) (int64, error) {
	defer r.s.write()()

	var affected int64
	for id, m := range r.s.db.memberships {
		if m.UserID != userID || m.InstitutionID == keepInstitutionID || !m.IsActive {
			continue
		}
		now := r.s.db.now()
		m.IsActive = false
		m.UpdatedAt = &now
		r.s.db.memberships[id] = m
		affected++
	}
	return affected, nil
}

type teacherRepo struct{ s *Store }

func (r *teacherRepo) withUser(t model.Teacher) *model.Teacher {
	if u, ok := r.s.db.users[t.ID]; ok {
		t.Name = u.Name
		t.Email = u.Email
	}
	return &t
}

func (r *teacherRepo) Create(_ context.Context, t *model.Teacher) error {
	defer r.s.write()()

	if _, ok := r.s.db.teachers[t.ID]; ok {
		return fmt.Errorf("create teacher: %w", repository.ErrDuplicate)
	}
	for _, other := range r.s.db.teachers {
		if t.TeacherCode != "" && other.TeacherCode == t.TeacherCode {
			return fmt.Errorf("create teacher: code %s: %w", t.TeacherCode, repository.ErrDuplicate)
		}
	}
	r.s.db.teachers[t.ID] = *t
	return nil
}

func (r *teacherRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Teacher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if t, ok := r.s.db.teachers[id]; ok {
		return r.withUser(t), nil
	}
	return nil, nil
}

func (r *teacherRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*model.Teacher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*model.Teacher
	for _, id := range ids {
		if t, ok := r.s.db.teachers[id]; ok {
			result = append(result, r.withUser(t))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *teacherRepo) GetByCode(_ context.Context, code string) (*model.Teacher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.db.teachers {
		if t.TeacherCode == code {
			return r.withUser(t), nil
		}
	}
	return nil, nil
}

func (r *teacherRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	t, err := r.GetByCode(ctx, code)
	return t != nil, err
}

func (r *teacherRepo) Update(_ context.Context, t *model.Teacher) error {
	defer r.s.write()()

	cur, ok := r.s.db.teachers[t.ID]
	if !ok {
		return fmt.Errorf("update teacher: %w", base.ErrNoRowsAffected)
	}
	cur.Branch = t.Branch
	cur.Phone = t.Phone
	r.s.db.teachers[t.ID] = cur
	return nil
}

func (r *teacherRepo) SetInstitution(_ context.Context, id uuid.UUID, institutionID *uuid.UUID) error {
	defer r.s.write()()

	cur, ok := r.s.db.teachers[id]
	if !ok {
		return fmt.Errorf("set teacher institution: %w", base.ErrNoRowsAffected)
	}
	cur.InstitutionID = institutionID
	r.s.db.teachers[id] = cur
	return nil
}

func (r *teacherRepo) List(_ context.Context) ([]*model.Teacher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*model.Teacher, 0, len(r.s.db.teachers))
	for _, t := range r.s.db.teachers {
		result = append(result, r.withUser(t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type studentRepo struct{ s *Store }

func (r *studentRepo) withUser(st model.Student) *model.Student {
	if u, ok := r.s.db.users[st.ID]; ok {
		st.Name = u.Name
		st.Email = u.Email
	}
	return &st
}

func (r *studentRepo) Create(_ context.Context, st *model.Student) error {
	defer r.s.write()()

	if _, ok := r.s.db.students[st.ID]; ok {
		return fmt.Errorf("create student: %w", repository.ErrDuplicate)
	}
	r.s.db.students[st.ID] = *st
	return nil
}

func (r *studentRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if st, ok := r.s.db.students[id]; ok {
		return r.withUser(st), nil
	}
	return nil, nil
}

func (r *studentRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*model.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*model.Student
	for _, id := range ids {
		if st, ok := r.s.db.students[id]; ok {
			result = append(result, r.withUser(st))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *studentRepo) Update(_ context.Context, st *model.Student) error {
	defer r.s.write()()

	cur, ok := r.s.db.students[st.ID]
	if !ok {
		return fmt.Errorf("update student: %w", base.ErrNoRowsAffected)
	}
	cur.School = st.School
	cur.Grade = st.Grade
	cur.Phone = st.Phone
	r.s.db.students[st.ID] = cur
	return nil
}

func (r *studentRepo) SetInstitution(_ context.Context, id uuid.UUID, institutionID *uuid.UUID) error {
	defer r.s.write()()

	cur, ok := r.s.db.students[id]
	if !ok {
		return fmt.Errorf("set student institution: %w", base.ErrNoRowsAffected)
	}
	cur.InstitutionID = institutionID
	r.s.db.students[id] = cur
	return nil
}

func (r *studentRepo) List(_ context.Context) ([]*model.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*model.Student, 0, len(r.s.db.students))
	for _, st := range r.s.db.students {
		result = append(result, r.withUser(st))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Lock is a no-op: WithTx already serializes transactions.
func (r *teacherRepo) Lock(_ context.Context, _ uuid.UUID) error {
	return nil
}

func (r *studentRepo) Lock(_ context.Context, _ uuid.UUID) error {
	return nil
}
