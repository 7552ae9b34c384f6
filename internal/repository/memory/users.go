package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

type userRepo struct{ s *Store }

func (r *userRepo) checkUnique(u *model.User) error {
	for id, other := range r.s.db.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return fmt.Errorf("user email %q: %w", u.Email, repository.ErrDuplicate)
		}
		if u.TelegramID != nil && other.TelegramID != nil && *u.TelegramID == *other.TelegramID {
			return fmt.Errorf("user telegram id: %w", repository.ErrDuplicate)
		}
	}
	return nil
}

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	defer r.s.write()()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, ok := r.s.db.users[user.ID]; ok {
		return fmt.Errorf("create user: %w", repository.ErrDuplicate)
	}
	if err := r.checkUnique(user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	user.CreatedAt = r.s.db.now()
	r.s.db.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if u, ok := r.s.db.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepo) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.db.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepo) Update(_ context.Context, user *model.User) error {
	defer r.s.write()()

	cur, ok := r.s.db.users[user.ID]
	if !ok {
		return fmt.Errorf("update user: %w", base.ErrNoRowsAffected)
	}
	if err := r.checkUnique(user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	cur.Name = user.Name
	cur.Email = user.Email
	cur.PasswordHash = user.PasswordHash
	r.s.db.users[user.ID] = cur
	return nil
}

func (r *userRepo) SetTelegramID(_ context.Context, id uuid.UUID, telegramID int64) error {
	defer r.s.write()()

	cur, ok := r.s.db.users[id]
	if !ok {
		return fmt.Errorf("set telegram id: %w", base.ErrNoRowsAffected)
	}
	cur.TelegramID = &telegramID
	if err := r.checkUnique(&cur); err != nil {
		return fmt.Errorf("set telegram id: %w", err)
	}
	r.s.db.users[id] = cur
	return nil
}

type institutionRepo struct{ s *Store }

func (r *institutionRepo) Create(_ context.Context, inst *model.Institution) error {
	defer r.s.write()()

	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	if _, ok := r.s.db.institutions[inst.ID]; ok {
		return fmt.Errorf("create institution: %w", repository.ErrDuplicate)
	}
	if inst.PaymentStatus == "" {
		inst.PaymentStatus = model.PaymentStatusPending
	}
	inst.CreatedAt = r.s.db.now()
	r.s.db.institutions[inst.ID] = *inst
	return nil
}

func (r *institutionRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Institution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if inst, ok := r.s.db.institutions[id]; ok {
		return &inst, nil
	}
	return nil, nil
}

func (r *institutionRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*model.Institution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*model.Institution
	for _, id := range ids {
		if inst, ok := r.s.db.institutions[id]; ok {
			result = append(result, &inst)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Lock is a no-op: memory transactions are already serialized.
func (r *institutionRepo) Lock(_ context.Context, _ uuid.UUID) error {
	return nil
}
