package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/Freeeeeet/studytrack/internal/repository/base"
	"github.com/google/uuid"
)

type connectionRepo struct{ s *Store }

func (r *connectionRepo) hasOtherPending(c *model.Connection) bool {
	for id, other := range r.s.db.connections {
		if id != c.ID && other.StudentID == c.StudentID && other.TeacherID == c.TeacherID &&
			other.ApprovalStatus == model.ApprovalPending {
			return true
		}
	}
	return false
}

func (r *connectionRepo) Create(_ context.Context, c *model.Connection) error {
	defer r.s.write()()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, ok := r.s.db.connections[c.ID]; ok {
		return fmt.Errorf("create connection: %w", repository.ErrDuplicate)
	}
	if c.ApprovalStatus == model.ApprovalPending && r.hasOtherPending(c) {
		return fmt.Errorf("create connection: pending request exists: %w", repository.ErrDuplicate)
	}
	c.CreatedAt = r.s.db.now()
	r.s.db.connections[c.ID] = *c
	return nil
}

func (r *connectionRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if c, ok := r.s.db.connections[id]; ok {
		return &c, nil
	}
	return nil, nil
}

// GetByIDForUpdate needs no row lock: WithTx already serializes transactions.
func (r *connectionRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	return r.GetByID(ctx, id)
}

// list returns matching rows newest first.
func (r *connectionRepo) list(match func(model.Connection) bool) []*model.Connection {
	var result []*model.Connection
	for _, c := range r.s.db.connections {
		if match(c) {
			c := c
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (r *connectionRepo) GetPending(_ context.Context, studentID, teacherID uuid.UUID) (*model.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	found := r.list(func(c model.Connection) bool {
		return c.StudentID == studentID && c.TeacherID == teacherID && c.ApprovalStatus == model.ApprovalPending
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func isLive(c model.Connection) bool {
	return c.IsActive && (c.ApprovalStatus == model.ApprovalApproved || c.ApprovalStatus == model.ApprovalPending)
}

func (r *connectionRepo) GetActive(_ context.Context, studentID, teacherID uuid.UUID) (*model.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	found := r.list(func(c model.Connection) bool {
		return c.StudentID == studentID && c.TeacherID == teacherID && isLive(c)
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (r *connectionRepo) ListPendingByTeacher(_ context.Context, teacherID uuid.UUID) ([]*model.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := r.list(func(c model.Connection) bool {
		return c.TeacherID == teacherID && c.ApprovalStatus == model.ApprovalPending
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *connectionRepo) ListByStudent(_ context.Context, studentID uuid.UUID) ([]*model.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.list(func(c model.Connection) bool { return c.StudentID == studentID }), nil
}

func (r *connectionRepo) ListActiveByTeacher(_ context.Context, teacherID uuid.UUID) ([]*model.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.list(func(c model.Connection) bool { return c.TeacherID == teacherID && isLive(c) }), nil
}

func (r *connectionRepo) UpdateState(_ context.Context, c *model.Connection) error {
	defer r.s.write()()

	cur, ok := r.s.db.connections[c.ID]
	if !ok {
		return fmt.Errorf("update connection state: %w", base.ErrNoRowsAffected)
	}
	if c.ApprovalStatus == model.ApprovalPending && r.hasOtherPending(&cur) {
		return fmt.Errorf("update connection state: pending request exists: %w", repository.ErrDuplicate)
	}
	now := r.s.db.now()
	cur.RequestType = c.RequestType
	cur.ApprovalStatus = c.ApprovalStatus
	cur.IsActive = c.IsActive
	cur.UpdatedAt = &now
	r.s.db.connections[c.ID] = cur
	c.UpdatedAt = &now
	return nil
}

func (r *connectionRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.s.write()()

	if _, ok := r.s.db.connections[id]; !ok {
		return fmt.Errorf("delete connection: %w", base.ErrNoRowsAffected)
	}
	delete(r.s.db.connections, id)
	return nil
}

type adminCredentialRepo struct{ s *Store }

func (r *adminCredentialRepo) Create(_ context.Context, cred *model.AdminCredential) error {
	defer r.s.write()()

	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}
	for _, other := range r.s.db.adminCreds {
		if other.Username == cred.Username {
			return fmt.Errorf("create admin credential: %w", repository.ErrDuplicate)
		}
	}
	cred.CreatedAt = r.s.db.now()
	r.s.db.adminCreds[cred.ID] = *cred
	return nil
}

func (r *adminCredentialRepo) GetByUsername(_ context.Context, username string) (*model.AdminCredential, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, cred := range r.s.db.adminCreds {
		if cred.Username == username {
			return &cred, nil
		}
	}
	return nil, nil
}

func (r *adminCredentialRepo) HasActive(_ context.Context, institutionID uuid.UUID, username, email string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, cred := range r.s.db.adminCreds {
		if cred.InstitutionID != institutionID || !cred.IsActive {
			continue
		}
		if (username != "" && cred.Username == username) || (email != "" && strings.EqualFold(cred.Email, email)) {
			return true, nil
		}
	}
	return false, nil
}

type activityLogRepo struct{ s *Store }

func (r *activityLogRepo) Insert(_ context.Context, entry *model.ActivityLog) error {
	defer r.s.write()()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.s.db.now()
	r.s.db.activityLogs = append(r.s.db.activityLogs, *entry)
	return nil
}

func (r *activityLogRepo) ListByInstitution(_ context.Context, institutionID uuid.UUID, limit int) ([]*model.ActivityLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*model.ActivityLog
	for i := len(r.s.db.activityLogs) - 1; i >= 0 && len(result) < limit; i-- {
		e := r.s.db.activityLogs[i]
		if e.InstitutionID != nil && *e.InstitutionID == institutionID {
			result = append(result, &e)
		}
	}
	return result, nil
}

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	defer r.s.write()()

	if _, ok := r.s.db.revoked[tokenID]; !ok {
		r.s.db.revoked[tokenID] = expiresAt
	}
	return nil
}

func (r *sessionRepo) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.db.revoked[tokenID]
	return ok, nil
}

type studyLogRepo struct{ s *Store }

func (r *studyLogRepo) Create(_ context.Context, entry *model.StudyLog) error {
	defer r.s.write()()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = r.s.db.now()
	r.s.db.studyLogs = append(r.s.db.studyLogs, *entry)
	return nil
}

func (r *studyLogRepo) ListByStudent(_ context.Context, studentID uuid.UUID, since time.Time) ([]*model.StudyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*model.StudyLog
	for _, e := range r.s.db.studyLogs {
		if e.StudentID == studentID && !e.StudiedAt.Before(since) {
			e := e
			result = append(result, &e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].StudiedAt.After(result[j].StudiedAt) })
	return result, nil
}

type messageRepo struct{ s *Store }

func (r *messageRepo) Create(_ context.Context, msg *model.Message) error {
	defer r.s.write()()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = r.s.db.now()
	r.s.db.messages = append(r.s.db.messages, *msg)
	return nil
}

func (r *messageRepo) ListConversation(_ context.Context, a, b uuid.UUID, limit int) ([]*model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*model.Message
	for i := len(r.s.db.messages) - 1; i >= 0 && len(result) < limit; i-- {
		m := r.s.db.messages[i]
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			result = append(result, &m)
		}
	}
	return result, nil
}

func (r *messageRepo) MarkRead(_ context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	defer r.s.write()()

	var affected int64
	for i := range r.s.db.messages {
		m := &r.s.db.messages[i]
		if m.RecipientID == recipientID && m.SenderID == senderID && m.ReadAt == nil {
			now := r.s.db.now()
			m.ReadAt = &now
			affected++
		}
	}
	return affected, nil
}
