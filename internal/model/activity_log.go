package model

import (
	"time"

	"github.com/google/uuid"
)

// Activity actions written to admin_activity_logs
const (
	ActivityTeacherAdded        = "teacher_added"
	ActivityStudentAdded        = "student_added"
	ActivityMemberReactivated   = "member_reactivated"
	ActivityMemberDeactivated   = "member_deactivated"
	ActivityMembershipsMoved    = "memberships_deactivated"
	ActivityUserUpdated         = "user_updated"
	ActivityInstitutionRepaired = "institution_id_repaired"
	ActivityOrphanDetected      = "orphan_profile_detected"
)

// ActivityLog is an append-only audit row.
type ActivityLog struct {
	ID            uuid.UUID         `json:"id"`
	InstitutionID *uuid.UUID        `json:"institution_id"`
	Actor         string            `json:"actor"`
	Action        string            `json:"action"`
	TargetUserID  *uuid.UUID        `json:"target_user_id"`
	Details       map[string]string `json:"details"`
	CreatedAt     time.Time         `json:"created_at"`
}
