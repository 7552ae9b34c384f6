package model

import (
	"time"

	"github.com/google/uuid"
)

type RequestType string

const (
	RequestTypeConnect    RequestType = "connect"
	RequestTypeDisconnect RequestType = "disconnect"
)

type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalRejected     ApprovalStatus = "rejected"
	ApprovalDisconnected ApprovalStatus = "disconnected"
)

// Connection is a student_teachers row: the request/approval record
// tying a student to a teacher.
type Connection struct {
	ID             uuid.UUID      `json:"id"`
	StudentID      uuid.UUID      `json:"student_id"`
	TeacherID      uuid.UUID      `json:"teacher_id"`
	RequestType    RequestType    `json:"request_type"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at"`

	Teacher *Teacher `json:"teacher,omitempty"`
	Student *Student `json:"student,omitempty"`
}

// IsPendingConnect checks if the student is waiting for the teacher to accept
func (c *Connection) IsPendingConnect() bool {
	return c.RequestType == RequestTypeConnect && c.ApprovalStatus == ApprovalPending
}

// IsPendingDisconnect checks if the student asked to leave and the teacher has not answered yet
func (c *Connection) IsPendingDisconnect() bool {
	return c.RequestType == RequestTypeDisconnect && c.ApprovalStatus == ApprovalPending
}

// IsConnected checks if the pair is currently connected
func (c *Connection) IsConnected() bool {
	return c.ApprovalStatus == ApprovalApproved && c.IsActive
}

// IsRejectedButActive reports the tolerated anomaly of a rejected row still flagged active.
func (c *Connection) IsRejectedButActive() bool {
	return c.ApprovalStatus == ApprovalRejected && c.IsActive
}

// IsPending checks both pending request types
func (c *Connection) IsPending() bool {
	return c.ApprovalStatus == ApprovalPending
}
