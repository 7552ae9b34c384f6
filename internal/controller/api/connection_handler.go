package api

import (
	"context"
	"net/http"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type connectRequest struct {
	TeacherCode string `json:"teacher_code" binding:"required"`
}

func (h *Handler) connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	conn, err := h.connections.ConnectToTeacher(c.Request.Context(), principalFrom(c).UserID, req.TeacherCode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, conn)
}

func (h *Handler) studentTeachers(c *gin.Context) {
	groups, err := h.connections.GetStudentTeachers(c.Request.Context(), principalFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, groups)
}

func (h *Handler) pendingRequests(c *gin.Context) {
	list, err := h.connections.GetPendingRequests(c.Request.Context(), principalFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, list)
}

func (h *Handler) teacherStudents(c *gin.Context) {
	list, err := h.connections.GetTeacherStudents(c.Request.Context(), principalFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, list)
}

type connectionAction func(ctx context.Context, userID, connectionID uuid.UUID) (*model.Connection, error)

// transition выполняет действие над связью от имени текущего пользователя
func (h *Handler) transition(c *gin.Context, action connectionAction) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	conn, err := action(c.Request.Context(), principalFrom(c).UserID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, conn)
}

func (h *Handler) approve(c *gin.Context) {
	h.transition(c, h.connections.ApproveStudentRequest)
}

func (h *Handler) reject(c *gin.Context) {
	h.transition(c, h.connections.RejectStudentRequest)
}

func (h *Handler) requestDisconnection(c *gin.Context) {
	h.transition(c, h.connections.RequestDisconnection)
}

func (h *Handler) approveDisconnection(c *gin.Context) {
	h.transition(c, h.connections.ApproveDisconnectionRequest)
}

func (h *Handler) rejectDisconnection(c *gin.Context) {
	h.transition(c, h.connections.RejectDisconnectionRequest)
}

func (h *Handler) removeStudent(c *gin.Context) {
	h.transition(c, h.connections.DisconnectStudent)
}

func (h *Handler) cancelRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.connections.CancelPendingRequest(c.Request.Context(), principalFrom(c).UserID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
