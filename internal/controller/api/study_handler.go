package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type sendMessageRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
	Body        string    `json:"body" binding:"required"`
}

// sinceParam читает ?since=RFC3339, пустое значение означает окно по умолчанию
func sinceParam(c *gin.Context) (time.Time, error) {
	raw := c.Query("since")
	if raw == "" {
		return time.Time{}, nil
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.Validation("since", "must be an RFC3339 timestamp")
	}
	return since, nil
}

func (h *Handler) logStudy(c *gin.Context) {
	var req service.StudyLogInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	entry, err := h.study.LogStudy(c.Request.Context(), principalFrom(c).UserID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, entry)
}

func (h *Handler) ownStudyLogs(c *gin.Context) {
	since, err := sinceParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	logs, err := h.study.ListOwnLogs(c.Request.Context(), principalFrom(c).UserID, since)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, logs)
}

func (h *Handler) studentStudyLogs(c *gin.Context) {
	studentID, ok := pathID(c)
	if !ok {
		return
	}
	since, err := sinceParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	logs, err := h.study.ListStudentLogs(c.Request.Context(), principalFrom(c).UserID, studentID, since)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, logs)
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.study.SendMessage(c.Request.Context(), principalFrom(c).UserID, req.RecipientID, req.Body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusCreated, msg)
}

func (h *Handler) conversation(c *gin.Context) {
	peerID, ok := pathID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := h.study.Conversation(c.Request.Context(), principalFrom(c).UserID, peerID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, messages)
}

type studyPlanRequest struct {
	Period          string `json:"period" binding:"required,oneof=daily weekly"`
	Date            string `json:"date"`
	TargetMinutes   int    `json:"target_minutes" binding:"min=0"`
	TargetQuestions int    `json:"target_questions" binding:"min=0"`
	Note            string `json:"note"`
}

// dateValue разбирает дату в формате YYYY-MM-DD, пустая строка означает сегодня
func dateValue(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperrors.Validation("date", "must be a YYYY-MM-DD date")
	}
	return date, nil
}

// periodParam читает ?period=, по умолчанию daily
func periodParam(c *gin.Context) model.PlanPeriod {
	return model.PlanPeriod(c.DefaultQuery("period", string(model.PlanDaily)))
}

func (h *Handler) saveStudyPlan(c *gin.Context) {
	var req studyPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	date, err := dateValue(req.Date)
	if err != nil {
		h.respondError(c, err)
		return
	}

	plan, err := h.study.SaveStudyPlan(c.Request.Context(), principalFrom(c).UserID, service.StudyPlanInput{
		Period:          model.PlanPeriod(req.Period),
		Date:            date,
		TargetMinutes:   req.TargetMinutes,
		TargetQuestions: req.TargetQuestions,
		Note:            req.Note,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, plan)
}

func (h *Handler) deleteStudyPlan(c *gin.Context) {
	date, err := dateValue(c.Param("date"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	err = h.study.DeleteStudyPlan(c.Request.Context(), principalFrom(c).UserID, model.PlanPeriod(c.Param("period")), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"message": "Plan deleted"})
}

func (h *Handler) ownStudyPlans(c *gin.Context) {
	since, err := sinceParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	plans, err := h.study.ListOwnPlans(c.Request.Context(), principalFrom(c).UserID, periodParam(c), since)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, plans)
}

func (h *Handler) studentStudyPlans(c *gin.Context) {
	studentID, ok := pathID(c)
	if !ok {
		return
	}
	since, err := sinceParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	plans, err := h.study.ListStudentPlans(c.Request.Context(), principalFrom(c).UserID, studentID, periodParam(c), since)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, plans)
}
