package api

import (
	"net/http"

	"github.com/Freeeeeet/studytrack/internal/apperrors"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type adminRequest struct {
	InstitutionID uuid.UUID `json:"institution_id" binding:"required"`
	AdminUsername string    `json:"admin_username"`
}

type addTeacherRequest struct {
	adminRequest
	TeacherData                 service.MemberData `json:"teacher_data" binding:"required"`
	DeactivateOtherInstitutions bool               `json:"deactivate_other_institutions"`
}

type addStudentRequest struct {
	adminRequest
	StudentData                 service.MemberData `json:"student_data" binding:"required"`
	DeactivateOtherInstitutions bool               `json:"deactivate_other_institutions"`
}

type updateUserRequest struct {
	adminRequest
	UserID   uuid.UUID  `json:"user_id" binding:"required"`
	UserType model.Role `json:"user_type" binding:"required"`
	Name     string     `json:"name" binding:"required"`
	Email    string     `json:"email" binding:"required,email"`
	Branch   *string    `json:"branch"`
	Grade    *string    `json:"grade"`
	School   *string    `json:"school"`
	Phone    *string    `json:"phone"`
}

type deactivateMemberRequest struct {
	adminRequest
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type memberPlanRequest struct {
	adminRequest
	Role      model.Role         `json:"role" binding:"required"`
	Data      service.MemberData `json:"data" binding:"required"`
	PlanToken string             `json:"plan_token"`
}

type activityRequest struct {
	adminRequest
	Limit int `json:"limit"`
}

// confirmationResponse is the legacy answer when the user is active elsewhere
type confirmationResponse struct {
	RequiresConfirmation bool                       `json:"requires_confirmation"`
	Message              string                     `json:"message"`
	OtherInstitutions    []service.OtherInstitution `json:"other_institutions"`
}

// caller определяет, от чьего имени вызвана админ-функция
func (h *Handler) caller(c *gin.Context, req adminRequest) (service.Caller, bool) {
	if p := principalFrom(c); p != nil {
		return p.Caller(), true
	}
	if h.allowAdminUsername && req.AdminUsername != "" {
		return service.Caller{AdminUsername: req.AdminUsername}, true
	}

	h.respondError(c, apperrors.New(apperrors.ErrUnauthenticated, "authentication required"))
	return service.Caller{}, false
}

func (h *Handler) respondAdd(c *gin.Context, result *service.AddMemberResult) {
	if result.RequiresConfirmation {
		c.JSON(http.StatusOK, confirmationResponse{
			RequiresConfirmation: true,
			Message:              result.Message,
			OtherInstitutions:    result.OtherInstitutions,
		})
		return
	}
	respondData(c, http.StatusOK, result)
}

func (h *Handler) addTeacher(c *gin.Context) {
	var req addTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	caller, ok := h.caller(c, req.adminRequest)
	if !ok {
		return
	}

	result, err := h.members.AddTeacherToInstitution(c.Request.Context(), caller, req.InstitutionID, req.TeacherData, req.DeactivateOtherInstitutions)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondAdd(c, result)
}

func (h *Handler) addStudent(c *gin.Context) {
	var req addStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	caller, ok := h.caller(c, req.adminRequest)
	if !ok {
		return
	}

	result, err := h.members.AddStudentToInstitution(c.Request.Context(), caller, req.InstitutionID, req.StudentData, req.DeactivateOtherInstitutions)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondAdd(c, result)
}

func (h *Handler) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	caller, ok := h.caller(c, req.adminRequest)
	if !ok {
		return
	}

	err := h.members.UpdateUser(c.Request.Context(), caller, service.UpdateUserRequest{
		InstitutionID: req.InstitutionID,
		UserID:        req.UserID,
		UserType:      req.UserType,
		Name:          req.Name,
		Email:         req.Email,
		Branch:        req.Branch,
		Grade:         req.Grade,
		School:        req.School,
		Phone:         req.Phone,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"message": "User updated"})
}

func (h *Handler) deactivateMember(c *gin.Context) {
	var req deactivateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	caller, ok := h.caller(c, req.adminRequest)
	if !ok {
		return
	}

	if err := h.members.DeactivateMember(c.Request.Context(), caller, req.InstitutionID, req.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"message": "Member deactivated"})
}

func (h *Handler) planMember(c *gin.Context) {
	var req memberPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	caller, ok := h.caller(c, req.adminRequest)
	if !ok {
		return
	}

	plan, err := h.members.PlanAddMember(c.Request.Context(), caller, service.AddMemberRequest{
		InstitutionID: req.InstitutionID,
		Role:          req.Role,
		Data:          req.Data,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, plan)
}

func (h *Handler) commitMember(c *gin.Context) {
	var req memberPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.PlanToken == "" {
		h.respondError(c, apperrors.Validation("plan_token", "is required"))
		return
	}
	caller, ok := h.caller(c, req.adminRequest)
	if !ok {
		return
	}

	result, err := h.members.CommitAddMember(c.Request.Context(), caller, req.PlanToken, service.AddMemberRequest{
		InstitutionID: req.InstitutionID,
		Role:          req.Role,
		Data:          req.Data,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

func (h *Handler) listActivity(c *gin.Context) {
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	caller, ok := h.caller(c, req.adminRequest)
	if !ok {
		return
	}

	entries, err := h.members.ListActivity(c.Request.Context(), caller, req.InstitutionID, req.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, entries)
}
