package api

import (
	"net/http"

	"github.com/Freeeeeet/studytrack/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler обслуживает HTTP API поверх сервисов
type Handler struct {
	auth        *service.AuthService
	members     *service.MembershipService
	connections *service.ConnectionService
	study       *service.StudyService
	logger      *zap.Logger

	// allowAdminUsername разрешает admin_username в теле вместо токена
	allowAdminUsername bool
}

type Services struct {
	Auth        *service.AuthService
	Members     *service.MembershipService
	Connections *service.ConnectionService
	Study       *service.StudyService
}

func NewHandler(services Services, allowAdminUsername bool, logger *zap.Logger) *Handler {
	return &Handler{
		auth:               services.Auth,
		members:            services.Members,
		connections:        services.Connections,
		study:              services.Study,
		logger:             logger,
		allowAdminUsername: allowAdminUsername,
	}
}

// Router собирает gin-движок со всеми маршрутами
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), AccessLog(h.logger), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/auth/v1")
	{
		authGroup.POST("/token", h.signIn)
		authGroup.POST("/admin-token", h.signInAdmin)
		authGroup.POST("/logout", h.authenticate(true), h.signOut)
		authGroup.GET("/user", h.authenticate(true), h.currentUser)
	}

	functions := router.Group("/functions/v1", h.authenticate(false))
	{
		functions.POST("/institution-admin-add-teacher", h.addTeacher)
		functions.POST("/institution-admin-add-student", h.addStudent)
		functions.POST("/institution-admin-update-user", h.updateUser)
		functions.POST("/institution-admin-deactivate-member", h.deactivateMember)
		functions.POST("/institution-admin-plan-member", h.planMember)
		functions.POST("/institution-admin-commit-member", h.commitMember)
		functions.POST("/institution-admin-activity", h.listActivity)
	}

	rest := router.Group("/rest/v1", h.authenticate(true))
	{
		connections := rest.Group("/connections")
		{
			connections.POST("", h.connect)
			connections.GET("", h.studentTeachers)
			connections.GET("/pending", h.pendingRequests)
			connections.GET("/students", h.teacherStudents)
			connections.POST("/:id/approve", h.approve)
			connections.POST("/:id/reject", h.reject)
			connections.POST("/:id/disconnect", h.requestDisconnection)
			connections.POST("/:id/approve-disconnect", h.approveDisconnection)
			connections.POST("/:id/reject-disconnect", h.rejectDisconnection)
			connections.POST("/:id/remove", h.removeStudent)
			connections.DELETE("/:id", h.cancelRequest)
		}

		rest.POST("/study-logs", h.logStudy)
		rest.GET("/study-logs", h.ownStudyLogs)
		rest.GET("/students/:id/study-logs", h.studentStudyLogs)
		rest.PUT("/study-plans", h.saveStudyPlan)
		rest.GET("/study-plans", h.ownStudyPlans)
		rest.DELETE("/study-plans/:period/:date", h.deleteStudyPlan)
		rest.GET("/students/:id/study-plans", h.studentStudyPlans)
		rest.POST("/messages", h.sendMessage)
		rest.GET("/messages/:id", h.conversation)
	}

	return router
}

// pathID читает uuid из параметра :id
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid id",
			Code:  CodeValidation,
			Field: "id",
		})
		return uuid.Nil, false
	}
	return id, true
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"data": data})
}
