package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/studytrack/internal/auth"
	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository/memory"
	"github.com/Freeeeeet/studytrack/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	store  *memory.Store
	router *gin.Engine
}

func newTestServer(t *testing.T, allowAdminUsername bool) *testServer {
	t.Helper()

	logger := zap.NewNop()
	store := memory.NewStore()
	jwtService := auth.NewJWTService(auth.JWTConfig{SecretKey: "test-secret", TokenIssuer: "studytrack"})
	connections := service.NewConnectionService(store, logger)

	h := NewHandler(Services{
		Auth:        service.NewAuthService(store, jwtService, time.Hour, logger),
		Members:     service.NewMembershipService(store, service.NewAuthorizer(), service.NewPlanSigner(jwtService, time.Minute), nil, logger),
		Connections: connections,
		Study:       service.NewStudyService(store, connections, logger),
	}, allowAdminUsername, logger)

	return &testServer{t: t, store: store, router: h.Router()}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *testServer) institution(name string, maxTeachers int) *model.Institution {
	s.t.Helper()
	inst := &model.Institution{Name: name, ContactEmail: "office@" + name + ".edu", IsActive: true, MaxTeachers: maxTeachers, MaxStudents: 10}
	require.NoError(s.t, s.store.Institutions().Create(context.Background(), inst))
	return inst
}

// adminToken creates an admin credential for inst and signs in with it
func (s *testServer) adminToken(inst *model.Institution) string {
	s.t.Helper()
	hash, err := auth.HashPassword("admin-pass")
	require.NoError(s.t, err)
	require.NoError(s.t, s.store.AdminCredentials().Create(context.Background(), &model.AdminCredential{
		InstitutionID: inst.ID,
		Username:      "admin-" + inst.Name,
		Email:         "admin@" + inst.Name + ".edu",
		PasswordHash:  hash,
		IsActive:      true,
	}))

	w := s.do(http.MethodPost, "/auth/v1/admin-token", "", map[string]string{"username": "admin-" + inst.Name, "password": "admin-pass"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode(s.t, w)["access_token"].(string)
}

func (s *testServer) userToken(email, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/v1/token", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode(s.t, w)["access_token"].(string)
}

func addTeacherBody(inst *model.Institution, email string, confirm bool) map[string]interface{} {
	return map[string]interface{}{
		"institution_id": inst.ID,
		"teacher_data": map[string]string{
			"firstName": "Ada",
			"lastName":  "King",
			"email":     email,
			"password":  "teacher-pass",
			"branch":    "Math",
		},
		"deactivate_other_institutions": confirm,
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestAddTeacherFlow(t *testing.T) {
	s := newTestServer(t, false)
	north := s.institution("north", 1)
	south := s.institution("south", 5)
	northToken := s.adminToken(north)
	southToken := s.adminToken(south)

	w := s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", northToken, addTeacherBody(north, "ada@x.edu", false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["is_new_user"])
	assert.NotEmpty(t, data["message"])

	// seat limit reached
	w = s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", northToken, addTeacherBody(north, "bob@x.edu", false))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, CodeLimitExceeded, body["code"])
	assert.Equal(t, float64(1), body["current"])
	assert.Equal(t, float64(1), body["max"])

	// active elsewhere: legacy confirmation shape
	w = s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", southToken, addTeacherBody(south, "ada@x.edu", false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, true, body["requires_confirmation"])
	others := body["other_institutions"].([]interface{})
	require.Len(t, others, 1)
	assert.Equal(t, "north", others[0].(map[string]interface{})["name"])

	w = s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", southToken, addTeacherBody(south, "ada@x.edu", true))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data = decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["is_new_user"])

	// wrong institution for the token
	w = s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", southToken, addTeacherBody(north, "cat@x.edu", false))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminUsernameFallback(t *testing.T) {
	body := func(inst *model.Institution) map[string]interface{} {
		b := addTeacherBody(inst, "ada@x.edu", false)
		b["admin_username"] = "admin-" + inst.Name
		return b
	}

	disabled := newTestServer(t, false)
	inst := disabled.institution("north", 5)
	disabled.adminToken(inst)
	w := disabled.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", "", body(inst))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	enabled := newTestServer(t, true)
	inst = enabled.institution("north", 5)
	enabled.adminToken(inst)
	w = enabled.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", "", body(inst))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAdminFunctionValidation(t *testing.T) {
	s := newTestServer(t, false)
	inst := s.institution("north", 5)
	token := s.adminToken(inst)

	w := s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", token, map[string]interface{}{"teacher_data": map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, email := range []string{"not-an-email", "@", "a@", "not an@email"} {
		bad := addTeacherBody(inst, email, false)
		w = s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", token, bad)
		require.Equal(t, http.StatusBadRequest, w.Code, email)
		body := decode(t, w)
		assert.Equal(t, "email", body["field"], email)
		assert.Equal(t, CodeValidation, body["code"], email)
	}
}

func TestUpdateAndDeactivateMember(t *testing.T) {
	s := newTestServer(t, false)
	inst := s.institution("north", 5)
	token := s.adminToken(inst)

	w := s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", token, addTeacherBody(inst, "ada@x.edu", false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	userID := decode(t, w)["data"].(map[string]interface{})["user_id"]

	w = s.do(http.MethodPost, "/functions/v1/institution-admin-update-user", token, map[string]interface{}{
		"institution_id": inst.ID,
		"user_id":        userID,
		"user_type":      "teacher",
		"name":           "Ada Lovelace",
		"email":          "ada@x.edu",
		"branch":         "Physics",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "User updated", decode(t, w)["data"].(map[string]interface{})["message"])

	w = s.do(http.MethodPost, "/functions/v1/institution-admin-deactivate-member", token, map[string]interface{}{
		"institution_id": inst.ID,
		"user_id":        userID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/functions/v1/institution-admin-deactivate-member", token, map[string]interface{}{
		"institution_id": inst.ID,
		"user_id":        userID,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlanCommitMember(t *testing.T) {
	s := newTestServer(t, false)
	inst := s.institution("north", 5)
	token := s.adminToken(inst)

	member := map[string]interface{}{
		"institution_id": inst.ID,
		"role":           "student",
		"data":           map[string]string{"firstName": "Bo", "email": "bo@x.edu"},
	}

	w := s.do(http.MethodPost, "/functions/v1/institution-admin-plan-member", token, member)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	plan := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, plan["is_new_user"])

	member["plan_token"] = plan["plan_token"]
	w = s.do(http.MethodPost, "/functions/v1/institution-admin-commit-member", token, member)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode(t, w)["data"].(map[string]interface{})
	assert.NotEmpty(t, result["temporary_password"])

	delete(member, "plan_token")
	w = s.do(http.MethodPost, "/functions/v1/institution-admin-commit-member", token, member)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, false)
	inst := s.institution("north", 5)
	admin := s.adminToken(inst)

	w := s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", admin, addTeacherBody(inst, "ada@x.edu", false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/auth/v1/token", "", map[string]string{"email": "ada@x.edu", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.userToken("ada@x.edu", "teacher-pass")

	w = s.do(http.MethodGet, "/auth/v1/user", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada@x.edu", decode(t, w)["email"])

	w = s.do(http.MethodPost, "/auth/v1/logout", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/auth/v1/user", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/auth/v1/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConnectionEndpoints(t *testing.T) {
	s := newTestServer(t, false)
	inst := s.institution("north", 5)
	admin := s.adminToken(inst)

	w := s.do(http.MethodPost, "/functions/v1/institution-admin-add-teacher", admin, addTeacherBody(inst, "ada@x.edu", false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	code := decode(t, w)["data"].(map[string]interface{})["teacher_code"].(string)

	w = s.do(http.MethodPost, "/functions/v1/institution-admin-add-student", admin, map[string]interface{}{
		"institution_id": inst.ID,
		"student_data":   map[string]string{"firstName": "Bo", "email": "bo@x.edu", "password": "student-pass"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	studentID := decode(t, w)["data"].(map[string]interface{})["user_id"].(string)

	teacher := s.userToken("ada@x.edu", "teacher-pass")
	student := s.userToken("bo@x.edu", "student-pass")

	w = s.do(http.MethodPost, "/rest/v1/connections", student, map[string]string{"teacher_code": "TCHNONE0"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/rest/v1/connections", student, map[string]string{"teacher_code": code})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	connID := decode(t, w)["data"].(map[string]interface{})["id"].(string)

	w = s.do(http.MethodGet, "/rest/v1/connections/pending", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"].([]interface{}), 1)

	// students cannot approve
	w = s.do(http.MethodPost, "/rest/v1/connections/"+connID+"/approve", student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/rest/v1/connections/"+connID+"/approve", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decode(t, w)["data"].(map[string]interface{})["approval_status"])

	w = s.do(http.MethodPost, "/rest/v1/connections/"+connID+"/approve", teacher, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/rest/v1/study-logs", student, map[string]interface{}{"subject": "Math", "duration_minutes": 40})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/rest/v1/students/"+studentID+"/study-logs", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["data"].([]interface{}), 1)

	w = s.do(http.MethodGet, "/rest/v1/study-logs?since=yesterday", student, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/rest/v1/connections/"+connID+"/disconnect", student, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/rest/v1/connections/"+connID+"/approve-disconnect", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "disconnected", decode(t, w)["data"].(map[string]interface{})["approval_status"])

	w = s.do(http.MethodGet, "/rest/v1/students/"+studentID+"/study-logs", teacher, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, "/rest/v1/connections/not-a-uuid", student, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudyPlanEndpoints(t *testing.T) {
	s := newTestServer(t, false)
	inst := s.institution("north", 5)
	admin := s.adminToken(inst)

	w := s.do(http.MethodPost, "/functions/v1/institution-admin-add-student", admin, map[string]interface{}{
		"institution_id": inst.ID,
		"student_data":   map[string]string{"firstName": "Bo", "email": "bo@x.edu", "password": "student-pass"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	student := s.userToken("bo@x.edu", "student-pass")

	day := time.Now().AddDate(0, 0, -2).Format(time.DateOnly)

	w = s.do(http.MethodPut, "/rest/v1/study-plans", student, map[string]interface{}{"period": "monthly", "target_minutes": 30})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "period", decode(t, w)["field"])

	w = s.do(http.MethodPut, "/rest/v1/study-plans", student, map[string]interface{}{"period": "daily", "date": "02.01.2026", "target_minutes": 30})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "date", decode(t, w)["field"])

	w = s.do(http.MethodPut, "/rest/v1/study-plans", student, map[string]interface{}{"period": "daily", "date": day, "target_minutes": 30})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/rest/v1/study-logs", student, map[string]interface{}{
		"subject":          "Math",
		"duration_minutes": 45,
		"studied_at":       day + "T12:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/rest/v1/study-plans?period=daily", student, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	plans := decode(t, w)["data"].([]interface{})
	require.Len(t, plans, 1)
	plan := plans[0].(map[string]interface{})
	assert.Equal(t, float64(45), plan["done_minutes"])
	assert.Equal(t, true, plan["completed"])

	w = s.do(http.MethodDelete, "/rest/v1/study-plans/daily/"+day, student, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodDelete, "/rest/v1/study-plans/daily/"+day, student, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
