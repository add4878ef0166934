package rolerequests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/eventman/backend/internal/auth"
	"github.com/eventman/backend/internal/middleware"
	"github.com/eventman/backend/internal/models"
	"github.com/eventman/backend/internal/permissions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	jwt    *auth.JWTService
	users  *fakeUserStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	svc, _, users := newTestService()
	jwtService := auth.NewJWTService("test-secret", 1)
	handler := NewHandler(svc, nil, nil)

	router := gin.New()
	api := router.Group("/api")
	api.Use(middleware.Authenticate(jwtService))
	api.POST("/role-requests", middleware.RequireAuth(), handler.Submit)
	api.GET("/role-requests", middleware.RequirePermission(permissions.ManageUsers), handler.List)
	api.GET("/role-requests/pending", middleware.RequirePermission(permissions.ManageUsers), handler.ListPending)
	api.GET("/role-requests/mine", middleware.RequireAuth(), handler.ListMine)
	api.PUT("/role-requests/:id/approve", middleware.RequirePermission(permissions.ManageUsers), handler.Approve)
	api.PUT("/role-requests/:id/reject", middleware.RequirePermission(permissions.ManageUsers), handler.Reject)
	api.DELETE("/role-requests/:id", middleware.RequirePermission(permissions.ManageUsers), handler.Delete)

	return &testEnv{router: router, jwt: jwtService, users: users}
}

func (e *testEnv) do(t *testing.T, method, path, body string, asUser int64, email string, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if asUser != 0 {
		token, err := e.jwt.Issue(email, asUser, roles)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) asAttendee(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	return e.do(t, method, path, body, 7, "john@example.com", "ATTENDEE")
}

func (e *testEnv) asAdmin(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	return e.do(t, method, path, body, 1, "admin@eventman.com", "ADMIN")
}

func TestSubmitEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.asAttendee(t, http.MethodPost, "/api/role-requests", `{"requested_role":"ORGANIZER","reason":"I run meetups"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Data models.RoleChangeRequest `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.Status != models.StatusPending || body.Data.UserID != 7 {
		t.Fatalf("unexpected created request: %+v", body.Data)
	}

	// Duplicate pending submission is a conflict.
	rr = env.asAttendee(t, http.MethodPost, "/api/role-requests", `{"requested_role":"ORGANIZER","reason":"again"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rr.Code)
	}

	// Free-form role strings are rejected at the boundary.
	rr = env.asAttendee(t, http.MethodPost, "/api/role-requests", `{"requested_role":"SUPERUSER"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", rr.Code)
	}

	// No identity: 401.
	rr = env.do(t, http.MethodPost, "/api/role-requests", `{"requested_role":"ORGANIZER"}`, 0, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
}

func TestApproveEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.asAttendee(t, http.MethodPost, "/api/role-requests", `{"requested_role":"ORGANIZER","reason":"I run meetups"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", rr.Code)
	}

	// Attendees cannot review.
	rr = env.asAttendee(t, http.MethodPut, "/api/role-requests/1/approve", `{}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for attendee reviewer, got %d", rr.Code)
	}

	rr = env.asAdmin(t, http.MethodPut, "/api/role-requests/1/approve", `{"admin_notes":"verified organization"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Data DecisionResponse `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.Request.Status != models.StatusApproved {
		t.Fatalf("expected APPROVED, got %s", body.Data.Request.Status)
	}
	if body.Data.User == nil || body.Data.User.Role != models.RoleOrganizer {
		t.Fatalf("updated user missing or wrong role: %+v", body.Data.User)
	}

	// Double approval is a conflict, not a silent retry.
	rr = env.asAdmin(t, http.MethodPut, "/api/role-requests/1/approve", `{}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for double approval, got %d", rr.Code)
	}

	rr = env.asAdmin(t, http.MethodPut, "/api/role-requests/404/approve", `{}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown request, got %d", rr.Code)
	}
}

func TestRejectEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.asAttendee(t, http.MethodPost, "/api/role-requests", `{"requested_role":"ORGANIZER"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", rr.Code)
	}

	rr = env.asAdmin(t, http.MethodPut, "/api/role-requests/1/reject", `{"admin_notes":"need more history"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	user, _ := env.users.GetByID(context.Background(), 7)
	if user.Role != models.RoleAttendee {
		t.Fatalf("reject must not change the user's role, got %s", user.Role)
	}
}

func TestListEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.asAttendee(t, http.MethodPost, "/api/role-requests", `{"requested_role":"ORGANIZER"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", rr.Code)
	}

	// Queue views are admin-only.
	rr = env.asAttendee(t, http.MethodGet, "/api/role-requests/pending", "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for attendee, got %d", rr.Code)
	}
	rr = env.asAdmin(t, http.MethodGet, "/api/role-requests/pending", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = env.asAdmin(t, http.MethodGet, "/api/role-requests?status=bogus", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status filter, got %d", rr.Code)
	}

	// Requesters see their own queue.
	rr = env.asAttendee(t, http.MethodGet, "/api/role-requests/mine", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Data []models.RoleChangeRequest `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].UserID != 7 {
		t.Fatalf("unexpected own requests: %+v", body.Data)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.asAttendee(t, http.MethodPost, "/api/role-requests", `{"requested_role":"ORGANIZER"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", rr.Code)
	}

	rr = env.asAdmin(t, http.MethodDelete, "/api/role-requests/1", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = env.asAdmin(t, http.MethodDelete, "/api/role-requests/1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double delete, got %d", rr.Code)
	}
}
