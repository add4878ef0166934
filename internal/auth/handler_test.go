package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/eventman/backend/internal/models"
	"github.com/eventman/backend/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	nextID int64
	users  map[string]*models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*models.User)}
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := s.users[email]
	return ok, nil
}

func (s *fakeStore) Create(_ context.Context, email, passwordHash, name, phone string, role models.Role) (*models.User, error) {
	if _, ok := s.users[email]; ok {
		return nil, ErrEmailTaken
	}
	s.nextID++
	u := &models.User{ID: s.nextID, Email: email, Password: passwordHash, Name: name, Phone: phone, Role: role}
	s.users[email] = u
	cp := *u
	return &cp, nil
}

func newAuthRouter(t *testing.T) (*gin.Engine, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	handler := NewHandler(store, NewJWTService("test-secret", 1), nil)
	router := gin.New()
	router.POST("/api/auth/register", handler.Register)
	router.POST("/api/auth/login", handler.Login)
	return router, store
}

func post(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	} `json:"data"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
	return env
}

func TestRegisterAlwaysAttendee(t *testing.T) {
	router, _ := newAuthRouter(t)

	rr := post(t, router, "/api/auth/register",
		`{"email":"eve@example.com","password":"secret1","name":"Eve","role":"ADMIN"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if !env.Success || env.Data.Token == "" {
		t.Fatalf("expected success envelope with token: %s", rr.Body.String())
	}
	// A role in the register body is ignored.
	if env.Data.User.Role != "ATTENDEE" {
		t.Fatalf("new accounts must start as ATTENDEE, got %s", env.Data.User.Role)
	}
}

func TestLoginEnvelope(t *testing.T) {
	router, store := newAuthRouter(t)
	hash, err := utils.HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := store.Create(context.Background(), "john@example.com", hash, "John Smith", "", models.RoleAttendee); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	rr := post(t, router, "/api/auth/login", `{"email":"john@example.com","password":"secret1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if !env.Success {
		t.Fatalf("login must use the success envelope: %s", rr.Body.String())
	}
	if env.Data.Token == "" || env.Data.User.Email != "john@example.com" {
		t.Fatalf("token and user missing from data: %s", rr.Body.String())
	}
}

func TestLoginBadCredentials(t *testing.T) {
	router, store := newAuthRouter(t)
	hash, _ := utils.HashPassword("secret1")
	store.Create(context.Background(), "john@example.com", hash, "John Smith", "", models.RoleAttendee)

	for _, body := range []string{
		`{"email":"john@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"secret1"}`,
	} {
		rr := post(t, router, "/api/auth/login", body)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d", body, rr.Code)
		}
		if env := decodeEnvelope(t, rr); env.Success {
			t.Fatalf("failed login must not be a success envelope: %s", rr.Body.String())
		}
	}
}
