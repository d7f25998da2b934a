package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/internal/mq"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/session"
	"github.com/taskhive/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret")

type testEnv struct {
	users    *fakeUserRepo
	tasks    *fakeTaskRepo
	registry *session.Registry
	router   *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	userRepo := newFakeUserRepo()
	taskRepo := newFakeTaskRepo(userRepo)

	userService := services.NewUserService(userRepo)
	taskService := services.NewTaskService(taskRepo)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	presence := services.NewPresenceService(userService, time.Hour, logger)
	t.Cleanup(presence.Close)

	bus := mq.NewBus(mq.NewMemoryBackend())
	registry := session.NewRegistry(bus, time.Hour, logger)

	authMiddleware := RequireAuth(testSecret, userService)
	authHandler := NewAuthHandler(userService, taskService, presence, registry, nil, testSecret, 24*time.Hour, logger)
	taskHandler := NewTaskHandler(taskService, userService)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authHandler, authMiddleware)
	})
	router.Route("/tasks", func(r chi.Router) {
		TaskRouter(r, taskHandler, authMiddleware)
	})

	return &testEnv{
		users:    userRepo,
		tasks:    taskRepo,
		registry: registry,
		router:   router,
	}
}

// seedUser inserts a user directly and returns it with a valid token.
func (e *testEnv) seedUser(t *testing.T, email, password, role, department string) (types.User, string) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := e.users.Create(context.Background(), types.User{
		Fname:        "Test",
		Lname:        "User",
		Email:        email,
		Role:         role,
		State:        types.StateOffline,
		Department:   department,
		PasswordHash: string(hashed),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	token, err := issueToken(user, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func bodyMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Message string `json:"message"`
	}
	decodeBody(t, rec, &payload)
	return payload.Message
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}
