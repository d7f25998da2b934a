package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/session"
	"github.com/taskhive/apiserver/internal/storage"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/internal/validation"
	"github.com/taskhive/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	// clientIDHeader identifies the browser/device instance so the session
	// registry can enforce one active user per client. Clients that do not
	// send it share a per-account bucket.
	clientIDHeader = "X-Client-Id"

	maxAvatarBytes = 8 << 20
)

// AuthHandler provides registration, login, session, and user admin
// endpoints.
type AuthHandler struct {
	users    *services.UserService
	tasks    *services.TaskService
	presence *services.PresenceService
	sessions *session.Registry
	avatars  *storage.AvatarStore
	secret   []byte
	tokenTTL time.Duration
	logger   *logrus.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
// avatars may be nil when no object storage is configured.
func NewAuthHandler(
	users *services.UserService,
	tasks *services.TaskService,
	presence *services.PresenceService,
	sessions *session.Registry,
	avatars *storage.AvatarStore,
	secret []byte,
	tokenTTL time.Duration,
	logger *logrus.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:    users,
		tasks:    tasks,
		presence: presence,
		sessions: sessions,
		avatars:  avatars,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Put("/forgotPassword", handler.ForgotPassword)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/logout", handler.Logout)
		r.Get("/getParticularDepartmentUserCount", handler.DepartmentUserCount)
		r.Get("/getUsersByRole/{department}", handler.UsersByDepartment)
		r.Get("/getTasksByUserId/{userId}", handler.TasksByUserID)
		r.Post("/updateProfile", handler.UpdateProfile)
		r.Post("/uploadAvatar", handler.UploadAvatar)
		r.Get("/avatar/{id}", handler.Avatar)
		r.Get("/getAllUser", handler.GetAllUsers)
		r.Delete("/deleteUser/{id}", handler.DeleteUser)
	})
}

type RegisterRequest struct {
	Fname      string `json:"fname" validate:"required,min=2"`
	Lname      string `json:"lname" validate:"required,min=2"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       string `json:"role" validate:"omitempty,oneof=employee admin"`
	State      string `json:"state" validate:"omitempty,oneof=online offline"`
	Department string `json:"department" validate:"omitempty,department"`
}

type RegisterResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

// Register creates a new user account with employee/offline defaults.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := validation.Check(req); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.users.GetByEmail(r.Context(), email); err == nil {
		writeMessage(w, http.StatusBadRequest, "Email already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	user := types.User{
		Fname:        strings.TrimSpace(req.Fname),
		Lname:        strings.TrimSpace(req.Lname),
		Email:        email,
		Role:         req.Role,
		State:        req.State,
		Department:   req.Department,
		PasswordHash: string(hashed),
	}
	if user.Role == "" {
		user.Role = types.RoleEmployee
	}
	if user.State == "" {
		user.State = types.StateOffline
	}
	if user.Department == "" {
		user.Department = types.DefaultDepartment
	}

	created, err := h.users.Create(r.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeMessage(w, http.StatusBadRequest, "Email already exists")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "User registered successfully",
		User:    created,
	})
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginUser is the trimmed user snapshot returned on login.
type LoginUser struct {
	ID         int    `json:"id"`
	Fname      string `json:"fname"`
	Lname      string `json:"lname"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

type LoginResponse struct {
	Message string    `json:"message"`
	User    LoginUser `json:"user"`
	Token   string    `json:"token"`
}

// Login verifies credentials, flips the user online, issues a token, arms
// the delayed offline flip, and records the session. Unknown email and
// wrong password are indistinguishable to the caller.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := validation.Check(req); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusBadRequest, "Invalid email or password")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid email or password")
		return
	}

	now := time.Now()
	if err := h.users.SetState(r.Context(), user.ID, types.StateOnline, now); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	user.State = types.StateOnline
	user.LastActive = &now

	token, err := issueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.presence.ScheduleOffline(user.ID)

	if evicted, err := h.sessions.Login(r.Context(), h.clientID(r, user.Email), user, token); err != nil {
		h.logger.WithError(err).Warn("auth: failed to broadcast login event")
	} else if evicted != nil {
		h.logger.WithFields(logrus.Fields{
			"evicted": evicted.User.Email,
			"email":   user.Email,
		}).Info("auth: previous session cleared by new login")
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful",
		User: LoginUser{
			ID:         user.ID,
			Fname:      user.Fname,
			Lname:      user.Lname,
			Email:      user.Email,
			Role:       user.Role,
			Department: user.Department,
		},
		Token: token,
	})
}

// LogoutUser is the user snapshot returned on logout.
type LogoutUser struct {
	ID         int        `json:"id"`
	Fname      string     `json:"fname"`
	Lname      string     `json:"lname"`
	Email      string     `json:"email"`
	State      string     `json:"state"`
	LastActive *time.Time `json:"lastActive"`
}

type LogoutResponse struct {
	Message string     `json:"message"`
	User    LogoutUser `json:"user"`
}

// Logout flips the caller offline, disarms the delayed flip, and clears the
// session. Safe to repeat.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	now := time.Now()
	if err := h.users.SetState(r.Context(), user.ID, types.StateOffline, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.presence.CancelOffline(user.ID)

	if err := h.sessions.Logout(r.Context(), h.clientID(r, user.Email)); err != nil {
		h.logger.WithError(err).Warn("auth: failed to broadcast logout event")
	}

	writeJSON(w, http.StatusOK, LogoutResponse{
		Message: "User logged out successfully",
		User: LogoutUser{
			ID:         user.ID,
			Fname:      user.Fname,
			Lname:      user.Lname,
			Email:      user.Email,
			State:      types.StateOffline,
			LastActive: &now,
		},
	})
}

type ForgotPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPassword replaces the stored hash, rejecting a password identical to
// the current one.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email and new password required")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) == nil {
		writeMessage(w, http.StatusBadRequest, "Please use a new password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if err := h.users.SetPassword(r.Context(), user.ID, string(hashed)); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeMessage(w, http.StatusOK, "Password reset successfully")
}

// DepartmentSummaryResponse is the envelope of the aggregation endpoint.
type DepartmentSummaryResponse struct {
	Success bool                      `json:"success"`
	Data    []types.DepartmentSummary `json:"data"`
}

// DepartmentUserCount returns the zero-filled per-department summary.
func (h *AuthHandler) DepartmentUserCount(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.tasks.DepartmentSummary(r.Context())
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, DepartmentSummaryResponse{Success: true, Data: summaries})
}

// UserStatsResponse is the envelope of the per-department user list.
type UserStatsResponse struct {
	Success bool                  `json:"success"`
	Data    []types.UserTaskStats `json:"data"`
}

// UsersByDepartment lists non-admin users of a department with task stats.
func (h *AuthHandler) UsersByDepartment(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")
	if strings.TrimSpace(department) == "" {
		writeFail(w, http.StatusBadRequest, "Department is required")
		return
	}

	users, err := h.users.ListByDepartment(r.Context(), department)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "Server error")
		return
	}

	stats := make([]types.UserTaskStats, 0, len(users))
	for _, user := range users {
		s, err := h.tasks.WithTaskStats(r.Context(), user)
		if err != nil {
			writeFail(w, http.StatusInternalServerError, "Server error")
			return
		}
		stats = append(stats, s)
	}

	writeJSON(w, http.StatusOK, UserStatsResponse{Success: true, Data: stats})
}

// TasksResponse is the envelope of the per-user task list.
type TasksResponse struct {
	Success bool         `json:"success"`
	Tasks   []types.Task `json:"tasks"`
}

// TasksByUserID lists every task owned by the user.
func (h *AuthHandler) TasksByUserID(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userId"))
	if err != nil || userID < 1 {
		writeFail(w, http.StatusBadRequest, "User ID is required")
		return
	}

	tasks, err := h.tasks.ListByUser(r.Context(), userID)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, TasksResponse{Success: true, Tasks: tasks})
}

type UpdateProfileRequest struct {
	ID         int    `json:"id" validate:"required"`
	Fname      string `json:"fname" validate:"required,min=2"`
	Lname      string `json:"lname" validate:"required,min=2"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department" validate:"omitempty,department"`
}

// UpdateProfileResponse is the envelope of a successful profile update.
type UpdateProfileResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    types.User `json:"data"`
}

// UpdateProfile edits name, email, and department of an existing user.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := validation.Check(req); errs != nil {
		writeJSON(w, http.StatusBadRequest, struct {
			Success bool     `json:"success"`
			Message string   `json:"message"`
			Errors  []string `json:"errors"`
		}{false, "Validation failed", errs})
		return
	}

	user, err := h.users.GetByID(r.Context(), req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFail(w, http.StatusNotFound, "User not found")
			return
		}
		writeFail(w, http.StatusInternalServerError, "Server error")
		return
	}

	user.Fname = strings.TrimSpace(req.Fname)
	user.Lname = strings.TrimSpace(req.Lname)
	user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Department != "" {
		user.Department = req.Department
	}

	updated, err := h.users.Update(r.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeFail(w, http.StatusBadRequest, "Email already exists")
			return
		}
		writeFail(w, http.StatusInternalServerError, "Server error while updating profile")
		return
	}

	writeJSON(w, http.StatusOK, UpdateProfileResponse{
		Success: true,
		Message: "Profile updated successfully",
		Data:    updated,
	})
}

// UploadAvatar stores the caller's avatar in object storage.
func (h *AuthHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if h.avatars == nil {
		writeFail(w, http.StatusServiceUnavailable, "Avatar storage is not configured")
		return
	}

	user, err := userFromContext(r.Context())
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeFail(w, http.StatusBadRequest, "Avatar file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		writeFail(w, http.StatusBadRequest, "Avatar file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	key, err := h.avatars.Put(r.Context(), user.ID, file, header.Size, contentType)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "Server error")
		return
	}

	user.AvatarKey = key
	if _, err := h.users.Update(r.Context(), user); err != nil {
		writeFail(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, FailResponse{Success: true, Message: "Avatar uploaded successfully"})
}

// Avatar streams a user's avatar from object storage.
func (h *AuthHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	if h.avatars == nil {
		writeFail(w, http.StatusServiceUnavailable, "Avatar storage is not configured")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeFail(w, http.StatusBadRequest, "User ID is required")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFail(w, http.StatusNotFound, "User not found")
			return
		}
		writeFail(w, http.StatusInternalServerError, "Server error")
		return
	}
	if user.AvatarKey == "" {
		writeFail(w, http.StatusNotFound, "Avatar not found")
		return
	}

	reader, err := h.avatars.Get(r.Context(), user.ID)
	if err != nil {
		writeFail(w, http.StatusNotFound, "Avatar not found")
		return
	}
	defer reader.Close()

	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

// AllUsersResponse is the envelope of the admin user list.
type AllUsersResponse struct {
	Success bool         `json:"success"`
	Data    []types.User `json:"data"`
}

// GetAllUsers lists every non-admin user. Admin only.
func (h *AuthHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil || caller.Role != types.RoleAdmin {
		writeFail(w, http.StatusForbidden, "Access denied. Only admins can view all users.")
		return
	}

	users, err := h.users.ListNonAdmin(r.Context())
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "Server error while fetching users.")
		return
	}
	writeJSON(w, http.StatusOK, AllUsersResponse{Success: true, Data: users})
}

// DeleteUser removes a user account and their avatar. Admin only.
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil || caller.Role != types.RoleAdmin {
		writeFail(w, http.StatusForbidden, "Access denied. Only admins can delete users.")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeFail(w, http.StatusBadRequest, "User ID is required")
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFail(w, http.StatusNotFound, "User not found.")
			return
		}
		writeFail(w, http.StatusInternalServerError, "Server error while deleting user.")
		return
	}

	h.presence.CancelOffline(id)
	if h.avatars != nil {
		if err := h.avatars.Delete(r.Context(), id); err != nil {
			h.logger.WithError(err).WithField("user_id", id).Debug("auth: avatar cleanup failed")
		}
	}

	writeJSON(w, http.StatusOK, FailResponse{Success: true, Message: "User deleted successfully."})
}

func (h *AuthHandler) clientID(r *http.Request, email string) string {
	if id := strings.TrimSpace(r.Header.Get(clientIDHeader)); id != "" {
		return id
	}
	return "account:" + email
}
