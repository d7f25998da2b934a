package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/internal/store"
	"github.com/taskhive/apiserver/internal/validation"
	"github.com/taskhive/apiserver/types"
)

// TaskHandler provides task CRUD and the user-with-stats view.
type TaskHandler struct {
	tasks *services.TaskService
	users *services.UserService
}

// NewTaskHandler constructs a TaskHandler with the provided services.
func NewTaskHandler(tasks *services.TaskService, users *services.UserService) *TaskHandler {
	return &TaskHandler{tasks: tasks, users: users}
}

// TaskRouter registers task routes on the given router. All routes require
// authentication.
func TaskRouter(r chi.Router, handler *TaskHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Post("/createTask", handler.CreateTask)
	r.Put("/status/{id}", handler.ChangeStatus)
	r.Put("/updateTask/{id}", handler.UpdateTask)
	r.Get("/getParticulerTask/{id}", handler.GetTask)
	r.Delete("/deleteTask/{id}", handler.DeleteTask)
	r.Get("/getUserById/{id}", handler.UserWithStats)
}

type TaskRequest struct {
	Title            string `json:"title" validate:"required,min=2"`
	UserID           int    `json:"userId" validate:"required"`
	CreateRole       string `json:"createRole" validate:"omitempty,oneof=admin employee"`
	CreateDepartment string `json:"createDepartment" validate:"omitempty,department"`
	Status           string `json:"status" validate:"omitempty,oneof=pending completed declined"`
	StatusChangeRole string `json:"statusChangeRole" validate:"omitempty,oneof=admin employee none"`
	AdminID          *int   `json:"adminId"`
}

// TaskResponse is the {"message", "task"} envelope.
type TaskResponse struct {
	Message string     `json:"message"`
	Task    types.Task `json:"task"`
}

// CreateTask persists a new task with pending/none defaults.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := validation.Check(req); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	task := types.Task{
		Title:            req.Title,
		UserID:           req.UserID,
		CreateRole:       req.CreateRole,
		CreateDepartment: req.CreateDepartment,
		Status:           req.Status,
		StatusChangeRole: req.StatusChangeRole,
		AdminID:          req.AdminID,
	}
	if task.CreateRole == "" {
		task.CreateRole = types.RoleEmployee
	}
	if task.Status == "" {
		task.Status = types.StatusPending
	}
	if task.StatusChangeRole == "" {
		task.StatusChangeRole = types.StatusChangeRoleNone
	}

	created, err := h.tasks.Create(r.Context(), task)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusCreated, TaskResponse{Message: "Task created successfully", Task: created})
}

type StatusChangeRequest struct {
	Status           string `json:"status" validate:"omitempty,oneof=pending completed declined"`
	StatusChangeRole string `json:"statusChangeRole" validate:"omitempty,oneof=admin employee none"`
	AdminID          *int   `json:"adminId"`
}

// ChangeStatus updates only the status fields of a task. Any role may set
// any status.
func (h *TaskHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Task ID is required")
		return
	}

	var req StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := validation.Check(req); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if req.Status == "" {
		req.Status = types.StatusPending
	}

	task, err := h.tasks.ChangeStatus(r.Context(), id, req.Status, req.StatusChangeRole, req.AdminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Task not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, TaskResponse{Message: "Task status updated successfully", Task: task})
}

// UpdateTask replaces every mutable field of a task.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Task ID is required")
		return
	}

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := validation.Check(req); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	existing, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Task not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	existing.Title = req.Title
	existing.UserID = req.UserID
	if req.CreateRole != "" {
		existing.CreateRole = req.CreateRole
	}
	if req.CreateDepartment != "" {
		existing.CreateDepartment = req.CreateDepartment
	}
	if req.Status != "" {
		existing.Status = req.Status
	}
	if req.StatusChangeRole != "" {
		existing.StatusChangeRole = req.StatusChangeRole
	}
	existing.AdminID = req.AdminID

	updated, err := h.tasks.Update(r.Context(), existing)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Task not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, TaskResponse{Message: "Task updated successfully", Task: updated})
}

// GetTask fetches a single task by id.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Task ID is required")
		return
	}

	task, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Task not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, TaskResponse{Message: "Task fetched successfully", Task: task})
}

// DeleteTask removes a task by id.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Task ID is required")
		return
	}

	if err := h.tasks.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Task not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeMessage(w, http.StatusOK, "Task deleted successfully")
}

// UserStatsEnvelope is the {"success", "data"} envelope of the user view.
type UserStatsEnvelope struct {
	Success bool                `json:"success"`
	Data    types.UserTaskStats `json:"data"`
}

// UserWithStats returns a user joined with their tasks and completion
// figures.
func (h *TaskHandler) UserWithStats(w http.ResponseWriter, r *http.Request) {
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

	stats, err := h.tasks.WithTaskStats(r.Context(), user)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, UserStatsEnvelope{Success: true, Data: stats})
}

func parseTaskID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, errors.New("invalid task id")
	}
	return id, nil
}
