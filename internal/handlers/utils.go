package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskhive/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// userFromContext returns the authenticated user injected by RequireAuth.
func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok {
		return types.User{}, errors.New("missing authenticated user")
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// MessageResponse is the plain {"message": ...} payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// FailResponse is the {"success": false, "message": ...} payload used by the
// admin and aggregate endpoints.
type FailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ValidationErrorResponse carries every failing field.
type ValidationErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, FailResponse{Success: false, Message: message})
}

func writeValidationErrors(w http.ResponseWriter, errs []string) {
	writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Message: "Validation failed",
		Errors:  errs,
	})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
