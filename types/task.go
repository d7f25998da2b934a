package types

import "time"

// Task statuses. Transitions are unconstrained: either role may set any
// status at any time.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusDeclined  = "declined"
)

// StatusChangeRoleNone marks a task whose status was never changed.
const StatusChangeRoleNone = "none"

// Task is a unit of work owned by exactly one user.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// Title is the short description of the task.
	Title string `json:"title" db:"title"`

	// UserID references the owning user.
	UserID int `json:"userId" db:"user_id"`

	// CreateRole is the role of whoever created the task
	// ("employee" for self-created, "admin" for assigned).
	CreateRole string `json:"createRole" db:"create_role"`

	// CreateDepartment is the department the task was created under.
	CreateDepartment string `json:"createDepartment" db:"create_department"`

	// Status is the task lifecycle label.
	Status string `json:"status" db:"status"`

	// StatusChangeRole is the role that last changed the status,
	// or "none" if it never changed.
	StatusChangeRole string `json:"statusChangeRole" db:"status_change_role"`

	// AdminID references the admin who assigned or modified the task, if any.
	AdminID *int `json:"adminId" db:"admin_id"`

	// CreatedAt is the timestamp when the task was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the task.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
