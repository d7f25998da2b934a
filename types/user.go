package types

import "time"

// Roles a user account may hold.
const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// Presence states tracked per user.
const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// Departments lists the four fixed teams. Aggregations are always keyed by
// this list, never by what a query happens to return.
var Departments = []string{
	"Web Development",
	"Android Development",
	"iOS Development",
	"Designing",
}

// DefaultDepartment is assigned when registration omits a department.
const DefaultDepartment = "Web Development"

// AdminDepartment is the department bucket for administrator accounts.
const AdminDepartment = "admin"

// User represents an account in the system.
// It contains identity, role, presence, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Fname is the user's first name.
	Fname string `json:"fname" db:"fname"`

	// Lname is the user's last name.
	Lname string `json:"lname" db:"lname"`

	// Email is the user's unique, lowercased email address.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level
	// within the system ("employee" or "admin").
	Role string `json:"role" db:"role"`

	// State is the user's presence state ("online" or "offline").
	State string `json:"state" db:"state"`

	// Department is the team the user belongs to.
	Department string `json:"department" db:"department"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// LastActive is the time of the user's last login or logout.
	LastActive *time.Time `json:"lastActive,omitempty" db:"last_active"`

	// AvatarKey is the object storage key of the user's avatar, if any.
	AvatarKey string `json:"-" db:"avatar_key"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ValidDepartment reports whether dept is one of the four teams or admin.
func ValidDepartment(dept string) bool {
	if dept == AdminDepartment {
		return true
	}
	for _, d := range Departments {
		if d == dept {
			return true
		}
	}
	return false
}

// UserTaskStats is a user joined with their task list and completion figures.
type UserTaskStats struct {
	User
	Tasks []Task `json:"tasks"`

	CompletedTasks int `json:"completedTasks"`
	TotalTasks     int `json:"totalTasks"`

	// CompletionPercentage is formatted with two decimals, e.g. "66.67".
	CompletionPercentage string `json:"completionPercentage"`
}

// DepartmentSummary holds per-department user and task counts.
type DepartmentSummary struct {
	DepartmentName   string `json:"departmentName"`
	TotalUsers       int    `json:"totalUsers"`
	TotalTasks       int    `json:"totalTasks"`
	TotalCompleted   int    `json:"totalCompleted"`
	CompletedPercent int    `json:"completedPercent"`
}
