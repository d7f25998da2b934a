package validation

import (
	"strings"
	"testing"
)

type signupForm struct {
	Fname      string `json:"fname" validate:"required,min=2"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       string `json:"role" validate:"omitempty,oneof=employee admin"`
	Department string `json:"department" validate:"omitempty,department"`
}

func TestCheckPassesValidStruct(t *testing.T) {
	form := signupForm{
		Fname:      "Ada",
		Email:      "ada@example.com",
		Password:   "hunter22",
		Role:       "employee",
		Department: "Web Development",
	}
	if msgs := Check(form); msgs != nil {
		t.Errorf("valid struct produced errors: %v", msgs)
	}
}

func TestCheckCollectsEveryFailingField(t *testing.T) {
	form := signupForm{
		Fname:      "A",
		Email:      "not-an-email",
		Password:   "short",
		Role:       "superuser",
		Department: "Finance",
	}
	msgs := Check(form)
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5: %v", len(msgs), msgs)
	}
}

func TestCheckMessages(t *testing.T) {
	tests := []struct {
		name string
		form signupForm
		want string
	}{
		{
			name: "required uses label",
			form: signupForm{Email: "a@b.com", Password: "longenough"},
			want: "First name is required",
		},
		{
			name: "min reports character count",
			form: signupForm{Fname: "Ada", Email: "a@b.com", Password: "abc"},
			want: "Password must be at least 6 characters",
		},
		{
			name: "email message",
			form: signupForm{Fname: "Ada", Email: "nope", Password: "longenough"},
			want: "Please enter a valid email",
		},
		{
			name: "oneof lists choices",
			form: signupForm{Fname: "Ada", Email: "a@b.com", Password: "longenough", Role: "root"},
			want: "Role must be one of: employee, admin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := Check(tt.form)
			if len(msgs) != 1 || msgs[0] != tt.want {
				t.Errorf("messages = %v, want [%q]", msgs, tt.want)
			}
		})
	}
}

func TestDepartmentTag(t *testing.T) {
	valid := []string{"Web Development", "Android Development", "iOS Development", "Designing", "admin"}
	for _, dept := range valid {
		form := signupForm{Fname: "Ada", Email: "a@b.com", Password: "longenough", Department: dept}
		if msgs := Check(form); msgs != nil {
			t.Errorf("department %q rejected: %v", dept, msgs)
		}
	}

	form := signupForm{Fname: "Ada", Email: "a@b.com", Password: "longenough", Department: "Finance"}
	msgs := Check(form)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v, want one department error", msgs)
	}
	if !strings.HasPrefix(msgs[0], "Department must be one of:") {
		t.Errorf("message = %q", msgs[0])
	}
	if !strings.Contains(msgs[0], "Web Development") || !strings.Contains(msgs[0], "admin") {
		t.Errorf("message missing choices: %q", msgs[0])
	}
}
