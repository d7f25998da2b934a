// Package validation wraps go-playground/validator to collect every failing
// field into human-readable messages, mirroring an abort-early:false schema
// check.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/taskhive/apiserver/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	// Department values contain spaces, which oneof cannot express cleanly.
	v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		return types.ValidDepartment(fl.Field().String())
	})
	return v
}

// Check validates the struct and returns one message per failing field.
// A nil return means the value passed.
func Check(value any) []string {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, message(fe))
	}
	return messages
}

func message(fe validator.FieldError) string {
	field := fieldLabel(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "email":
		return "Please enter a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(strings.Fields(fe.Param()), ", "))
	case "department":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(append(append([]string{}, types.Departments...), types.AdminDepartment), ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

var labels = map[string]string{
	"fname":            "First name",
	"lname":            "Last name",
	"email":            "Email",
	"password":         "Password",
	"role":             "Role",
	"state":            "State",
	"department":       "Department",
	"title":            "Title",
	"userId":           "User ID",
	"createRole":       "Create role",
	"createDepartment": "Department",
	"status":           "Status",
	"statusChangeRole": "Status change role",
}

func fieldLabel(name string) string {
	if label, ok := labels[name]; ok {
		return label
	}
	return name
}
