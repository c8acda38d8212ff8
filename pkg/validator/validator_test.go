package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type abusePayload struct {
	IssueType   string `json:"issueType" validate:"notblank"`
	Description string `json:"description" validate:"required,min=10,max=1000"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := abusePayload{
		IssueType:   "phishing",
		Description: "This link looks suspicious to me.",
		Email:       "reporter@example.com",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := abusePayload{
		IssueType:   "   ",
		Description: "short",
		Email:       "invalid",
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	if fields["issueType"] != "notblank" {
		t.Fatalf("expected notblank failure on issueType, got %v", fields)
	}
	if fields["description"] != "min" {
		t.Fatalf("expected min failure on description, got %v", fields)
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("os_category", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "windows", "mac", "linux":
			return true
		}
		return false
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"os_category"`
	}

	if err := ValidateStruct(custom{Value: "linux"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "mobile"}); err == nil {
		t.Fatal("expected validation to fail for non-desktop category")
	}
}
