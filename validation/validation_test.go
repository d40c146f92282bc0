package validation

import (
	"strings"
	"testing"

	"github.com/kbukum/chainkit/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("name", "")
	v.Required("other", "  ")
	v.Required("ok", "value")

	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(v.Errors()))
	}
	if v.Errors()[0].Field != "name" {
		t.Errorf("expected field 'name', got %q", v.Errors()[0].Field)
	}
}

func TestValidatorMin(t *testing.T) {
	v := New().Min("high_water_mark", 0, 1)
	if !v.HasErrors() {
		t.Fatal("expected error for value below min")
	}
	if New().Min("high_water_mark", 1, 1).HasErrors() {
		t.Error("expected no error at min")
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"json", "console"}
	if New().OneOf("format", "json", allowed).HasErrors() {
		t.Error("json should be allowed")
	}
	if New().OneOf("format", "", allowed).HasErrors() {
		t.Error("empty value is skipped")
	}
	v := New().OneOf("format", "xml", allowed)
	if !v.HasErrors() {
		t.Fatal("xml should be rejected")
	}
	if !strings.Contains(v.Errors()[0].Message, "json, console") {
		t.Errorf("unexpected message %q", v.Errors()[0].Message)
	}
}

func TestValidatorCustom(t *testing.T) {
	v := New().Custom(false, "stages", "must not be empty")
	if !v.HasErrors() {
		t.Fatal("expected error")
	}
}

func TestValidatorValidate(t *testing.T) {
	if New().Validate() != nil {
		t.Error("expected nil for no errors")
	}

	appErr := New().Required("name", "").Min("count", -1, 0).Validate()
	if appErr == nil {
		t.Fatal("expected AppError")
	}
	if appErr.Code != errors.ErrCodeInvalidConfig {
		t.Errorf("expected INVALID_CONFIG, got %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "name: is required") || !strings.Contains(appErr.Message, "count: must be at least 0") {
		t.Errorf("unexpected message %q", appErr.Message)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Errorf("expected 2 field errors in details, got %v", appErr.Details["fields"])
	}
}

type streamSettings struct {
	HighWaterMark int    `mapstructure:"high_water_mark" validate:"gte=1"`
	Mode          string `yaml:"mode" validate:"omitempty,oneof=drain pause"`
}

type settings struct {
	Name   string         `mapstructure:"name" validate:"required"`
	Stream streamSettings `mapstructure:"stream"`
}

func TestStructValidateValid(t *testing.T) {
	s := settings{Name: "svc", Stream: streamSettings{HighWaterMark: 16}}
	if err := Validate(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	s := settings{Stream: streamSettings{HighWaterMark: 0, Mode: "fast"}}
	err := Validate(s)
	if err == nil {
		t.Fatal("expected validation error")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	for _, want := range []string{"name: is required", "stream.high_water_mark: must be at least 1", "stream.mode: must be one of: drain pause"} {
		if !strings.Contains(appErr.Message, want) {
			t.Errorf("expected %q in %q", want, appErr.Message)
		}
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("HighWaterMark"); got != "high_water_mark" {
		t.Errorf("got %q", got)
	}
}
