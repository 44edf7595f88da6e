package errors

import (
	"fmt"
	"testing"
)

func TestProbeError_Error(t *testing.T) {
	err := &ProbeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "session not found",
	}

	expected := "NOT_FOUND: session not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("keyword is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "keyword is required" {
		t.Errorf("Message = %q, want %q", err.Message, "keyword is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("session", int64(1700000000000))

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["kind"] != "session" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "session")
	}
	if err.Details["id"] != int64(1700000000000) {
		t.Errorf("Details[id] = %v, want %v", err.Details["id"], int64(1700000000000))
	}
}

func TestNewKeywordMismatch(t *testing.T) {
	err := NewKeywordMismatch()

	if err.Code != ErrKeywordMismatch {
		t.Errorf("Code = %q, want %q", err.Code, ErrKeywordMismatch)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
}

func TestNewQuotaExceeded(t *testing.T) {
	err := NewQuotaExceeded(50)

	if err.Code != ErrQuotaExceeded {
		t.Errorf("Code = %q, want %q", err.Code, ErrQuotaExceeded)
	}
	if err.Status != 429 {
		t.Errorf("Status = %d, want 429", err.Status)
	}
	if err.Details["daily_limit"] != 50 {
		t.Errorf("Details[daily_limit] = %v, want 50", err.Details["daily_limit"])
	}
}

func TestNewProvider(t *testing.T) {
	err := NewProvider(fmt.Errorf("connection refused"))

	if err.Code != ErrProvider {
		t.Errorf("Code = %q, want %q", err.Code, ErrProvider)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	want := "model call failed: connection refused"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestNewProvider_NilError(t *testing.T) {
	err := NewProvider(nil)

	if err.Message != "model call failed" {
		t.Errorf("Message = %q, want %q", err.Message, "model call failed")
	}
}

func TestNewStorage(t *testing.T) {
	err := NewStorage(fmt.Errorf("database is locked"))

	if err.Code != ErrStorage {
		t.Errorf("Code = %q, want %q", err.Code, ErrStorage)
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
	if err.Message != "database is locked" {
		t.Errorf("Message = %q, want %q", err.Message, "database is locked")
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("something broke"))

	if err.Code != ErrInternal {
		t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
	if err.Message != "something broke" {
		t.Errorf("Message = %q, want %q", err.Message, "something broke")
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewInvalidRequest("bad"), ErrInvalidRequest, true},
		{"different code", NewInvalidRequest("bad"), ErrNotFound, false},
		{"plain error", fmt.Errorf("plain"), ErrInternal, false},
		{"nil error", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
