package errors

import (
	"fmt"
	"testing"
)

func TestTipeError_Error(t *testing.T) {
	err := &TipeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "lead not found: lead-1",
	}

	expected := "NOT_FOUND: lead not found: lead-1"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("status is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "status is required" {
		t.Errorf("Message = %q, want %q", err.Message, "status is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("meeting", "meeting-9")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["kind"] != "meeting" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "meeting")
	}
	if err.Details["id"] != "meeting-9" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "meeting-9")
	}
}

func TestNewAlreadyExists(t *testing.T) {
	err := NewAlreadyExists("conversation", "conv-1")

	if err.Code != ErrAlreadyExists {
		t.Errorf("Code = %q, want %q", err.Code, ErrAlreadyExists)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/tmp/missing.jsonl")

	if err.Code != ErrFileNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrFileNotFound)
	}
	if err.Details["path"] != "/tmp/missing.jsonl" {
		t.Errorf("Details[path] = %v", err.Details["path"])
	}
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled("sync")

	if err.Code != ErrCancelled {
		t.Errorf("Code = %q, want %q", err.Code, ErrCancelled)
	}
	if err.Status != 499 {
		t.Errorf("Status = %d, want 499", err.Status)
	}
}

func TestNewSourceUnavailable(t *testing.T) {
	err := NewSourceUnavailable("remote", fmt.Errorf("connection refused"))

	if err.Code != ErrSourceUnavailable {
		t.Errorf("Code = %q, want %q", err.Code, ErrSourceUnavailable)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Message != `lead source "remote" unavailable: connection refused` {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("database connection failed"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "database connection failed" {
			t.Errorf("Details[internal_error] = %q", err.Details["internal_error"])
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		if !Is(NewNotFound("lead", "x"), ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		if Is(NewNotFound("lead", "x"), ErrAlreadyExists) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		if Is(fmt.Errorf("plain error"), ErrNotFound) {
			t.Error("Is() = true, want false for non-TipeError")
		}
	})

	t.Run("wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("leads[3]: %w", NewInvalidRequest("bad status"))
		if !Is(wrapped, ErrInvalidRequest) {
			t.Error("Is() = false, want true for wrapped TipeError")
		}
		tErr, ok := As(wrapped)
		if !ok || tErr.Message != "bad status" {
			t.Errorf("As() = %v, %v", tErr, ok)
		}
	})
}
