package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesAppErrorStatus(t *testing.T) {
	base := NotFound("project", "p1")
	wrapped := Wrap(fmt.Errorf("lookup: %w", base), "failed to load project")

	if wrapped.HTTPStatus != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", wrapped.HTTPStatus)
	}
	if !IsNotFound(wrapped) {
		t.Error("expected IsNotFound to hold for wrapped error")
	}
}

func TestWrapPlainErrorIsInternal(t *testing.T) {
	cause := stderrors.New("disk full")
	wrapped := Wrap(cause, "failed to save")

	if wrapped.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", wrapped.HTTPStatus)
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if Wrap(nil, "noop") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestFromAndStatus(t *testing.T) {
	if got := GetHTTPStatus(Conflict("busy")); got != http.StatusConflict {
		t.Errorf("expected 409, got %d", got)
	}
	if got := GetHTTPStatus(stderrors.New("x")); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}
	if !IsConflict(From(Conflict("busy"))) {
		t.Error("From should keep the conflict code")
	}
	if From(stderrors.New("x")).Code != ErrCodeInternalError {
		t.Error("From should default to internal error")
	}
}
