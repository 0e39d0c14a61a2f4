package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "window validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "window validation failed" {
		t.Errorf("expected message 'window validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestWrapPreservesSentinel(t *testing.T) {
	sentinel := errors.New("room is already booked in this window")
	err := ConflictFrom(sentinel, "The room is already booked")

	if !errors.Is(err, sentinel) {
		t.Error("expected errors.Is to reach the wrapped sentinel")
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, err.HTTPStatus)
	}
}

func TestValidationFrom(t *testing.T) {
	sentinel := errors.New("start time is after end time")
	err := ValidationFrom(sentinel, "Invalid reservation window")

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if !errors.Is(err, sentinel) {
		t.Error("expected errors.Is to reach the wrapped sentinel")
	}
}

func TestNotFoundWithID(t *testing.T) {
	err := NotFoundWithID("Room", "room-42")

	if err.Code != CodeNotFound {
		t.Errorf("expected code %s, got %s", CodeNotFound, err.Code)
	}
	if err.Details["id"] != "room-42" {
		t.Errorf("expected id detail 'room-42', got %v", err.Details["id"])
	}
}

func TestAsAppError(t *testing.T) {
	plain := errors.New("boom")
	appErr := AsAppError(plain)

	if appErr.Code != CodeInternal {
		t.Errorf("expected code %s, got %s", CodeInternal, appErr.Code)
	}
	if !errors.Is(appErr, plain) {
		t.Error("expected wrapped cause to be reachable")
	}

	conflict := Conflict("already exists")
	if AsAppError(conflict) != conflict {
		t.Error("expected existing AppError to pass through unchanged")
	}
}
