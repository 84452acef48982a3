package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errOverlap = errors.New("dates overlap")

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   NotFound("Reservation"),
			expected: "NOT_FOUND: Reservation not found",
		},
		{
			name:     "with underlying error",
			appErr:   Internal("store failure", errors.New("connection refused")),
			expected: "INTERNAL_ERROR: store failure (caused by: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructors_StatusAndCode(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("Reservation"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Reservation", "abc"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad input", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad query"), CodeInvalidInput, http.StatusBadRequest},
		{"conflict", Conflict("overlap"), CodeConflict, http.StatusConflict},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("MongoDB"), CodeUnavailable, http.StatusServiceUnavailable},
		{"too many requests", TooManyRequests("slow down"), CodeTooManyRequests, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestNotFoundWithID_Details(t *testing.T) {
	err := NotFoundWithID("Reservation", "12345")

	if err.Details["id"] != "12345" {
		t.Errorf("expected id '12345', got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Reservation" {
		t.Errorf("expected resource 'Reservation', got %v", err.Details["resource"])
	}
	if err.Message != "Reservation with id 12345 not found" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestWithCause_MatchesSentinel(t *testing.T) {
	err := Conflict("overlap").WithCause(errOverlap)

	if !errors.Is(err, errOverlap) {
		t.Errorf("errors.Is should find the cause")
	}

	wrapped := fmt.Errorf("reserve: %w", err)
	if !errors.Is(wrapped, errOverlap) {
		t.Errorf("errors.Is should see through fmt wrapping")
	}
	if !HasCode(wrapped, CodeConflict) {
		t.Errorf("HasCode should find the conflict code through wrapping")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Reservation")
	regularErr := errors.New("regular error")

	if got := AsAppError(appErr); got != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}

	if got := AsAppError(fmt.Errorf("outer: %w", appErr)); got != appErr {
		t.Errorf("AsAppError() should unwrap to the AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestIsAppError(t *testing.T) {
	if !IsAppError(NotFound("Reservation")) {
		t.Errorf("IsAppError() should return true for AppError")
	}
	if IsAppError(errors.New("regular error")) {
		t.Errorf("IsAppError() should return false for regular error")
	}
}

func TestResponse(t *testing.T) {
	err := Validation("Reservation validation failed", map[string]any{"errors": []string{"email"}})
	resp := err.Response()

	if resp.Code != CodeValidation || resp.Message != "Reservation validation failed" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Details["errors"] == nil {
		t.Errorf("details should be carried into the response")
	}
}
