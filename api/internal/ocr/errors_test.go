package ocr

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"top-level message", `{"message":"quota exceeded"}`, "quota exceeded"},
		{"nested error", `{"error":{"code":"401","message":"bad token"}}`, "bad token"},
		{"top-level wins", `{"message":"first","error":{"message":"second"}}`, "first"},
		{"empty message falls through", `{"message":"","error":{"message":"second"}}`, "second"},
		{"no fields", `{"code":1}`, ""},
		{"error is a string", `{"error":"boom"}`, ""},
		{"empty body", ``, ""},
		{"whitespace body", "  \n", ""},
		{"html body", `<html><body>502</body></html>`, ""},
		{"truncated json", `{"error":{"message":`, ""},
		{"array body", `[1,2,3]`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseErrorMessage([]byte(tc.body)); got != tc.want {
				t.Fatalf("ParseErrorMessage(%q) = %q, want %q", tc.body, got, tc.want)
			}
		})
	}
}

func TestClassifyHTTPError(t *testing.T) {
	err := ClassifyHTTPError("Unauthorized", 401, []byte(`{"error":{"message":"bad token"}}`))
	if got, want := err.Error(), "Unauthorized (401): bad token"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if err.Status != 401 || err.Message != "bad token" {
		t.Fatalf("unexpected fields: %#v", err)
	}
}

func TestClassifyHTTPErrorDefaultReason(t *testing.T) {
	err := ClassifyHTTPError("", 500, []byte("oops"))
	if got, want := err.Error(), "Error. (500): "; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestMissingHandleError(t *testing.T) {
	err := error(MissingHandleError(202))
	if !errors.Is(err, ErrMissingHandle) {
		t.Fatal("expected errors.Is(err, ErrMissingHandle)")
	}
	wrapped := fmt.Errorf("submit: %w", err)
	if !errors.Is(wrapped, ErrMissingHandle) {
		t.Fatal("expected wrapped error to match ErrMissingHandle")
	}
	if errors.Is(ClassifyHTTPError("Bad Request", 400, nil), ErrMissingHandle) {
		t.Fatal("plain HTTP error must not match ErrMissingHandle")
	}
}

func TestFailureClassification(t *testing.T) {
	if out := Failure(&ValidationError{Reason: "x"}); out.Kind != OutcomeValidation || out.State() != StateFailed {
		t.Fatalf("validation: %+v", out)
	}
	if out := Failure(fmt.Errorf("wrap: %w", &TransportError{Status: 503})); out.Kind != OutcomeTransport {
		t.Fatalf("wrapped transport: %+v", out)
	}
	if out := Failure(ErrCancelled); out.Kind != OutcomeCancelled || out.State() != StateIdle {
		t.Fatalf("cancelled: %+v", out)
	}
	out := Failure(errors.New("dial tcp: refused"))
	var te *TransportError
	if out.Kind != OutcomeTransport || !errors.As(out.Err(), &te) || te.Reason != "dial tcp: refused" {
		t.Fatalf("plain error: %+v", out)
	}
}
