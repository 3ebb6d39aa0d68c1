package ocr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCancelled — источник изображения ничего не прислал (пустое имя файла).
	ErrCancelled = errors.New("ocr: operation cancelled by image source")
	// ErrMissingHandle matches a TransportError produced for a 2xx submission
	// that carried no Operation-Location header.
	ErrMissingHandle = errors.New("missing operation location")
)

// ValidationError is a local, pre-network rejection of a payload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "ocr: invalid payload: " + e.Reason }

// TransportError — сетевая или HTTP-ошибка.
// Status == 0 значит, что ответа от сервера не было.
type TransportError struct {
	Status        int
	Reason        string
	Message       string
	MissingHandle bool
}

// Error renders "{reason} ({status}): {message}".
func (e *TransportError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "Error."
	}
	return fmt.Sprintf("%s (%d): %s", reason, e.Status, e.Message)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrMissingHandle && e.MissingHandle
}

// ParseErrorMessage достаёт текст ошибки из тела ответа:
// сначала "message", затем "error.message". Битый JSON даёт "".
func ParseErrorMessage(body []byte) string {
	if len(strings.TrimSpace(string(body))) == 0 {
		return ""
	}
	var out struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return ""
	}
	if s, ok := out.Message.(string); ok && s != "" {
		return s
	}
	if m, ok := out.Error.(map[string]any); ok {
		if s, ok := m["message"].(string); ok {
			return s
		}
	}
	return ""
}

// ClassifyHTTPError builds the TransportError for a failed HTTP response.
func ClassifyHTTPError(reason string, status int, body []byte) *TransportError {
	return &TransportError{
		Status:  status,
		Reason:  reason,
		Message: ParseErrorMessage(body),
	}
}

// MissingHandleError is returned for a successful submission without a poll URL.
func MissingHandleError(status int) *TransportError {
	return &TransportError{
		Status:        status,
		Message:       ErrMissingHandle.Error(),
		MissingHandle: true,
	}
}
