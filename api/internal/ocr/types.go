package ocr

import (
	"errors"
	"strings"
)

// ImagePayload — одно изображение, готовое к отправке в OCR.
type ImagePayload struct {
	Content  []byte
	Subtype  string // "jpeg" | "jpg" | "png", берётся из расширения FileName
	FileName string
}

// JobHandle is the poll URL returned in the Operation-Location header.
type JobHandle string

type Line struct {
	Text string `json:"text"`
}

type RecognitionResult struct {
	Lines []Line `json:"lines"`
}

// Text склеивает строки через пробел в порядке ответа.
func (r RecognitionResult) Text() string {
	parts := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, " ")
}

// State — стадия операции: idle → uploading → polling → done/failed.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StatePolling   State = "polling"
	StateDone      State = "done"
	StateFailed    State = "error"
)

// Notifier is called after every observable state change. It may be nil.
type Notifier func(State)

func (n Notifier) notify(s State) {
	if n != nil {
		n(s)
	}
}

type OutcomeKind string

const (
	OutcomeSuccess    OutcomeKind = "success"
	OutcomeEmpty      OutcomeKind = "empty"
	OutcomeValidation OutcomeKind = "validation_error"
	OutcomeTransport  OutcomeKind = "transport_error"
	OutcomeCancelled  OutcomeKind = "cancelled"
)

// Outcome — итог одного запуска: ровно один на вызов Run.
type Outcome struct {
	Kind OutcomeKind
	Text string // только для OutcomeSuccess
	err  error
}

func Success(text string) Outcome { return Outcome{Kind: OutcomeSuccess, Text: text} }
func Empty() Outcome              { return Outcome{Kind: OutcomeEmpty} }
func Cancelled() Outcome          { return Outcome{Kind: OutcomeCancelled, err: ErrCancelled} }

// Failure classifies err into a Validation or Transport outcome.
// Errors that are neither are wrapped into a TransportError without status.
func Failure(err error) Outcome {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return Outcome{Kind: OutcomeValidation, err: ve}
	}
	var te *TransportError
	if errors.As(err, &te) {
		return Outcome{Kind: OutcomeTransport, err: te}
	}
	if errors.Is(err, ErrCancelled) {
		return Cancelled()
	}
	return Outcome{Kind: OutcomeTransport, err: &TransportError{Reason: err.Error()}}
}

// Err returns the typed error behind a failed outcome, nil for Success/Empty.
func (o Outcome) Err() error { return o.err }

// FromResult maps a terminal poll result onto Success or Empty.
func FromResult(r RecognitionResult) Outcome {
	text := r.Text()
	if strings.TrimSpace(text) == "" {
		return Empty()
	}
	return Success(text)
}

func (o Outcome) Failed() bool {
	return o.Kind == OutcomeValidation || o.Kind == OutcomeTransport
}

// State returns the terminal state the outcome corresponds to.
func (o Outcome) State() State {
	switch o.Kind {
	case OutcomeSuccess, OutcomeEmpty:
		return StateDone
	case OutcomeCancelled:
		return StateIdle
	default:
		return StateFailed
	}
}
