package ocr

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Engine turns one image into one Outcome. Failures are reported inside the
// Outcome, never as a separate error.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, p ImagePayload, notify Notifier) Outcome
}

// Manager хранит выбранный движок для каждого чата.
type Manager struct {
	def     Engine
	engines map[string]Engine
	m       sync.Map // chatID -> Engine
}

func NewManager(defaultEngine Engine, others ...Engine) *Manager {
	mgr := &Manager{def: defaultEngine, engines: map[string]Engine{}}
	for _, e := range append([]Engine{defaultEngine}, others...) {
		if e != nil {
			mgr.engines[e.Name()] = e
		}
	}
	return mgr
}

func (m *Manager) Get(chatID int64) Engine {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Engine)
	}
	return m.def
}

// Default is the engine used by chats that never switched.
func (m *Manager) Default() Engine { return m.def }

func (m *Manager) Set(chatID int64, e Engine) {
	m.m.Store(chatID, e)
}

// Lookup finds a registered engine by name (case-insensitive).
func (m *Manager) Lookup(name string) (Engine, bool) {
	e, ok := m.engines[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// Names returns registered engine names, sorted.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.engines))
	for n := range m.engines {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Recognize runs the common prologue for synchronous engines: cancellation and
// validation are reported before do is called, and do's error is classified.
func Recognize(ctx context.Context, p ImagePayload, notify Notifier, do func(context.Context, ImagePayload) (RecognitionResult, error)) Outcome {
	if err := p.Validate(); err != nil {
		out := Failure(err)
		notify.notify(out.State())
		return out
	}
	notify.notify(StateUploading)
	res, err := do(ctx, p)
	if err != nil {
		out := Failure(err)
		notify.notify(StateFailed)
		return out
	}
	out := FromResult(res)
	notify.notify(StateDone)
	return out
}
