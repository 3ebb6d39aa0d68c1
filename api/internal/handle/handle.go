package handle

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"image-to-text/api/internal/ocr"
	"image-to-text/api/internal/store"
)

// History — кэш и журнал распознаваний; nil отключает оба.
type History interface {
	FindByHash(ctx context.Context, imageHash, engine string, maxAge time.Duration) (*store.Recognition, error)
	Insert(ctx context.Context, rec *store.Recognition) error
}

type Handle struct {
	engs        *ocr.Manager
	history     History
	cacheMaxAge time.Duration
	log         *slog.Logger
}

func New(engs *ocr.Manager, history History, cacheMaxAge time.Duration, log *slog.Logger) *Handle {
	if log == nil {
		log = slog.Default()
	}
	return &Handle{
		engs:        engs,
		history:     history,
		cacheMaxAge: cacheMaxAge,
		log:         log,
	}
}

// Register mounts the OCR routes on mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/ocr/read", h.Read)
	mux.HandleFunc("/v1/ocr/engines", h.Engines)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
