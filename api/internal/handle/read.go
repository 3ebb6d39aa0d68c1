package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"image-to-text/api/internal/ocr"
	"image-to-text/api/internal/store"
	"image-to-text/api/internal/util"
)

const maxRequestBody = 30 << 20 // base64 раздувает 20 МБ картинку примерно до 27 МБ

// ReadRequest повторяет ответ захвата камеры: имя файла и base64-содержимое.
type ReadRequest struct {
	FileName    string `json:"file_name"`
	FileContent string `json:"file_content"`
	Engine      string `json:"engine,omitempty"`
}

type ReadResponse struct {
	Kind   ocr.OutcomeKind `json:"kind"`
	Text   string          `json:"text,omitempty"`
	Error  string          `json:"error,omitempty"`
	Status int             `json:"status,omitempty"` // HTTP-статус OCR-сервиса для transport_error
	Engine string          `json:"engine"`
	Cached bool            `json:"cached,omitempty"`

	// ContentType — тип, определённый по байтам картинки, а не по имени файла
	ContentType string `json:"content_type,omitempty"`
}

func (h *Handle) Read(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req ReadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}

	eng := h.engs.Default()
	if req.Engine != "" {
		e, ok := h.engs.Lookup(req.Engine)
		if !ok {
			http.Error(w, "unknown engine: "+req.Engine, http.StatusBadRequest)
			return
		}
		eng = e
	}

	ctx, cancel := context.WithTimeout(r.Context(), 180*time.Second)
	defer cancel()

	log := h.log.With("engine", eng.Name(), "file", req.FileName)

	p, err := ocr.PayloadFromCapture(req.FileName, req.FileContent)
	if err != nil {
		// отмена и невалидный файл решаются локально, движок не вызываем
		out := ocr.Failure(err)
		log.Info("payload rejected", "kind", out.Kind, "err", err)
		writeOutcome(w, eng.Name(), "", out, false)
		return
	}

	sniffed := util.SniffMimeHTTP(p.Content)
	if !strings.HasPrefix(sniffed, "image/") {
		log.Warn("content does not look like an image", "content_type", sniffed)
	}
	hash := util.SHA256Hex(p.Content)
	if h.history != nil {
		rec, err := h.history.FindByHash(ctx, hash, eng.Name(), h.cacheMaxAge)
		switch {
		case err == nil:
			writeOutcome(w, eng.Name(), sniffed, rec.Outcome(), true)
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("history lookup failed", "err", err)
		}
	}

	started := time.Now()
	out := eng.Recognize(ctx, p, func(s ocr.State) {
		log.Debug("ocr state", "state", s)
	})
	log.Info("recognition finished", "kind", out.Kind, "took", time.Since(started), "err", out.Err())

	if h.history != nil && out.Kind != ocr.OutcomeCancelled {
		if err := h.history.Insert(context.WithoutCancel(ctx), store.FromOutcome(0, hash, eng.Name(), p.FileName, out)); err != nil {
			log.Warn("history insert failed", "err", err)
		}
	}
	writeOutcome(w, eng.Name(), sniffed, out, false)
}

func (h *Handle) Engines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default": h.engs.Default().Name(),
		"engines": h.engs.Names(),
	})
}

func writeOutcome(w http.ResponseWriter, engine, contentType string, out ocr.Outcome, cached bool) {
	resp := ReadResponse{Kind: out.Kind, Text: out.Text, Engine: engine, Cached: cached, ContentType: contentType}
	code := http.StatusOK
	if err := out.Err(); err != nil && out.Failed() {
		resp.Error = err.Error()
	}
	switch out.Kind {
	case ocr.OutcomeValidation:
		code = http.StatusUnprocessableEntity
	case ocr.OutcomeTransport:
		code = http.StatusBadGateway
		var te *ocr.TransportError
		if errors.As(out.Err(), &te) {
			resp.Status = te.Status
		}
	}
	writeJSON(w, code, resp)
}
