package yandex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"image-to-text/api/internal/ocr"
)

const recognizeURL = "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"

// Engine — синхронный Yandex Vision OCR: один запрос, сразу текст.
type Engine struct {
	iamc     *IamClient
	folderID string
	url      string
	model    string
	langs    []string
	httpc    *http.Client
}

func New(oauth2Token, folderID string) *Engine {
	return &Engine{
		iamc:     NewIamClient(oauth2Token),
		folderID: folderID,
		url:      recognizeURL,
		model:    "page",
		langs:    []string{"ru", "en"},
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "yandex" }

type request struct {
	Content       string   `json:"content"`
	MimeType      string   `json:"mimeType,omitempty"`      // "JPEG" | "PNG"
	LanguageCodes []string `json:"languageCodes,omitempty"` // ["ru","en"]
	Model         string   `json:"model,omitempty"`         // "page", "handwritten"
}

type textAnnotation struct {
	FullText string `json:"fullText,omitempty"`
	Blocks   []struct {
		Lines []struct {
			Text string `json:"text,omitempty"`
		} `json:"lines,omitempty"`
	} `json:"blocks,omitempty"`
}

type response struct {
	Result *struct {
		TextAnnotation *textAnnotation `json:"textAnnotation,omitempty"`
	} `json:"result,omitempty"`
}

func (r *response) textAnnotation() *textAnnotation {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.TextAnnotation
}

func (e *Engine) Recognize(ctx context.Context, p ocr.ImagePayload, notify ocr.Notifier) ocr.Outcome {
	return ocr.Recognize(ctx, p, notify, e.recognize)
}

func (e *Engine) recognize(ctx context.Context, p ocr.ImagePayload) (ocr.RecognitionResult, error) {
	iamToken, err := e.iamc.Token(ctx)
	if err != nil {
		return ocr.RecognitionResult{}, &ocr.TransportError{Reason: "iam", Message: err.Error()}
	}
	payload, err := json.Marshal(request{
		Content:       base64.StdEncoding.EncodeToString(p.Content),
		MimeType:      mimeFor(p.Subtype),
		LanguageCodes: e.langs,
		Model:         e.model,
	})
	if err != nil {
		return ocr.RecognitionResult{}, err
	}

	resp, err := e.do(ctx, payload, iamToken)
	if err != nil {
		return ocr.RecognitionResult{}, &ocr.TransportError{Reason: err.Error()}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// один ретрай со свежим IAM-токеном
		resp.Body.Close()
		e.iamc.Invalidate()
		if iamToken, err = e.iamc.Token(ctx); err != nil {
			return ocr.RecognitionResult{}, &ocr.TransportError{Reason: "iam", Message: err.Error()}
		}
		if resp, err = e.do(ctx, payload, iamToken); err != nil {
			return ocr.RecognitionResult{}, &ocr.TransportError{Reason: err.Error()}
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return ocr.RecognitionResult{}, ocr.ClassifyHTTPError(http.StatusText(resp.StatusCode), resp.StatusCode, body)
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return ocr.RecognitionResult{}, &ocr.TransportError{Status: resp.StatusCode, Message: fmt.Sprintf("yandex ocr: bad json: %v", err)}
	}
	return linesOf(out.textAnnotation()), nil
}

func (e *Engine) do(ctx context.Context, payload []byte, iamToken string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+iamToken)
	req.Header.Set("x-folder-id", e.folderID)
	return e.httpc.Do(req)
}

// linesOf prefers blocks[].lines[]; fullText is split by newline as a fallback.
func linesOf(ta *textAnnotation) ocr.RecognitionResult {
	var res ocr.RecognitionResult
	if ta == nil {
		return res
	}
	for _, b := range ta.Blocks {
		for _, l := range b.Lines {
			if s := strings.TrimSpace(l.Text); s != "" {
				res.Lines = append(res.Lines, ocr.Line{Text: s})
			}
		}
	}
	if len(res.Lines) > 0 {
		return res
	}
	for _, s := range strings.Split(ta.FullText, "\n") {
		if s = strings.TrimSpace(s); s != "" {
			res.Lines = append(res.Lines, ocr.Line{Text: s})
		}
	}
	return res
}

func mimeFor(subtype string) string {
	switch strings.ToLower(subtype) {
	case "png":
		return "PNG"
	default:
		return "JPEG"
	}
}
