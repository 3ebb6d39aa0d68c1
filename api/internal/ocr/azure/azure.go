package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"image-to-text/api/internal/clock"
	"image-to-text/api/internal/ocr"
)

const (
	readPath = "/vision/v2.0/read/core/asyncBatchAnalyze"

	headerKey      = "Ocp-Apim-Subscription-Key"
	headerLocation = "Operation-Location"

	// DefaultPollDelay — Read API асинхронный, раньше ~3с результат не готов.
	DefaultPollDelay = 3 * time.Second
)

// Config is read-only per client; copy it to change anything.
type Config struct {
	Endpoint        string // https://<resource>.cognitiveservices.azure.com/
	SubscriptionKey string
	PollDelay       time.Duration
	HTTPClient      *http.Client // optional, 60s timeout by default
	Clock           clock.Clock  // optional, wall clock by default
}

// Client drives one submit-then-poll cycle per Run.
type Client struct {
	cfg   Config
	httpc *http.Client
	clk   clock.Clock
}

func New(cfg Config) *Client {
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = DefaultPollDelay
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Client{cfg: cfg, httpc: httpc, clk: clk}
}

func (c *Client) Name() string { return "azure" }

// Recognize implements ocr.Engine.
func (c *Client) Recognize(ctx context.Context, p ocr.ImagePayload, notify ocr.Notifier) ocr.Outcome {
	return c.Run(ctx, p, notify)
}

// Run is submit → delay → poll. Submit failure short-circuits; every failure
// ends up inside the returned Outcome.
func (c *Client) Run(ctx context.Context, p ocr.ImagePayload, notify ocr.Notifier) ocr.Outcome {
	if err := p.Validate(); err != nil {
		return finish(ocr.Failure(err), notify)
	}
	emit(notify, ocr.StateUploading)

	handle, err := c.Submit(ctx, p)
	if err != nil {
		return finish(ocr.Failure(err), notify)
	}
	emit(notify, ocr.StatePolling)

	res, err := c.Poll(ctx, handle)
	if err != nil {
		return finish(ocr.Failure(err), notify)
	}
	return finish(ocr.FromResult(res), notify)
}

// Submit uploads the raw image and returns the poll URL.
func (c *Client) Submit(ctx context.Context, p ocr.ImagePayload) (ocr.JobHandle, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	url := strings.TrimRight(c.cfg.Endpoint, "/") + readPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(p.Content))
	if err != nil {
		return "", fmt.Errorf("azure read: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(headerKey, c.cfg.SubscriptionKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &ocr.TransportError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if !ok2xx(resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return "", ocr.ClassifyHTTPError(http.StatusText(resp.StatusCode), resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	loc := strings.TrimSpace(resp.Header.Get(headerLocation))
	if loc == "" {
		return "", ocr.MissingHandleError(resp.StatusCode)
	}
	return ocr.JobHandle(loc), nil
}

type readResponse struct {
	Status             string `json:"status,omitempty"`
	RecognitionResults []struct {
		Lines []ocr.Line `json:"lines"`
	} `json:"recognitionResults"`
}

// Poll waits PollDelay and then issues exactly one GET on the handle.
// Further retries are the caller's business.
func (c *Client) Poll(ctx context.Context, handle ocr.JobHandle) (ocr.RecognitionResult, error) {
	if err := c.clk.Sleep(ctx, c.cfg.PollDelay); err != nil {
		return ocr.RecognitionResult{}, &ocr.TransportError{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(handle), nil)
	if err != nil {
		return ocr.RecognitionResult{}, &ocr.TransportError{Reason: "invalid operation location", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerKey, c.cfg.SubscriptionKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return ocr.RecognitionResult{}, &ocr.TransportError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ocr.RecognitionResult{}, &ocr.TransportError{Status: resp.StatusCode, Reason: err.Error()}
	}
	if !ok2xx(resp.StatusCode) {
		return ocr.RecognitionResult{}, ocr.ClassifyHTTPError(http.StatusText(resp.StatusCode), resp.StatusCode, body)
	}

	var out readResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ocr.RecognitionResult{}, &ocr.TransportError{
			Status:  resp.StatusCode,
			Message: "malformed recognition result",
		}
	}
	// результат есть только у завершённой операции; NotStarted/Running/Failed — ошибка, а не пустой текст
	if out.Status != "" && !strings.EqualFold(out.Status, statusSucceeded) {
		return ocr.RecognitionResult{}, operationError(resp.StatusCode, out.Status)
	}
	// читаем только первую страницу, как и сервис для одиночного изображения
	if len(out.RecognitionResults) == 0 {
		return ocr.RecognitionResult{}, nil
	}
	return ocr.RecognitionResult{Lines: out.RecognitionResults[0].Lines}, nil
}

const (
	statusSucceeded = "Succeeded"
	statusFailed    = "Failed"
)

func operationError(code int, status string) *ocr.TransportError {
	if strings.EqualFold(status, statusFailed) {
		return &ocr.TransportError{Status: code, Message: "recognition failed"}
	}
	return &ocr.TransportError{Status: code, Message: "operation not complete: " + status}
}

func ok2xx(code int) bool { return code >= 200 && code < 300 }

func emit(n ocr.Notifier, s ocr.State) {
	if n != nil {
		n(s)
	}
}

func finish(out ocr.Outcome, n ocr.Notifier) ocr.Outcome {
	emit(n, out.State())
	return out
}
