package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"image-to-text/api/internal/ocr"
	"image-to-text/api/internal/util"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const systemPrompt = `Ты — OCR-модуль. Перепиши ВЕСЬ текст с изображения построчно, в порядке чтения.
Не переводи, не исправляй и не комментируй. Без markdown.
Если текста нет — верни пустой ответ.`

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string { return "gemini" }

func (e *Engine) Recognize(ctx context.Context, p ocr.ImagePayload, notify ocr.Notifier) ocr.Outcome {
	return ocr.Recognize(ctx, p, notify, e.recognize)
}

func (e *Engine) recognize(ctx context.Context, p ocr.ImagePayload) (ocr.RecognitionResult, error) {
	if e.APIKey == "" {
		return ocr.RecognitionResult{}, &ocr.TransportError{Reason: "gemini", Message: "GEMINI_API_KEY is empty"}
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return ocr.RecognitionResult{}, &ocr.TransportError{Reason: "gemini", Message: err.Error()}
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return ocr.RecognitionResult{}, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	parts := []genai.Part{
		genai.Text("Распознай текст на изображении."),
		&genai.Blob{MIMEType: mimeFor(p), Data: p.Content},
	}

	// ретраи на 5xx/транзиентные сбои
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			select {
			case <-ctx.Done():
				return ocr.RecognitionResult{}, &ocr.TransportError{Reason: ctx.Err().Error()}
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		return linesFromText(firstText(resp)), nil
	}
	return ocr.RecognitionResult{}, &ocr.TransportError{Reason: "gemini", Message: lastErr.Error()}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

// linesFromText режет ответ модели на непустые строки.
func linesFromText(txt string) ocr.RecognitionResult {
	var res ocr.RecognitionResult
	txt = util.StripCodeFences(txt)
	for _, s := range strings.Split(txt, "\n") {
		if s = strings.TrimSpace(s); s != "" {
			res.Lines = append(res.Lines, ocr.Line{Text: s})
		}
	}
	return res
}

func mimeFor(p ocr.ImagePayload) string {
	if strings.EqualFold(p.Subtype, "png") {
		return "image/png"
	}
	return "image/jpeg"
}

func ptrFloat32(v float32) *float32 { return &v }
