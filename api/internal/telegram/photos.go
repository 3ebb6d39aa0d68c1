package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"image-to-text/api/internal/i18n"
	"image-to-text/api/internal/ocr"
	"image-to-text/api/internal/store"
	"image-to-text/api/internal/util"
)

const maxDownload = 20 << 20 // лимит Telegram Bot API на getFile

// acceptImage скачивает файл, прогоняет его через движок чата и отвечает на исходное сообщение.
func (r *Router) acceptImage(ctx context.Context, msg *tgbotapi.Message, fileID, fileName string) {
	cid := msg.Chat.ID
	log := r.logger().With("chat_id", cid, "message_id", msg.MessageID)

	if r.Gate != nil {
		token, ok, err := r.Gate.Acquire(ctx, cid)
		if err != nil {
			log.Warn("inflight gate unavailable", "err", err)
		} else if !ok {
			r.reply(cid, msg.MessageID, r.Msg.Get(i18n.Busy))
			return
		} else {
			defer func() {
				if err := r.Gate.Release(context.WithoutCancel(ctx), cid, token); err != nil {
					log.Warn("inflight release failed", "err", err)
				}
			}()
		}
	}

	fileURL, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		log.Warn("telegram getFile failed", "err", scrubToken(err))
		r.SendOutcome(cid, msg.MessageID, ocr.Failure(&ocr.TransportError{Reason: "Telegram getFile failed.", Message: scrubToken(err)}), false)
		return
	}
	data, err := r.download(ctx, fileURL)
	if err != nil {
		log.Warn("telegram file download failed", "err", err)
		r.SendOutcome(cid, msg.MessageID, ocr.Failure(err), false)
		return
	}
	if fileName == "" {
		fileName = fileNameFor(fileURL, data)
	}

	payload := ocr.NewPayload(fileName, data)
	eng := r.EngManager.Get(cid)
	hash := util.SHA256Hex(data)
	log = log.With("engine", eng.Name(), "file", fileName)

	if r.History != nil && payload.Validate() == nil {
		rec, err := r.History.FindByHash(ctx, hash, eng.Name(), r.CacheMaxAge)
		switch {
		case err == nil:
			log.Info("recognition served from cache", "id", rec.ID)
			r.SendOutcome(cid, msg.MessageID, rec.Outcome(), true)
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("history lookup failed", "err", err)
		}
	}

	notify := r.statusNotifier(cid, msg.MessageID)
	if r.Gate != nil {
		notify = r.Gate.Notifier(ctx, cid, fileName, notify)
	}

	started := time.Now()
	out := eng.Recognize(ctx, payload, notify)
	log.Info("recognition finished", "kind", out.Kind, "took", time.Since(started), "err", out.Err())

	if r.History != nil && out.Kind != ocr.OutcomeCancelled {
		if err := r.History.Insert(context.WithoutCancel(ctx), store.FromOutcome(cid, hash, eng.Name(), fileName, out)); err != nil {
			log.Warn("history insert failed", "err", err)
		}
	}
	r.SendOutcome(cid, msg.MessageID, out, false)
}

// statusNotifier shows progress messages; terminal states are rendered by SendOutcome.
func (r *Router) statusNotifier(chatID int64, replyTo int) ocr.Notifier {
	return func(s ocr.State) {
		switch s {
		case ocr.StateUploading:
			r.reply(chatID, replyTo, r.Msg.Get(i18n.ImageProcessing))
		case ocr.StatePolling:
			r.reply(chatID, replyTo, r.Msg.Get(i18n.TextSubmitted))
		}
	}
}

// download тянет файл по прямой ссылке. Ссылка содержит токен бота,
// поэтому в ошибки она не попадает.
func (r *Router) download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, &ocr.TransportError{Reason: "Download failed.", Message: "bad file url"}
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, &ocr.TransportError{Reason: "Download failed.", Message: scrubToken(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, ocr.ClassifyHTTPError(http.StatusText(resp.StatusCode), resp.StatusCode, b)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, &ocr.TransportError{Reason: "Download failed.", Message: scrubToken(err)}
	}
	if len(data) > maxDownload {
		return nil, &ocr.ValidationError{Reason: fmt.Sprintf("image is larger than %d bytes", maxDownload)}
	}
	return data, nil
}

var reBotToken = regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]+`)

// scrubToken убирает URL из *url.Error и вырезает токен из остального текста.
func scrubToken(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		err = ue.Err
	}
	return reBotToken.ReplaceAllString(err.Error(), "bot<token>")
}

func (r *Router) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// fileNameFor берёт имя из пути файла; без расширения подставляет подтип по байтам.
func fileNameFor(fileURL string, data []byte) string {
	name := path.Base(strings.SplitN(fileURL, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "photo"
	}
	if ocr.SubtypeFromFileName(name) == "" {
		if sub := util.SniffSubtype(data); sub != "" {
			name += "." + sub
		}
	}
	return name
}
