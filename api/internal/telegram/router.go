package telegram

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"image-to-text/api/internal/i18n"
	"image-to-text/api/internal/inflight"
	"image-to-text/api/internal/ocr"
	"image-to-text/api/internal/store"
)

const maxMessageLen = 3900

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// History — кэш и журнал распознаваний (store.RecognitionRepo).
type History interface {
	FindByHash(ctx context.Context, imageHash, engine string, maxAge time.Duration) (*store.Recognition, error)
	Insert(ctx context.Context, rec *store.Recognition) error
}

type Router struct {
	Bot        Bot
	EngManager *ocr.Manager
	Msg        *i18n.Messages
	Log        *slog.Logger

	// необязательные: nil отключает кэш/журнал и блокировку по чату
	History     History
	CacheMaxAge time.Duration
	Gate        *inflight.Gate

	HTTPClient *http.Client
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message

	if msg.IsCommand() {
		r.HandleCommand(ctx, msg)
		return
	}

	// фото: берём самое большое превью
	if len(msg.Photo) > 0 {
		ph := msg.Photo[len(msg.Photo)-1]
		r.acceptImage(ctx, msg, ph.FileID, "")
		return
	}
	// картинка, присланная файлом: имя файла решает, примем ли мы её
	if msg.Document != nil {
		r.acceptImage(ctx, msg, msg.Document.FileID, msg.Document.FileName)
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.send(cid, r.Msg.Get(i18n.Start))
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	case "status":
		r.handleStatusCommand(ctx, cid)
	default:
		r.send(cid, r.Msg.Get(i18n.UnknownCommand))
	}
}

// handleEngineCommand: "/engine" показывает текущий движок, "/engine <name>" переключает.
func (r *Router) handleEngineCommand(chatID int64, args string) {
	names := strings.Join(r.EngManager.Names(), " | ")
	fields := strings.Fields(args)
	if len(fields) == 0 {
		r.send(chatID, r.Msg.Get(i18n.EngineSwitched)+" "+r.EngManager.Get(chatID).Name()+"\n/engine "+names)
		return
	}
	eng, ok := r.EngManager.Lookup(fields[0])
	if !ok {
		r.send(chatID, r.Msg.Get(i18n.UnknownEngine)+" "+names)
		return
	}
	r.EngManager.Set(chatID, eng)
	r.send(chatID, r.Msg.Get(i18n.EngineSwitched)+" "+eng.Name())
}

// handleStatusCommand показывает последнее состояние распознавания в чате.
func (r *Router) handleStatusCommand(ctx context.Context, chatID int64) {
	if r.Gate == nil {
		r.send(chatID, r.Msg.Get(i18n.NoActiveRecognition))
		return
	}
	rec, err := r.Gate.State(ctx, chatID)
	if err != nil {
		r.logger().Warn("inflight state lookup failed", "chat_id", chatID, "err", err)
		r.send(chatID, r.Msg.Get(i18n.OCRError)+" status unavailable")
		return
	}
	if rec.State == ocr.StateIdle {
		r.send(chatID, r.Msg.Get(i18n.NoActiveRecognition))
		return
	}
	text := r.Msg.Get(i18n.Status) + " " + string(rec.State)
	if rec.FileName != "" {
		text += " (" + rec.FileName + ")"
	}
	if !rec.UpdatedAt.IsZero() {
		text += ", " + rec.UpdatedAt.UTC().Format("15:04:05") + " UTC"
	}
	r.send(chatID, text)
}

func (r *Router) send(chatID int64, text string) {
	r.reply(chatID, 0, text)
}

func (r *Router) reply(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	if _, err := r.Bot.Send(msg); err != nil {
		r.logger().Warn("telegram send failed", "chat_id", chatID, "err", err)
	}
}

// SendOutcome renders one recognition outcome as a reply.
// Cancelled runs produce no message.
func (r *Router) SendOutcome(chatID int64, replyTo int, out ocr.Outcome, cached bool) {
	var text string
	switch out.Kind {
	case ocr.OutcomeSuccess:
		text = r.Msg.Get(i18n.RecognizedText) + "\n\n" + truncate(out.Text, maxMessageLen)
		if cached {
			text += "\n\n" + r.Msg.Get(i18n.CachedResult)
		}
	case ocr.OutcomeEmpty:
		text = r.Msg.Get(i18n.NothingToBeParsed)
	case ocr.OutcomeValidation:
		text = r.Msg.Get(i18n.ImageTypeNotSupported)
	case ocr.OutcomeTransport:
		text = r.Msg.Get(i18n.OCRError) + " " + out.Err().Error()
	default:
		return
	}
	r.reply(chatID, replyTo, text)
}

func (r *Router) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// truncate режет по рунам, чтобы не ломать UTF-8.
func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "…"
}
