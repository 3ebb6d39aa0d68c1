// Package i18n is the localized string lookup used by the hosts for status
// and error prose. Texts come from env-default tags, an optional YAML file
// and MSG_* environment variables, in increasing priority.
package i18n

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

type Key string

const (
	ImageProcessing       Key = "image_processing"
	ImageTypeNotSupported Key = "image_type_not_supported"
	TextSubmitted         Key = "text_submitted"
	NothingToBeParsed     Key = "nothing_to_be_parsed"
	RecognizedText        Key = "recognized_text"
	OCRError              Key = "ocr_error"
	Busy                  Key = "busy"
	Start                 Key = "start"
	EngineSwitched        Key = "engine_switched"
	UnknownEngine         Key = "unknown_engine"
	UnknownCommand        Key = "unknown_command"
	CachedResult          Key = "cached_result"
	Status                Key = "status"
	NoActiveRecognition   Key = "no_active_recognition"
)

type Messages struct {
	ImageProcessing       string `yaml:"image_processing" env:"MSG_IMAGE_PROCESSING" env-default:"Обрабатываю изображение…"`
	ImageTypeNotSupported string `yaml:"image_type_not_supported" env:"MSG_IMAGE_TYPE_NOT_SUPPORTED" env-default:"Этот тип файла не поддерживается. Пришлите JPEG или PNG."`
	TextSubmitted         string `yaml:"text_submitted" env:"MSG_TEXT_SUBMITTED" env-default:"Изображение отправлено, жду распознанный текст…"`
	NothingToBeParsed     string `yaml:"nothing_to_be_parsed" env:"MSG_NOTHING_TO_BE_PARSED" env-default:"На изображении не найден текст."`
	RecognizedText        string `yaml:"recognized_text" env:"MSG_RECOGNIZED_TEXT" env-default:"📝 Распознанный текст:"`
	OCRError              string `yaml:"ocr_error" env:"MSG_OCR_ERROR" env-default:"Ошибка OCR:"`
	Busy                  string `yaml:"busy" env:"MSG_BUSY" env-default:"Предыдущее фото ещё обрабатывается, подождите."`
	Start                 string `yaml:"start" env:"MSG_START" env-default:"Пришли фото — верну распознанный текст. Команды: /health, /engine, /status"`
	EngineSwitched        string `yaml:"engine_switched" env:"MSG_ENGINE_SWITCHED" env-default:"✅ Движок:"`
	UnknownEngine         string `yaml:"unknown_engine" env:"MSG_UNKNOWN_ENGINE" env-default:"Неизвестный движок. Доступны:"`
	UnknownCommand        string `yaml:"unknown_command" env:"MSG_UNKNOWN_COMMAND" env-default:"Неизвестная команда"`
	CachedResult          string `yaml:"cached_result" env:"MSG_CACHED_RESULT" env-default:"(из кэша)"`
	Status                string `yaml:"status" env:"MSG_STATUS" env-default:"Статус:"`
	NoActiveRecognition   string `yaml:"no_active_recognition" env:"MSG_NO_ACTIVE_RECOGNITION" env-default:"Сейчас ничего не распознаётся."`
}

// Load reads messages from path (YAML) when it is set, otherwise from the
// environment and defaults only.
func Load(path string) (*Messages, error) {
	var m Messages
	if strings.TrimSpace(path) != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("locale file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &m); err != nil {
			return nil, fmt.Errorf("read locale %s: %w", path, err)
		}
		return &m, nil
	}
	if err := cleanenv.ReadEnv(&m); err != nil {
		return nil, fmt.Errorf("read locale env: %w", err)
	}
	return &m, nil
}

// Get returns the text for key; unknown keys come back as the key itself.
func (m *Messages) Get(key Key) string {
	switch key {
	case ImageProcessing:
		return m.ImageProcessing
	case ImageTypeNotSupported:
		return m.ImageTypeNotSupported
	case TextSubmitted:
		return m.TextSubmitted
	case NothingToBeParsed:
		return m.NothingToBeParsed
	case RecognizedText:
		return m.RecognizedText
	case OCRError:
		return m.OCRError
	case Busy:
		return m.Busy
	case Start:
		return m.Start
	case EngineSwitched:
		return m.EngineSwitched
	case UnknownEngine:
		return m.UnknownEngine
	case UnknownCommand:
		return m.UnknownCommand
	case CachedResult:
		return m.CachedResult
	case Status:
		return m.Status
	case NoActiveRecognition:
		return m.NoActiveRecognition
	}
	return string(key)
}
