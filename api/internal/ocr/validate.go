package ocr

import (
	"path"
	"strings"

	"image-to-text/api/internal/util"
)

// Подтипы, которые принимает Read API. Сравнение без учёта регистра:
// исторический набор jpeg|jpg|png|PNG пропускал JPG и JPEG.
var acceptedSubtypes = map[string]struct{}{
	"jpeg": {},
	"jpg":  {},
	"png":  {},
}

// SubtypeFromFileName returns the text after the last dot, or "".
func SubtypeFromFileName(name string) string {
	ext := path.Ext(strings.TrimSpace(name))
	return strings.TrimPrefix(ext, ".")
}

func IsAcceptedSubtype(subtype string) bool {
	_, ok := acceptedSubtypes[strings.ToLower(strings.TrimSpace(subtype))]
	return ok
}

// Validate is a pure local check; it never touches the network.
func (p ImagePayload) Validate() error {
	if strings.TrimSpace(p.FileName) == "" {
		return ErrCancelled
	}
	if !IsAcceptedSubtype(p.Subtype) {
		if p.Subtype == "" {
			return &ValidationError{Reason: "file type is not supported"}
		}
		return &ValidationError{Reason: "file type " + p.Subtype + " is not supported"}
	}
	if len(p.Content) == 0 {
		return &ValidationError{Reason: "image is empty"}
	}
	return nil
}

// NewPayload builds a payload from raw bytes, taking the subtype from the
// file name extension.
func NewPayload(fileName string, content []byte) ImagePayload {
	return ImagePayload{
		Content:  content,
		Subtype:  SubtypeFromFileName(fileName),
		FileName: fileName,
	}
}

// PayloadFromCapture принимает ответ захвата камеры {fileName, fileContent(base64)}.
// Пустое имя файла — отмена, а не ошибка.
func PayloadFromCapture(fileName, fileContent string) (ImagePayload, error) {
	if strings.TrimSpace(fileName) == "" {
		return ImagePayload{}, ErrCancelled
	}
	p := NewPayload(fileName, nil)
	if !IsAcceptedSubtype(p.Subtype) {
		return p, p.Validate()
	}
	data, _, err := util.DecodeBase64MaybeDataURL(fileContent)
	if err != nil {
		return p, &ValidationError{Reason: "bad base64 content"}
	}
	p.Content = data
	return p, p.Validate()
}
