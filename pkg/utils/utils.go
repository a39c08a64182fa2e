package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ConvertFileToBase64(file multipart.File) (string, error)
	DecodeFramePayload(payload []byte) ([]byte, error)
	DetectImageMIME(filename string, data []byte) string
}

type utils struct {
	maxFileSize int64
}

func New() IUtils {
	return &utils{
		maxFileSize: 5 * 1024 * 1024,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return errors.New("no file uploaded")
	}

	if file.Size > u.maxFileSize {
		return errors.New("file size exceeds limit")
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return errors.New("uploaded file is not an image")
	}

	return nil
}

func (u *utils) ConvertFileToBase64(file multipart.File) (string, error) {
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}

	base64Encoded := base64.StdEncoding.EncodeToString(fileBytes)
	return base64Encoded, nil
}

// DecodeFramePayload turns a producer's frame payload into raw image bytes.
// Payloads may be bare base64 or carry a "<mime>;base64," data-URL prefix,
// which is stripped before decoding.
func (u *utils) DecodeFramePayload(payload []byte) ([]byte, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return nil, errors.New("empty frame payload")
	}

	if idx := strings.Index(text, ";base64,"); idx != -1 {
		text = text[idx+len(";base64,"):]
	}

	decoded, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, errors.New("malformed base64 frame payload")
	}
	if len(decoded) == 0 {
		return nil, errors.New("empty frame payload")
	}

	return decoded, nil
}

// DetectImageMIME prefers the filename extension and falls back to content
// sniffing, defaulting to JPEG.
func (u *utils) DetectImageMIME(filename string, data []byte) string {
	if ext := filepath.Ext(filename); ext != "" {
		if mimeType := mime.TypeByExtension(strings.ToLower(ext)); strings.HasPrefix(mimeType, "image/") {
			return mimeType
		}
	}

	if len(data) > 0 {
		limit := len(data)
		if limit > 512 {
			limit = 512
		}
		if sniffed := http.DetectContentType(data[:limit]); strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}

	return "image/jpeg"
}
