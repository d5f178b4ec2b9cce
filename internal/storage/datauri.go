package storage

import (
	"encoding/base64"
	"fmt"
	"mime"
	"regexp"
	"strings"

	"sop-assistant/internal/apperr"

	"github.com/google/uuid"
)

var dataURIPattern = regexp.MustCompile(`^data:([A-Za-z0-9.+/-]+);base64,(.+)$`)

// DecodeDataURI splits a base64 data URL into its MIME type and payload.
func DecodeDataURI(uri string) (string, []byte, error) {
	m := dataURIPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if m == nil {
		return "", nil, apperr.Validation("無效的 base64 資料格式。", nil)
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", nil, apperr.Validation("無效的 base64 資料格式。", map[string]any{"error": err.Error()})
	}
	return m[1], data, nil
}

// IsDataURI reports whether s is an inline base64 data URL.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ObjectKey builds a unique key under uploads/ with an extension derived
// from mimeType.
func ObjectKey(mimeType string) string {
	return fmt.Sprintf("uploads/%s.%s", uuid.New().String(), extensionFor(mimeType))
}

var preferredExt = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/svg+xml":   "svg",
	"application/pdf": "pdf",
	"text/plain":      "txt",
	"text/markdown":   "md",
	"text/html":       "html",
	"text/csv":        "csv",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       "xlsx",
}

func extensionFor(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if ext, ok := preferredExt[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
