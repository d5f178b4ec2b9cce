package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sop-assistant/internal/apperr"
)

func TestDecodeDataURI(t *testing.T) {
	mimeType, data, err := DecodeDataURI("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if mimeType != "image/png" || string(data) != "hello" {
		t.Fatalf("got %s %q", mimeType, data)
	}

	docx := "data:application/vnd.openxmlformats-officedocument.wordprocessingml.document;base64,UEs="
	if mimeType, _, err := DecodeDataURI(docx); err != nil || !strings.Contains(mimeType, "wordprocessingml") {
		t.Fatalf("docx data url rejected: %s %v", mimeType, err)
	}
}

func TestDecodeDataURIRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "aGVsbG8=", "data:image/png,hello", "data:image/png;base64,@@@"} {
		if _, _, err := DecodeDataURI(in); !errors.Is(err, apperr.ErrValidationFailure) {
			t.Errorf("DecodeDataURI(%q) = %v, want validation failure", in, err)
		}
	}
}

func TestObjectKeyExtension(t *testing.T) {
	cases := map[string]string{
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"application/pdf": ".pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
		"application/x-unknown-thing": ".bin",
	}
	for mimeType, ext := range cases {
		key := ObjectKey(mimeType)
		if !strings.HasPrefix(key, "uploads/") || !strings.HasSuffix(key, ext) {
			t.Errorf("ObjectKey(%s) = %s, want uploads/*%s", mimeType, key, ext)
		}
	}
	if ObjectKey("image/png") == ObjectKey("image/png") {
		t.Fatalf("keys must be unique")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("https://files.test")
	ctx := context.Background()

	key, err := store.Upload(ctx, []byte("img"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	u, err := store.TemporaryURL(ctx, key, time.Hour)
	if err != nil || !strings.HasPrefix(u, "https://files.test/"+key) {
		t.Fatalf("unexpected url %q (%v)", u, err)
	}
	data, err := store.Download(ctx, key)
	if err != nil || string(data) != "img" {
		t.Fatalf("download mismatch %q %v", data, err)
	}
	if _, err := store.TemporaryURL(ctx, "uploads/missing.png", time.Hour); err == nil {
		t.Fatalf("expected error for a missing object")
	}
}
