package versionstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sop-assistant/models"
)

// Canonicalize renders v as a string that does not depend on object key
// order or on array element order.
//
// Arrays render as their canonical elements sorted lexicographically, so two
// arrays holding the same elements in a different order are equal. Stored
// content hashes depend on this; it must not change.
func Canonicalize(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal for canonicalization: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("decode for canonicalization: %w", err)
	}
	return canonical(generic), nil
}

func canonical(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = canonical(item)
		}
		sort.Strings(parts)
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = scalar(k) + ":" + canonical(t[k])
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return scalar(t)
	}
}

// scalar encodes like JSON.stringify: no HTML escaping.
func scalar(v any) string {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Hash returns the hex SHA-256 digest of the canonical form of v.
func Hash(v any) (string, error) {
	s, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}

// hashedImage and hashedSection fix the field names that feed the digest.
// They match the names used by versions written before this service.
type hashedImage struct {
	GCSPath string `json:"gcsPath"`
	Caption string `json:"caption"`
	Keyword string `json:"keyword"`
}

type hashedSection struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Content string        `json:"content"`
	Images  []hashedImage `json:"images"`
}

// ContentHash digests already sanitized sections.
func ContentHash(sections []models.SOPSection) (string, error) {
	view := make([]hashedSection, 0, len(sections))
	for _, s := range sections {
		images := make([]hashedImage, 0, len(s.Images))
		for _, img := range s.Images {
			images = append(images, hashedImage{GCSPath: img.StoragePath, Caption: img.Caption, Keyword: img.Keyword})
		}
		view = append(view, hashedSection{ID: s.ID, Title: s.Title, Content: s.Content, Images: images})
	}
	return Hash(view)
}
