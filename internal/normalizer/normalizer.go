// Package normalizer turns loosely shaped chat backend replies into a
// canonical text answer plus a set of image URLs.
//
// Every step degrades to an empty value instead of failing, so Normalize
// always produces a best-effort Result.
package normalizer

import (
	"encoding/json"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Result is the canonical form of a chat reply.
type Result struct {
	Text      string   `json:"text"`
	ImageURLs []string `json:"imageUrls"`
}

// Normalizer resolves relative image locators against a base origin.
type Normalizer struct {
	origin *url.URL
	fields Fields
}

// New creates a Normalizer for replies coming from baseURL.
func New(baseURL string) *Normalizer {
	return NewWithFields(baseURL, DefaultFields)
}

// NewWithFields is New with custom synonym tables.
func NewWithFields(baseURL string, fields Fields) *Normalizer {
	return &Normalizer{origin: originOf(baseURL), fields: fields}
}

var bareURLPattern = regexp.MustCompile(`https?://[^\s<>"'()\[\]{}]+`)

// Normalize parses a raw response body.
func (n *Normalizer) Normalize(body string) Result {
	return n.NormalizeValue(parseLoose(body))
}

// NormalizeValue normalizes an already decoded JSON value.
func (n *Normalizer) NormalizeValue(parsed any) Result {
	var text string
	found := newURLSet()
	structured := false

	if root := rootObject(parsed); root != nil {
		final := root
		if nested := n.nestedPayload(root); nested != nil {
			final = nested
		}
		text = n.firstText(final)
		structured = text != ""
		n.collectImages(final, found)
	}

	objects := flatten(parsed)
	if text == "" {
		for _, obj := range objects {
			if text = n.firstText(obj); text != "" {
				structured = true
				break
			}
		}
	}
	// Buried images are a fallback; echoed history must not add to a reply
	// that already names its own images.
	if len(found.items) == 0 {
		for _, obj := range objects {
			n.collectImages(obj, found)
		}
	}

	if s, ok := parsed.(string); ok && text == "" {
		text = s
	}
	if !structured {
		for _, candidate := range n.bareImageURLs(text) {
			found.add(candidate)
		}
	}

	resolved := newURLSet()
	for _, raw := range found.items {
		if u, ok := n.resolve(raw); ok {
			resolved.add(u)
		}
	}

	return Result{
		Text:      strings.TrimSpace(text),
		ImageURLs: resolved.items,
	}
}

// parseLoose decodes body when it looks like JSON and returns it unchanged
// otherwise. A JSON-encoded string is unwrapped once.
func parseLoose(body string) any {
	trimmed := strings.TrimSpace(body)
	if v, ok := decodeJSON(trimmed); ok {
		return v
	}
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			if v, ok := decodeJSON(strings.TrimSpace(inner)); ok {
				return v
			}
			return inner
		}
	}
	return body
}

// decodeJSON parses s only if it opens like an object or array.
func decodeJSON(s string) (any, bool) {
	if !looksLikeJSON(s) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// rootObject picks the object a payload is read from: the value itself, or
// the first element of an array.
func rootObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		if len(t) == 0 {
			return nil
		}
		if obj, ok := t[0].(map[string]any); ok {
			return obj
		}
	}
	return nil
}

// nestedPayload unwraps one level of output/data wrapping.
func (n *Normalizer) nestedPayload(root map[string]any) map[string]any {
	for _, key := range n.fields.Nested {
		v, ok := root[key]
		if !ok {
			continue
		}
		if s, isString := v.(string); isString {
			parsed, ok := decodeJSON(strings.TrimSpace(s))
			if !ok {
				continue
			}
			v = parsed
		}
		if obj := rootObject(v); obj != nil {
			return obj
		}
	}
	return nil
}

// firstText returns the first non-empty string under a text field. Strings
// holding an embedded JSON object are skipped since flatten visits them;
// JSON without objects, such as "[1]", is the answer itself.
func (n *Normalizer) firstText(obj map[string]any) string {
	for _, key := range n.fields.Text {
		s, ok := obj[key].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		if parsed, isJSON := decodeJSON(strings.TrimSpace(s)); isJSON && len(flatten(parsed)) > 0 {
			continue
		}
		return s
	}
	return ""
}

func (n *Normalizer) collectImages(obj map[string]any, into *urlSet) {
	for _, key := range n.fields.Images {
		if v, ok := obj[key]; ok {
			n.collectURLValue(v, 0, into)
		}
	}
}

// collectURLValue flattens a string, an object with a URL field, or an array
// of either. Objects are followed one level deep.
func (n *Normalizer) collectURLValue(v any, depth int, into *urlSet) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if parsed, ok := decodeJSON(s); ok {
			n.collectURLValue(parsed, depth, into)
			return
		}
		if s != "" && !strings.ContainsAny(s, " \t\r\n") {
			into.add(s)
		}
	case []any:
		for _, item := range t {
			n.collectURLValue(item, depth, into)
		}
	case map[string]any:
		if depth >= 1 {
			return
		}
		for _, key := range n.fields.ObjectURL {
			if inner, ok := t[key]; ok {
				n.collectURLValue(inner, depth+1, into)
			}
		}
	}
}

// bareImageURLs finds absolute URLs in free text whose path carries an image
// extension. Other links are not treated as images.
func (n *Normalizer) bareImageURLs(text string) []string {
	var out []string
	for _, match := range bareURLPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:!?")
		u, err := url.Parse(match)
		if err != nil {
			continue
		}
		ext := strings.ToLower(path.Ext(u.Path))
		for _, allowed := range n.fields.ImageExtensions {
			if ext == allowed {
				out = append(out, match)
				break
			}
		}
	}
	return out
}

// resolve leaves absolute, data: and blob: URLs alone and resolves the rest
// against the base origin.
func (n *Normalizer) resolve(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	lower := strings.ToLower(s)
	for _, prefix := range []string{"http://", "https://", "data:", "blob:"} {
		if strings.HasPrefix(lower, prefix) {
			return s, true
		}
	}
	if n.origin == nil {
		return s, true
	}
	ref, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	return n.origin.ResolveReference(ref).String(), true
}

func originOf(base string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}

type urlSet struct {
	seen  map[string]struct{}
	items []string
}

func newURLSet() *urlSet {
	return &urlSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *urlSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
