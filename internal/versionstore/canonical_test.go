package versionstore

import (
	"testing"

	"sop-assistant/models"
)

func TestCanonicalizeIgnoresKeyOrder(t *testing.T) {
	a := map[string]any{"b": 1, "a": "x", "c": map[string]any{"z": true, "y": nil}}
	b := map[string]any{"c": map[string]any{"y": nil, "z": true}, "a": "x", "b": 1}

	ca, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	cb, _ := Canonicalize(b)
	if ca != cb {
		t.Fatalf("key order changed the canonical form:\n%s\n%s", ca, cb)
	}
	want := `{"a":"x","b":1,"c":{"y":null,"z":true}}`
	if ca != want {
		t.Fatalf("got %s, want %s", ca, want)
	}
}

func TestCanonicalizeSortsArrayElements(t *testing.T) {
	got, err := Canonicalize([]any{"b", "a", 3, map[string]any{"k": 1}})
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := `["a","b",3,{"k":1}]`
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalizeDoesNotEscapeHTML(t *testing.T) {
	got, _ := Canonicalize(map[string]any{"content": "<b>A & B</b>"})
	want := `{"content":"<b>A & B</b>"}`
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCanonicalizeKeepsNumberText(t *testing.T) {
	got, _ := Canonicalize(map[string]any{"n": 1.5, "big": 12345678901234})
	want := `{"big":12345678901234,"n":1.5}`
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestContentHashSectionOrderInsensitive(t *testing.T) {
	s1 := models.SOPSection{ID: "1", Title: "出貨", Content: "step", Images: []models.SOPImage{}}
	s2 := models.SOPSection{ID: "2", Title: "退貨", Content: "step", Images: []models.SOPImage{}}

	h1, err := ContentHash([]models.SOPSection{s1, s2})
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	h2, _ := ContentHash([]models.SOPSection{s2, s1})
	if h1 != h2 {
		t.Fatalf("reordering sections changed the hash")
	}
	if len(h1) != 64 {
		t.Fatalf("expected hex sha256, got %q", h1)
	}

	s2.Content = "changed"
	h3, _ := ContentHash([]models.SOPSection{s1, s2})
	if h3 == h1 {
		t.Fatalf("content change did not change the hash")
	}
}

func TestSanitizeDropsURLs(t *testing.T) {
	in := []models.SOPSection{{
		ID:    "1",
		Title: "t",
		Images: []models.SOPImage{{
			URL:         "https://signed.example.com/a.png?X-Amz-Signature=abc",
			StoragePath: "uploads/a.png",
			Caption:     "cap",
			Keyword:     "出貨單",
		}},
	}, {ID: "2", Title: "no images"}}

	out := Sanitize(in)
	if out[0].Images[0].URL != "" {
		t.Fatalf("url should be stripped")
	}
	if out[0].Images[0].StoragePath != "uploads/a.png" || out[0].Images[0].Keyword != "出貨單" {
		t.Fatalf("durable fields lost: %+v", out[0].Images[0])
	}
	if out[1].Images == nil {
		t.Fatalf("nil images should become an empty slice")
	}
	if in[0].Images[0].URL == "" {
		t.Fatalf("input must not be mutated")
	}
}
