package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sop-assistant/internal/ai"
	"sop-assistant/internal/apperr"
	"sop-assistant/internal/crawler"
	"sop-assistant/internal/logger"
	"sop-assistant/internal/storage"
	"sop-assistant/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const imagePlaceholder = "extracted_image"

var placeholderIndex = regexp.MustCompile(`extracted_image_(\d+)`)

// StructurerSource hands out the document-structuring model. *ai.Clients
// satisfies it.
type StructurerSource interface {
	Structurer() (ai.Structurer, error)
}

// ParseRecorder receives parse timings. telemetry.Metrics satisfies it.
type ParseRecorder interface {
	RecordParse(duration float64, mimeType, status string)
}

// SOPParser turns uploaded documents and web pages into review drafts.
type SOPParser struct {
	store    storage.ObjectStore
	source   StructurerSource
	ttl      time.Duration
	recorder ParseRecorder
}

func NewSOPParser(store storage.ObjectStore, source StructurerSource, ttl time.Duration, recorder ParseRecorder) *SOPParser {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SOPParser{store: store, source: source, ttl: ttl, recorder: recorder}
}

// DecodeUpload decodes a base64 data URL. An explicit mimeType overrides
// the one in the data URL.
func DecodeUpload(dataURL, mimeType string) (string, []byte, error) {
	declared, data, err := storage.DecodeDataURI(dataURL)
	if err != nil {
		return "", nil, err
	}
	if mimeType == "" {
		mimeType = declared
	}
	return mimeType, data, nil
}

// Stage uploads the original document so it can be parsed later.
func (p *SOPParser) Stage(ctx context.Context, mimeType string, data []byte) (string, error) {
	if _, ok := ClassifyMIME(mimeType); !ok {
		return "", apperr.ParseFailure(fmt.Sprintf("不支援的檔案類型：%s", mimeType), nil)
	}
	path, err := p.store.Upload(ctx, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("upload original document: %w", err)
	}
	return path, nil
}

// ParseDocument uploads the original, then extracts and structures it.
func (p *SOPParser) ParseDocument(ctx context.Context, mimeType string, data []byte) (*models.PendingSOP, error) {
	path, err := p.Stage(ctx, mimeType, data)
	if err != nil {
		return nil, err
	}
	return p.parseUploaded(ctx, path, mimeType, data)
}

// ParseStored parses a document previously staged at path.
func (p *SOPParser) ParseStored(ctx context.Context, path, mimeType string) (*models.PendingSOP, error) {
	data, err := p.store.Download(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("download staged document: %w", err)
	}
	return p.parseUploaded(ctx, path, mimeType, data)
}

func (p *SOPParser) parseUploaded(ctx context.Context, path, mimeType string, data []byte) (draft *models.PendingSOP, err error) {
	ctx, span := otel.Tracer("sop-parser").Start(ctx, "sop.parse_document")
	defer span.End()
	span.SetAttributes(attribute.String("parse.mime_type", mimeType), attribute.Int("parse.size", len(data)))

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		if p.recorder != nil {
			p.recorder.RecordParse(time.Since(start).Seconds(), mimeType, status)
		}
	}()

	text, err := ExtractText(mimeType, data)
	if err != nil {
		return nil, err
	}

	draft, err = p.structure(ctx, text)
	if err != nil {
		return nil, err
	}

	signed, err := p.store.TemporaryURL(ctx, path, p.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign uploaded document: %w", err)
	}
	upload := models.SOPImage{URL: signed, StoragePath: path}
	AttachUpload(draft, upload, strings.HasPrefix(strings.ToLower(mimeType), "image/"))

	logger.Info("Document parsed into draft", "mime_type", mimeType, "storage_path", path, "sections", len(draft.Sections))
	return draft, nil
}

// AttachUpload points placeholder images at the uploaded original. Image
// uploads are also attached to the first section so they are never lost.
func AttachUpload(draft *models.PendingSOP, upload models.SOPImage, isImage bool) {
	for i := range draft.Sections {
		s := &draft.Sections[i]
		for j := range s.Images {
			if strings.Contains(s.Images[j].URL, imagePlaceholder) {
				s.Images[j].URL = upload.URL
				s.Images[j].StoragePath = upload.StoragePath
				s.Images[j].Keyword = s.Title
			}
		}
	}

	if isImage && len(draft.Sections) > 0 {
		first := &draft.Sections[0]
		first.Images = append(first.Images, models.SOPImage{
			URL:         upload.URL,
			StoragePath: upload.StoragePath,
			Caption:     "上傳的圖片",
			Keyword:     first.Title,
		})
	}
}

// ImportPage fetches a web page and structures its main content. Image
// placeholders resolve to the page's own images by index.
func (p *SOPParser) ImportPage(ctx context.Context, pageURL string, renderJS bool) (*models.PendingSOP, error) {
	page, err := crawler.FetchPage(ctx, crawler.FetchConfig{
		URL:              pageURL,
		Timeout:          30 * time.Second,
		RenderJS:         renderJS,
		RenderTimeout:    45 * time.Second,
		NetworkIdleAfter: time.Second,
	})
	if err != nil {
		return nil, apperr.ParseFailure("無法擷取網頁內容。", err)
	}

	var b strings.Builder
	if page.Title != "" {
		b.WriteString("# " + page.Title + "\n\n")
	}
	b.WriteString(page.Content)
	if len(page.ImageURLs) > 0 {
		b.WriteString("\n\n頁面圖片：\n")
		for i := range page.ImageURLs {
			fmt.Fprintf(&b, "%s_%d\n", imagePlaceholder, i)
		}
	}

	draft, err := p.structure(ctx, b.String())
	if err != nil {
		return nil, err
	}
	ResolvePageImages(draft, page.ImageURLs)
	return draft, nil
}

// ResolvePageImages replaces extracted_image_<n> with the n-th page image
// and drops placeholders that do not resolve.
func ResolvePageImages(draft *models.PendingSOP, imageURLs []string) {
	for i := range draft.Sections {
		s := &draft.Sections[i]
		kept := s.Images[:0]
		for _, img := range s.Images {
			if m := placeholderIndex.FindStringSubmatch(img.URL); m != nil {
				idx, _ := strconv.Atoi(m[1])
				if idx >= len(imageURLs) {
					continue
				}
				img.URL = imageURLs[idx]
				img.StoragePath = imageURLs[idx]
				if img.Keyword == "" {
					img.Keyword = s.Title
				}
			}
			kept = append(kept, img)
		}
		s.Images = kept
	}
}

func (p *SOPParser) structure(ctx context.Context, text string) (*models.PendingSOP, error) {
	structurer, err := p.source.Structurer()
	if err != nil {
		return nil, fmt.Errorf("structuring model unavailable: %w", err)
	}
	raw, err := structurer.ParseStructure(ctx, text)
	if err != nil {
		return nil, apperr.ParseFailure("AI 解析失敗，請稍後再試。", err)
	}
	return DecodePendingSOP(raw)
}

// DecodePendingSOP accepts {"sections": [...]} or a bare array, optionally
// wrapped in a markdown code fence.
func DecodePendingSOP(raw []byte) (*models.PendingSOP, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.HasPrefix(trimmed, []byte("```")) {
		trimmed = bytes.TrimPrefix(trimmed, []byte("```json"))
		trimmed = bytes.TrimPrefix(trimmed, []byte("```"))
		trimmed = bytes.TrimSuffix(bytes.TrimSpace(trimmed), []byte("```"))
		trimmed = bytes.TrimSpace(trimmed)
	}

	draft := &models.PendingSOP{}
	var err error
	if bytes.HasPrefix(trimmed, []byte("[")) {
		err = json.Unmarshal(trimmed, &draft.Sections)
	} else {
		err = json.Unmarshal(trimmed, draft)
	}
	if err != nil {
		return nil, apperr.ParseFailure("AI 回傳的格式無法解析。", err)
	}
	if draft.Sections == nil {
		draft.Sections = []models.PendingSOPSection{}
	}
	return draft, nil
}
