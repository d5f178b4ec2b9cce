package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sop-assistant/internal/logger"
	"sop-assistant/internal/storage"
	"sop-assistant/models"
)

// ImageResolver turns durable image references into displayable URLs and
// inline uploads into durable references.
type ImageResolver struct {
	store storage.ObjectStore
	ttl   time.Duration
}

func NewImageResolver(store storage.ObjectStore, ttl time.Duration) *ImageResolver {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &ImageResolver{store: store, ttl: ttl}
}

func isAbsoluteHTTP(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Hydrate returns a copy of sections where every image with a storage path
// carries a fresh temporary URL. Absolute http(s) storage paths are used as
// the URL unchanged.
func (r *ImageResolver) Hydrate(ctx context.Context, sections []models.SOPSection) ([]models.SOPSection, error) {
	out := make([]models.SOPSection, len(sections))
	for i, s := range sections {
		images := make([]models.SOPImage, len(s.Images))
		for j, img := range s.Images {
			switch {
			case img.StoragePath == "":
			case isAbsoluteHTTP(img.StoragePath):
				img.URL = img.StoragePath
			default:
				signed, err := r.store.TemporaryURL(ctx, img.StoragePath, r.ttl)
				if err != nil {
					return nil, fmt.Errorf("sign image %s: %w", img.StoragePath, err)
				}
				img.URL = signed
			}
			images[j] = img
		}
		s.Images = images
		out[i] = s
	}
	return out, nil
}

// Ingest gives every image a durable reference before commit. Inline data
// URLs are uploaded; absolute http(s) URLs become their own reference.
// Images left without a reference are dropped.
func (r *ImageResolver) Ingest(ctx context.Context, sections []models.SOPSection) ([]models.SOPSection, error) {
	out := make([]models.SOPSection, len(sections))
	for i, s := range sections {
		images := make([]models.SOPImage, 0, len(s.Images))
		for _, img := range s.Images {
			if img.StoragePath == "" {
				switch {
				case storage.IsDataURI(img.URL):
					mimeType, data, err := storage.DecodeDataURI(img.URL)
					if err != nil {
						return nil, err
					}
					path, err := r.store.Upload(ctx, data, mimeType)
					if err != nil {
						return nil, fmt.Errorf("upload inline image: %w", err)
					}
					img.StoragePath = path
				case isAbsoluteHTTP(img.URL):
					img.StoragePath = img.URL
				default:
					logger.Warn("Dropping image without a durable reference",
						"section_id", s.ID, "keyword", img.Keyword)
					continue
				}
			}
			images = append(images, img)
		}
		s.Images = images
		out[i] = s
	}
	return out, nil
}
