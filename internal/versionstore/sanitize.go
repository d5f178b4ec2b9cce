package versionstore

import (
	"fmt"

	"sop-assistant/internal/apperr"
	"sop-assistant/models"
)

// Sanitize drops transient, environment-dependent fields. Images keep only
// their durable storage reference, caption and keyword.
func Sanitize(sections []models.SOPSection) []models.SOPSection {
	out := make([]models.SOPSection, 0, len(sections))
	for _, s := range sections {
		images := make([]models.SOPImage, 0, len(s.Images))
		for _, img := range s.Images {
			images = append(images, models.SOPImage{
				StoragePath: img.StoragePath,
				Caption:     img.Caption,
				Keyword:     img.Keyword,
			})
		}
		out = append(out, models.SOPSection{
			ID:      s.ID,
			Title:   s.Title,
			Content: s.Content,
			Images:  images,
		})
	}
	return out
}

// Validate checks that every section has an id and ids are unique.
func Validate(sections []models.SOPSection) error {
	seen := make(map[string]int, len(sections))
	for i, s := range sections {
		if s.ID == "" {
			return apperr.Validation(fmt.Sprintf("第 %d 個區段缺少 id。", i+1), map[string]any{"index": i})
		}
		if prev, ok := seen[s.ID]; ok {
			return apperr.Validation("區段 id 重複。", map[string]any{"id": s.ID, "indexes": []int{prev, i}})
		}
		seen[s.ID] = i
	}
	return nil
}
