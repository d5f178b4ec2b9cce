package services

import (
	"fmt"
	"regexp"
	"strings"

	"sop-assistant/models"
)

// BuildKnowledgeContext renders the snapshot as plain text for the model.
// Image URLs are never included; only the keywords the model may cite.
func BuildKnowledgeContext(sections []models.SOPSection) string {
	blocks := make([]string, 0, len(sections))
	for _, s := range sections {
		block := fmt.Sprintf("--- SOP: %s ---\n%s", s.Title, s.Content)
		if keywords := imageKeywords(s.Images); len(keywords) > 0 {
			block += fmt.Sprintf("\n[可用圖片關鍵字: %s]", strings.Join(keywords, ", "))
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

func imageKeywords(images []models.SOPImage) []string {
	var keywords []string
	for _, img := range images {
		if img.Attachable() {
			keywords = append(keywords, img.Keyword)
		}
	}
	return keywords
}

// BuildChatPrompt wraps the knowledge context and the question with the
// image-marker instruction.
func BuildChatPrompt(knowledgeContext, userInput string) string {
	return "請根據以下 SOP 知識庫回答使用者的問題。如果回覆內容涉及特定步驟且有對應的「可用圖片關鍵字」，" +
		"請務必在回覆中包含該關鍵字（格式如：[顯示圖片: 關鍵字]）。\n\n" +
		"知識庫內容：\n" + knowledgeContext + "\n\n使用者問題：" + userInput
}

// MatchImages returns the URLs of every image whose keyword occurs in text,
// case-insensitively and literally. URLs are unique, in snapshot order.
func MatchImages(text string, sections []models.SOPSection) []string {
	urls := []string{}
	if text == "" {
		return urls
	}
	seen := map[string]bool{}
	for _, s := range sections {
		for _, img := range s.Images {
			if !img.Attachable() || img.URL == "" || seen[img.URL] {
				continue
			}
			pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(img.Keyword))
			if err != nil {
				continue
			}
			if pattern.MatchString(text) {
				seen[img.URL] = true
				urls = append(urls, img.URL)
			}
		}
	}
	return urls
}

// MergeURLs appends extra to base, skipping duplicates.
func MergeURLs(base []string, extra ...[]string) []string {
	out := make([]string, 0, len(base))
	seen := map[string]bool{}
	for _, list := range append([][]string{base}, extra...) {
		for _, u := range list {
			if u != "" && !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}
