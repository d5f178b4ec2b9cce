package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"sop-assistant/internal/apperr"
	"sop-assistant/internal/crawler"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ImageOnlyPlaceholder is sent to the structuring model when a document has
// no extractable text.
const ImageOnlyPlaceholder = "（這是一個純圖片或 PDF 上傳，無法提取文字內容，請手動輸入步驟）"

const maxExtractBytes = 200 << 20

// DocumentKind groups MIME types by extraction strategy.
type DocumentKind string

const (
	KindPDF   DocumentKind = "pdf"
	KindDOCX  DocumentKind = "docx"
	KindXLSX  DocumentKind = "xlsx"
	KindHTML  DocumentKind = "html"
	KindText  DocumentKind = "text"
	KindImage DocumentKind = "image"
)

// ClassifyMIME maps a MIME type to an extraction strategy.
func ClassifyMIME(mimeType string) (DocumentKind, bool) {
	m := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch {
	case m == "application/pdf":
		return KindPDF, true
	case strings.Contains(m, "wordprocessingml"):
		return KindDOCX, true
	case strings.Contains(m, "spreadsheetml"):
		return KindXLSX, true
	case m == "text/html" || m == "application/xhtml+xml":
		return KindHTML, true
	case strings.HasPrefix(m, "text/") || m == "application/json":
		return KindText, true
	case strings.HasPrefix(m, "image/"):
		return KindImage, true
	}
	return "", false
}

// ExtractText pulls plain text out of a document. Documents without any
// text yield ImageOnlyPlaceholder.
func ExtractText(mimeType string, data []byte) (string, error) {
	if len(data) > maxExtractBytes {
		return "", apperr.ParseFailure("檔案過大，無法解析。", nil)
	}
	kind, ok := ClassifyMIME(mimeType)
	if !ok {
		return "", apperr.ParseFailure(fmt.Sprintf("不支援的檔案類型：%s", mimeType), nil)
	}

	var (
		text string
		err  error
	)
	switch kind {
	case KindPDF:
		text, err = extractPDF(data)
	case KindDOCX:
		text, err = extractDOCX(data)
	case KindXLSX:
		text, err = extractXLSX(data)
	case KindHTML:
		var page *crawler.Page
		page, err = crawler.ParseHTML("", string(data))
		if err == nil {
			text = page.Content
		}
	case KindText:
		text = string(data)
	case KindImage:
		return ImageOnlyPlaceholder, nil
	}
	if err != nil {
		return "", apperr.ParseFailure("無法讀取文件內容。", err)
	}

	if text = strings.TrimSpace(text); text == "" {
		return ImageOnlyPlaceholder, nil
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(make(map[string]*pdf.Font))
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// extractDOCX walks word/document.xml, emitting text runs with paragraph,
// tab and line breaks preserved.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx has no word/document.xml")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	var (
		b      strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(io.LimitReader(rc, maxExtractBytes))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteString("\t")
			case "br", "cr":
				b.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", sheet)
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line != "" {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
