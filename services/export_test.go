package services

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestExportXLSX(t *testing.T) {
	data, err := ExportXLSX(sampleSections())
	if err != nil {
		t.Fatalf("ExportXLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sectionsSheet)
	if err != nil {
		t.Fatalf("read sections sheet: %v", err)
	}
	if len(rows) != 3 || rows[1][1] != "出貨流程" || rows[2][3] != "label, 包裝" {
		t.Fatalf("unexpected section rows: %v", rows)
	}

	images, err := f.GetRows(imagesSheet)
	if err != nil {
		t.Fatalf("read images sheet: %v", err)
	}
	if len(images) != 5 || images[1][4] != "uploads/pack.png" {
		t.Fatalf("unexpected image rows: %v", images)
	}
}

func TestExportJSON(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := ExportJSON(sampleSections(), now)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	var doc SnapshotExport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.Count != 2 || !doc.ExportedAt.Equal(now) || doc.Sections[1].ID != "s2" {
		t.Fatalf("unexpected export: %+v", doc)
	}
}
