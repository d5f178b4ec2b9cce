package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sop-assistant/internal/logger"
	"sop-assistant/models"

	"github.com/xuri/excelize/v2"
)

const (
	sectionsSheet = "SOP Sections"
	imagesSheet   = "Images"
)

// SnapshotExport is the JSON export document.
type SnapshotExport struct {
	ExportedAt time.Time           `json:"exportedAt"`
	Count      int                 `json:"count"`
	Sections   []models.SOPSection `json:"sections"`
}

// ExportJSON renders the snapshot as indented JSON.
func ExportJSON(sections []models.SOPSection, now time.Time) ([]byte, error) {
	return json.MarshalIndent(SnapshotExport{
		ExportedAt: now,
		Count:      len(sections),
		Sections:   sections,
	}, "", "  ")
}

// ExportXLSX renders one row per section and one row per image on a
// second sheet.
func ExportXLSX(sections []models.SOPSection) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", sectionsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(imagesSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	writeRow := func(sheet string, row int, values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &values)
	}

	if err := writeRow(sectionsSheet, 1, "ID", "Title", "Content", "Image Keywords"); err != nil {
		return nil, err
	}
	if err := writeRow(imagesSheet, 1, "Section ID", "Section Title", "Keyword", "Caption", "Storage Path"); err != nil {
		return nil, err
	}
	f.SetCellStyle(sectionsSheet, "A1", "D1", headerStyle)
	f.SetCellStyle(imagesSheet, "A1", "E1", headerStyle)

	imageRow := 2
	for i, s := range sections {
		if err := writeRow(sectionsSheet, i+2, s.ID, s.Title, s.Content, strings.Join(imageKeywords(s.Images), ", ")); err != nil {
			return nil, fmt.Errorf("write section row: %w", err)
		}
		for _, img := range s.Images {
			if err := writeRow(imagesSheet, imageRow, s.ID, s.Title, img.Keyword, img.Caption, img.StoragePath); err != nil {
				return nil, fmt.Errorf("write image row: %w", err)
			}
			imageRow++
		}
	}

	f.SetColWidth(sectionsSheet, "B", "B", 30)
	f.SetColWidth(sectionsSheet, "C", "C", 80)
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
