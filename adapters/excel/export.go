package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"qcgallery/domain/inspection"

	"github.com/xuri/excelize/v2"
)

const (
	inspectionsSheet = "Inspections"
	summarySheet     = "Summary"
)

var exportHeaders = []string{
	"inspection_id", "factory_id", "camera_id", "timestamp", "date", "prediction",
	"confidence_score", "defect_type", "inference_time_ms", "model_version", "image_path",
}

// Exporter writes one page of inspections as a spreadsheet or CSV
type Exporter struct {
	generated func() time.Time
}

// NewExporter creates an exporter stamping files with the current time
func NewExporter() *Exporter {
	return &Exporter{generated: time.Now}
}

// WriteXLSX writes the page rows and a stats sheet as an .xlsx workbook
func (e *Exporter) WriteXLSX(w io.Writer, page inspection.Page, stats inspection.Stats, filters map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", inspectionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, name := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(inspectionsSheet, cell, name); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(inspectionsSheet, 1, 1, header); err != nil {
		return err
	}
	for i, it := range page.Items {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(inspectionsSheet, cell, &[]interface{}{
			it.InspectionID, it.FactoryID, it.CameraID, it.Timestamp.UTC().Format(time.RFC3339), it.Date.String(),
			string(it.Prediction), it.ConfidenceScore, defectOf(it), it.InferenceTimeMS, it.ModelVersion, it.ImagePath,
		}); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(inspectionsSheet, "A", "K", 18); err != nil {
		return err
	}
	if err := f.SetPanes(inspectionsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	rows := [][]interface{}{
		{"generated_at", e.generated().UTC().Format(time.RFC3339)},
		{"page", page.Page},
		{"per_page", page.PageSize},
		{"total_pages", page.TotalPages},
		{"total", stats.TotalAll},
		{"filtered", stats.TotalMatching},
		{"ok_count", stats.OKCount},
		{"ko_count", stats.KOCount},
	}
	for _, key := range sortedKeys(filters) {
		rows = append(rows, []interface{}{"filter." + key, filters[key]})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// WriteCSV writes the page rows as CSV with a header line
func (e *Exporter) WriteCSV(w io.Writer, page inspection.Page) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return err
	}
	for _, it := range page.Items {
		if err := cw.Write([]string{
			it.InspectionID, it.FactoryID, it.CameraID, it.Timestamp.UTC().Format(time.RFC3339), it.Date.String(),
			string(it.Prediction), strconv.FormatFloat(it.ConfidenceScore, 'f', 4, 64), defectOf(it),
			strconv.Itoa(it.InferenceTimeMS), it.ModelVersion, it.ImagePath,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func defectOf(it inspection.Inspection) string {
	if it.DefectType == nil {
		return ""
	}
	return *it.DefectType
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
