package excel

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"qcgallery/domain/inspection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func samplePage() (inspection.Page, inspection.Stats) {
	ts := time.Date(2025, 1, 3, 10, 30, 0, 0, time.UTC)
	items := []inspection.Inspection{
		{InspectionID: "INSP-2", FactoryID: "WUH-G426", CameraID: "CAM-01", Timestamp: ts, Prediction: inspection.PredictionKO,
			ConfidenceScore: 0.8123, DefectType: inspection.Ptr("porosity"), InferenceTimeMS: 90, ModelVersion: "v2.3.1", Date: inspection.DayOf(ts)},
		{InspectionID: "INSP-1", FactoryID: "WUH-G426", CameraID: "CAM-02", Timestamp: ts.Add(-time.Hour), Prediction: inspection.PredictionOK,
			ConfidenceScore: 0.97, InferenceTimeMS: 60, ModelVersion: "v2.3.0", Date: inspection.DayOf(ts)},
	}
	stats := inspection.Stats{TotalAll: 12, TotalMatching: 12, OKCount: 10, KOCount: 2}
	spec := inspection.FilterSpec{Page: 1, PageSize: 8}
	return inspection.NewPage(items, spec, stats.TotalMatching, stats.TotalAll), stats
}

func TestWriteXLSX(t *testing.T) {
	page, stats := samplePage()
	e := &Exporter{generated: func() time.Time { return time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC) }}

	var buf bytes.Buffer
	require.NoError(t, e.WriteXLSX(&buf, page, stats, map[string]string{"factory": "WUH-G426"}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(inspectionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "INSP-2", rows[1][0])
	assert.Equal(t, "porosity", rows[1][7])
	assert.Equal(t, "2025-01-03", rows[2][4])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Contains(t, summary, []string{"filtered", "12"})
	assert.Contains(t, summary, []string{"ko_count", "2"})
	assert.Contains(t, summary, []string{"filter.factory", "WUH-G426"})
}

func TestWriteCSV(t *testing.T) {
	page, _ := samplePage()

	var buf bytes.Buffer
	require.NoError(t, NewExporter().WriteCSV(&buf, page))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"INSP-1", "WUH-G426", "CAM-02", "2025-01-03T09:30:00Z", "2025-01-03", "OK", "0.9700", "", "60", "v2.3.0", ""}, records[2])
}
