package testkit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"qcgallery/domain/inspection"
	"qcgallery/internal/migration"
	"qcgallery/internal/mockdata"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	// FactoryTable and InspectionTable are the fixture table names
	FactoryTable    = "factories"
	InspectionTable = "inspections"
)

// ImagePrefix is the logical volume path fixture images live under
const ImagePrefix = mockdata.ImagePrefix

// NewSQLiteDB opens a file-backed SQLite database under t.TempDir with the
// factory and inspection tables created. The file is shared by every pooled
// connection, unlike :memory:.
func NewSQLiteDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "qc.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migration.NewRunner(FactoryTable, InspectionTable).Run(context.Background(), db); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	return db
}

// InsertFactories loads factory rows
func InsertFactories(t testing.TB, db *sqlx.DB, factories ...inspection.Factory) {
	t.Helper()
	if err := mockdata.NewLoader(db, FactoryTable, InspectionTable).LoadFactories(context.Background(), factories); err != nil {
		t.Fatalf("insert factories: %v", err)
	}
}

// InsertInspections loads inspection rows in one transaction
func InsertInspections(t testing.TB, db *sqlx.DB, rows ...inspection.Inspection) {
	t.Helper()
	if err := mockdata.NewLoader(db, FactoryTable, InspectionTable).LoadInspections(context.Background(), rows); err != nil {
		t.Fatalf("insert inspections: %v", err)
	}
}

// Row builds a minimal inspection for hand-written fixtures
func Row(id, factory string, pred inspection.Prediction, defect string, ts time.Time) inspection.Inspection {
	r := inspection.Inspection{
		InspectionID:    id,
		FactoryID:       factory,
		CameraID:        "CAM-01",
		Timestamp:       ts,
		ImagePath:       ImagePrefix + id + ".jpg",
		Prediction:      pred,
		ConfidenceScore: 0.9,
		InferenceTimeMS: 100,
		ModelVersion:    "v2.3.1",
		Date:            inspection.DayOf(ts),
	}
	if defect != "" {
		r.DefectType = &defect
	}
	return r
}
