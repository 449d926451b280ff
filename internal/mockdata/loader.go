package mockdata

import (
	"context"
	"fmt"

	"qcgallery/domain/inspection"
	"qcgallery/internal/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TimestampLayout is the text form timestamps are written in. Postgres casts
// it on insert; SQLite stores it as is.
const TimestampLayout = "2006-01-02 15:04:05"

// Loader writes factory and inspection rows into already-migrated tables
type Loader struct {
	db              *sqlx.DB
	factoryTable    string
	inspectionTable string
}

// NewLoader creates a loader for the given tables
func NewLoader(db *sqlx.DB, factoryTable, inspectionTable string) *Loader {
	return &Loader{db: db, factoryTable: factoryTable, inspectionTable: inspectionTable}
}

// LoadFactories inserts factory reference rows in one transaction
func (l *Loader) LoadFactories(ctx context.Context, factories []inspection.Factory) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin factory load")
	}
	defer func() { _ = tx.Rollback() }()

	query := l.db.Rebind(fmt.Sprintf(`INSERT INTO %s (factory_id, region, cameras) VALUES (?, ?, ?)`, l.factoryTable))
	for _, f := range factories {
		if _, err := tx.ExecContext(ctx, query, f.FactoryID, f.Region, pq.StringArray(f.Cameras)); err != nil {
			return errors.Wrapf(err, "insert factory %s", f.FactoryID)
		}
	}
	return tx.Commit()
}

// LoadInspections inserts inspection rows in one transaction
func (l *Loader) LoadInspections(ctx context.Context, rows []inspection.Inspection) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin inspection load")
	}
	defer func() { _ = tx.Rollback() }()

	query := l.db.Rebind(fmt.Sprintf(`INSERT INTO %s (
		inspection_id, factory_id, camera_id, "timestamp", image_path, prediction,
		confidence_score, defect_type, inference_time_ms, model_version, "date"
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, l.inspectionTable))

	for _, r := range rows {
		var defect any
		if r.DefectType != nil {
			defect = *r.DefectType
		}
		day := r.Date
		if day.IsZero() {
			day = inspection.DayOf(r.Timestamp)
		}
		if _, err := tx.ExecContext(ctx, query,
			r.InspectionID, r.FactoryID, r.CameraID, r.Timestamp.UTC().Format(TimestampLayout), r.ImagePath,
			string(r.Prediction), r.ConfidenceScore, defect, r.InferenceTimeMS, r.ModelVersion, day.String(),
		); err != nil {
			return errors.Wrapf(err, "insert inspection %s", r.InspectionID)
		}
	}
	return tx.Commit()
}
