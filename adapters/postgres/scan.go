package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"qcgallery/domain/inspection"
)

// sqlTime scans timestamps and dates that drivers hand back either as
// time.Time or as text.
type sqlTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = sqlTime{}
		return nil
	case time.Time:
		*t = sqlTime{Time: v, Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
}

func (t *sqlTime) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = sqlTime{Time: parsed, Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unrecognized time value %q", s)
}

type inspectionRow struct {
	InspectionID    string         `db:"inspection_id"`
	FactoryID       string         `db:"factory_id"`
	CameraID        string         `db:"camera_id"`
	Timestamp       sqlTime        `db:"timestamp"`
	ImagePath       string         `db:"image_path"`
	Prediction      string         `db:"prediction"`
	ConfidenceScore float64        `db:"confidence_score"`
	DefectType      sql.NullString `db:"defect_type"`
	InferenceTimeMS int64          `db:"inference_time_ms"`
	ModelVersion    sql.NullString `db:"model_version"`
	Date            sqlTime        `db:"date"`
}

func (r inspectionRow) toDomain() inspection.Inspection {
	out := inspection.Inspection{
		InspectionID:    r.InspectionID,
		FactoryID:       r.FactoryID,
		CameraID:        r.CameraID,
		Timestamp:       r.Timestamp.Time,
		ImagePath:       r.ImagePath,
		Prediction:      inspection.Prediction(strings.ToUpper(r.Prediction)),
		ConfidenceScore: r.ConfidenceScore,
		InferenceTimeMS: int(r.InferenceTimeMS),
		ModelVersion:    r.ModelVersion.String,
	}
	if r.DefectType.Valid {
		d := r.DefectType.String
		out.DefectType = &d
	}
	switch {
	case r.Date.Valid:
		out.Date = inspection.DayOf(r.Date.Time)
	case r.Timestamp.Valid:
		out.Date = inspection.DayOf(r.Timestamp.Time)
	}
	return out
}

type statsRow struct {
	Total   int64 `db:"total"`
	OKCount int64 `db:"ok_count"`
	KOCount int64 `db:"ko_count"`
}
