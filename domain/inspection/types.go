package inspection

import (
	"fmt"
	"strings"
	"time"
)

// Prediction is the model verdict for one inspected part
type Prediction string

const (
	PredictionOK Prediction = "OK"
	PredictionKO Prediction = "KO"
)

// ParsePrediction accepts OK/KO in any case.
func ParsePrediction(s string) (Prediction, error) {
	switch Prediction(strings.ToUpper(strings.TrimSpace(s))) {
	case PredictionOK:
		return PredictionOK, nil
	case PredictionKO:
		return PredictionKO, nil
	default:
		return "", fmt.Errorf("unknown prediction %q (want OK or KO)", s)
	}
}

func (p Prediction) String() string { return string(p) }

// Factory is reference data from the metadata store
type Factory struct {
	FactoryID string   `json:"factory_id"`
	Region    string   `json:"region"`
	Cameras   []string `json:"cameras"`
}

// Inspection is one row of the inspection table. DefectType is nil unless
// Prediction is KO.
type Inspection struct {
	InspectionID    string     `json:"inspection_id"`
	FactoryID       string     `json:"factory_id"`
	CameraID        string     `json:"camera_id"`
	Timestamp       time.Time  `json:"timestamp"`
	ImagePath       string     `json:"image_path"`
	Prediction      Prediction `json:"prediction"`
	ConfidenceScore float64    `json:"confidence_score"`
	DefectType      *string    `json:"defect_type"`
	InferenceTimeMS int        `json:"inference_time_ms"`
	ModelVersion    string     `json:"model_version"`
	Date            Day        `json:"date"`
}

// Stats aggregates counts for one FilterSpec, pagination excluded
type Stats struct {
	TotalAll      int `json:"total"`
	TotalMatching int `json:"filtered"`
	OKCount       int `json:"ok_count"`
	KOCount       int `json:"ko_count"`
}

// Page is one window of ordered results. It is rebuilt on every query.
type Page struct {
	Items         []Inspection `json:"inspections"`
	Page          int          `json:"page"`
	PageSize      int          `json:"per_page"`
	TotalMatching int          `json:"total_count"`
	TotalAll      int          `json:"total_all"`
	TotalPages    int          `json:"total_pages"`
	FilterKey     string       `json:"filter_key"`
}

// NewPage fills in the derived pagination fields.
func NewPage(items []Inspection, spec FilterSpec, totalMatching, totalAll int) Page {
	if items == nil {
		items = []Inspection{}
	}
	return Page{
		Items:         items,
		Page:          spec.Page,
		PageSize:      spec.PageSize,
		TotalMatching: totalMatching,
		TotalAll:      totalAll,
		TotalPages:    TotalPages(totalMatching, spec.PageSize),
		FilterKey:     spec.Key(),
	}
}

// TotalPages is ceil(total / size), zero for an empty result.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Image is a fetched object-store payload.
type Image struct {
	Path        string
	Data        []byte
	ContentType string
}

// Day is a calendar date with no time zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

const dayLayout = "2006-01-02"

// ParseDay parses YYYY-MM-DD.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, strings.TrimSpace(s))
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return DayOf(t), nil
}

// DayOf returns the calendar day of t in t's location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Day) IsZero() bool { return d == Day{} }

func (d Day) Before(o Day) bool { return d.Time().Before(o.Time()) }

func (d Day) After(o Day) bool { return d.Time().After(o.Time()) }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dayLayout)
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
