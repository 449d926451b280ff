package inspection

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"qcgallery/internal/errors"
)

const (
	DefaultPageSize = 8
	MaxPageSize     = 100
)

// allSentinel is the option-list value the UI sends for "no constraint".
const allSentinel = "All"

// FilterSpec is the user's query intent. A nil field means no constraint on
// that dimension; it is never conflated with "match the empty string".
type FilterSpec struct {
	Region     *string
	FactoryID  *string
	CameraID   *string
	Prediction *Prediction
	DefectType *string
	SearchText *string
	DateFrom   *Day
	DateTo     *Day

	Page     int
	PageSize int
}

// Validate rejects specs that must not reach a store.
func (f FilterSpec) Validate() error {
	if f.Page < 1 {
		return errors.ValidationError(fmt.Sprintf("page must be >= 1, got %d", f.Page))
	}
	if f.PageSize < 1 {
		return errors.ValidationError(fmt.Sprintf("page_size must be > 0, got %d", f.PageSize))
	}
	if f.PageSize > MaxPageSize {
		return errors.ValidationError(fmt.Sprintf("page_size must be <= %d, got %d", MaxPageSize, f.PageSize))
	}
	if f.Prediction != nil && *f.Prediction != PredictionOK && *f.Prediction != PredictionKO {
		return errors.ValidationError(fmt.Sprintf("unknown prediction %q", *f.Prediction))
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return errors.ValidationError(fmt.Sprintf("date_from %s is after date_to %s", f.DateFrom, f.DateTo))
	}
	return nil
}

// Offset is the row offset of the requested page. ok is false when the
// offset does not fit in an int; no table holds that many rows, so such a
// page is past the last one.
func (f FilterSpec) Offset() (offset int, ok bool) {
	if f.Page < 1 || f.PageSize < 1 {
		return 0, true
	}
	if f.Page-1 > math.MaxInt/f.PageSize {
		return 0, false
	}
	return (f.Page - 1) * f.PageSize, true
}

// WithPage returns a copy positioned on page p.
func (f FilterSpec) WithPage(p int) FilterSpec {
	f.Page = p
	return f
}

// SameFilters reports whether every non-pagination field is equal.
func (f FilterSpec) SameFilters(o FilterSpec) bool {
	return f.canonical() == o.canonical()
}

// Navigate applies the page-reset rule: when any filter field differs from
// previous, the requested page is replaced by 1.
func Navigate(previous, requested FilterSpec) FilterSpec {
	if !previous.SameFilters(requested) {
		requested.Page = 1
	}
	return requested
}

// Key is a short stable digest of the non-pagination fields. Clients echo it
// back so a stateless server can apply Navigate.
func (f FilterSpec) Key() string {
	sum := sha256.Sum256([]byte(f.canonical()))
	return hex.EncodeToString(sum[:8])
}

func (f FilterSpec) canonical() string {
	var b strings.Builder
	field := func(name string, v *string) {
		b.WriteString(name)
		if v == nil {
			b.WriteString("=\x00;")
			return
		}
		b.WriteString("=")
		b.WriteString(*v)
		b.WriteString(";")
	}
	field("region", f.Region)
	field("factory", f.FactoryID)
	field("camera", f.CameraID)
	var pred *string
	if f.Prediction != nil {
		s := string(*f.Prediction)
		pred = &s
	}
	field("prediction", pred)
	field("defect", f.DefectType)
	field("search", f.SearchText)
	field("from", dayString(f.DateFrom))
	field("to", dayString(f.DateTo))
	return b.String()
}

func dayString(d *Day) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// Criteria is a FilterSpec plus the factory set a region resolved to.
type Criteria struct {
	FilterSpec

	// FactoryScope restricts factory_id when Scoped is true. An empty scope
	// matches nothing.
	FactoryScope []string
	Scoped       bool
}

// FilterParams is the loosely-typed form of a FilterSpec as it arrives from
// query strings or CLI flags. Empty strings mean unset, and so does "All"
// for the option-list fields (region, factory, camera, prediction, defect).
type FilterParams struct {
	Region     string
	FactoryID  string
	CameraID   string
	Prediction string
	DefectType string
	SearchText string
	DateFrom   string
	DateTo     string
	Page       int
	PageSize   int
}

// Spec converts params into a validated FilterSpec.
func (p FilterParams) Spec() (FilterSpec, error) {
	spec := FilterSpec{
		Region:     option(p.Region),
		FactoryID:  option(p.FactoryID),
		CameraID:   option(p.CameraID),
		DefectType: option(p.DefectType),
		SearchText: optional(p.SearchText),
		Page:       p.Page,
		PageSize:   p.PageSize,
	}
	if spec.Page == 0 {
		spec.Page = 1
	}
	if spec.PageSize == 0 {
		spec.PageSize = DefaultPageSize
	}

	if v := option(p.Prediction); v != nil {
		pred, err := ParsePrediction(*v)
		if err != nil {
			return FilterSpec{}, errors.ValidationError(err.Error())
		}
		spec.Prediction = &pred
	}
	for _, d := range []struct {
		raw string
		dst **Day
	}{{p.DateFrom, &spec.DateFrom}, {p.DateTo, &spec.DateTo}} {
		v := optional(d.raw)
		if v == nil {
			continue
		}
		day, err := ParseDay(*v)
		if err != nil {
			return FilterSpec{}, errors.ValidationError(err.Error())
		}
		*d.dst = &day
	}

	if err := spec.Validate(); err != nil {
		return FilterSpec{}, err
	}
	return spec, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// option is optional for fields picked from an option list, where "All"
// also means unset.
func option(s string) *string {
	v := optional(s)
	if v == nil || *v == allSentinel {
		return nil
	}
	return v
}

// Ptr is a convenience for building specs in code.
func Ptr[T any](v T) *T { return &v }
