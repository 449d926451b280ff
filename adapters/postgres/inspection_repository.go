package postgres

import (
	"context"
	"time"

	"qcgallery/domain/inspection"
	"qcgallery/internal/errors"
	"qcgallery/ports"
)

// TotalPolicy decides what Stats.TotalAll counts.
type TotalPolicy int

const (
	// TotalFiltered counts rows under the filters with only pagination stripped.
	TotalFiltered TotalPolicy = iota
	// TotalGrand counts every row in the table.
	TotalGrand
)

// QueryObserver records query latency
type QueryObserver interface {
	ObserveQuery(operation string, start time.Time)
}

// InspectionRepository reads inspection rows from the analytical engine
type InspectionRepository struct {
	source   DBSource
	table    string
	policy   TotalPolicy
	observer QueryObserver
}

// NewInspectionRepository creates a read-only inspection repository over table
func NewInspectionRepository(source DBSource, table string, policy TotalPolicy, observer QueryObserver) (*InspectionRepository, error) {
	if err := validTable(table); err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	return &InspectionRepository{source: source, table: table, policy: policy, observer: observer}, nil
}

var _ ports.InspectionRepository = (*InspectionRepository)(nil)

// Query returns one page plus the totals for its criteria.
func (r *InspectionRepository) Query(ctx context.Context, c inspection.Criteria) (inspection.Page, error) {
	stats, err := r.Stats(ctx, c)
	if err != nil {
		return inspection.Page{}, err
	}
	items, err := r.List(ctx, c)
	if err != nil {
		return inspection.Page{}, err
	}
	return inspection.NewPage(items, c.FilterSpec, stats.TotalMatching, stats.TotalAll), nil
}

// List returns the rows of the requested page, most recent first. A page past
// the end yields an empty slice.
func (r *InspectionRepository) List(ctx context.Context, c inspection.Criteria) ([]inspection.Inspection, error) {
	if err := c.FilterSpec.Validate(); err != nil {
		return nil, err
	}
	offset, ok := c.Offset()
	if !ok {
		return []inspection.Inspection{}, nil
	}
	defer r.observe("list", time.Now())

	db, err := r.source.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	query, params := pageQuery(r.table, buildInspectionWhere(c), c.PageSize, offset)
	var rows []inspectionRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), params...); err != nil {
		return nil, errors.Unreachable("records", err)
	}

	items := make([]inspection.Inspection, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

// Stats counts rows under the criteria with pagination ignored. OK and KO are
// counted under the full filter, so a prediction filter zeroes the other status.
func (r *InspectionRepository) Stats(ctx context.Context, c inspection.Criteria) (inspection.Stats, error) {
	if err := filtersOnly(c.FilterSpec).Validate(); err != nil {
		return inspection.Stats{}, err
	}
	defer r.observe("stats", time.Now())

	db, err := r.source.EnsureValid(ctx)
	if err != nil {
		return inspection.Stats{}, err
	}

	query, params := statsQuery(r.table, buildInspectionWhere(c))
	var row statsRow
	if err := db.GetContext(ctx, &row, db.Rebind(query), params...); err != nil {
		return inspection.Stats{}, errors.Unreachable("records", err)
	}

	stats := inspection.Stats{
		TotalMatching: int(row.Total),
		TotalAll:      int(row.Total),
		OKCount:       int(row.OKCount),
		KOCount:       int(row.KOCount),
	}
	if r.policy == TotalGrand {
		var grand int64
		if err := db.GetContext(ctx, &grand, grandTotalQuery(r.table)); err != nil {
			return inspection.Stats{}, errors.Unreachable("records", err)
		}
		stats.TotalAll = int(grand)
	}
	return stats, nil
}

// DefectTypes lists distinct non-null defect types in order. No rows is an
// empty slice, not an error.
func (r *InspectionRepository) DefectTypes(ctx context.Context) ([]string, error) {
	defer r.observe("defect_types", time.Now())

	db, err := r.source.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}
	types := []string{}
	if err := db.SelectContext(ctx, &types, defectTypesQuery(r.table)); err != nil {
		return nil, errors.Unreachable("records", err)
	}
	return types, nil
}

// filtersOnly fills pagination with valid placeholders so Validate only
// judges the filter fields.
func filtersOnly(f inspection.FilterSpec) inspection.FilterSpec {
	f.Page, f.PageSize = 1, inspection.DefaultPageSize
	return f
}

func (r *InspectionRepository) observe(op string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveQuery(op, start)
	}
}
