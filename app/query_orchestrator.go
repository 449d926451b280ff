package app

import (
	"context"
	"time"

	"qcgallery/domain/inspection"
	"qcgallery/internal"
	"qcgallery/ports"

	"golang.org/x/sync/errgroup"
)

// QueryResult is one page with its stats, computed in the same round
type QueryResult struct {
	Page    inspection.Page  `json:"page"`
	Stats   inspection.Stats `json:"stats"`
	Summary PageSummary      `json:"summary"`
}

// QueryOrchestrator turns a FilterSpec into a page plus stats. It holds no
// per-session state.
type QueryOrchestrator struct {
	catalog     *CatalogService
	inspections ports.InspectionRepository
	logger      *internal.Logger
}

// NewQueryOrchestrator creates a query orchestrator
func NewQueryOrchestrator(catalog *CatalogService, inspections ports.InspectionRepository, logger *internal.Logger) *QueryOrchestrator {
	return &QueryOrchestrator{
		catalog:     catalog,
		inspections: inspections,
		logger:      logger.With("query"),
	}
}

// Navigate resets the page to 1 when any filter differs from previous
func (o *QueryOrchestrator) Navigate(previous, requested inspection.FilterSpec) inspection.FilterSpec {
	return inspection.Navigate(previous, requested)
}

// NavigateByKey applies the same rule when only the previous filter key is
// known. An empty key means there was no previous query.
func (o *QueryOrchestrator) NavigateByKey(previousKey string, requested inspection.FilterSpec) inspection.FilterSpec {
	if previousKey != "" && previousKey != requested.Key() {
		requested.Page = 1
	}
	return requested
}

// QueryPage runs the page and stats queries concurrently. Both see the same
// criteria, so the page and its totals always describe one filter set.
func (o *QueryOrchestrator) QueryPage(ctx context.Context, spec inspection.FilterSpec) (*QueryResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	criteria, err := o.criteria(ctx, spec)
	if err != nil {
		return nil, err
	}

	var (
		items []inspection.Inspection
		stats inspection.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = o.inspections.List(gctx, criteria)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = o.inspections.Stats(gctx, criteria)
		return err
	})
	if err := g.Wait(); err != nil {
		o.logger.Warn("query failed: %v", err)
		return nil, err
	}

	o.logger.Debug("page %d/%d (%d rows, %d matching) in %v",
		spec.Page, inspection.TotalPages(stats.TotalMatching, spec.PageSize), len(items), stats.TotalMatching, time.Since(start))
	return o.assemble(spec, items, stats)
}

// Rows returns one page with its totals but without the OK/KO breakdown or
// page summary, for exports that only need the rows.
func (o *QueryOrchestrator) Rows(ctx context.Context, spec inspection.FilterSpec) (inspection.Page, error) {
	if err := spec.Validate(); err != nil {
		return inspection.Page{}, err
	}
	criteria, err := o.criteria(ctx, spec)
	if err != nil {
		return inspection.Page{}, err
	}
	return o.inspections.Query(ctx, criteria)
}

// criteria resolves the region, if any, to the factory set it covers
func (o *QueryOrchestrator) criteria(ctx context.Context, spec inspection.FilterSpec) (inspection.Criteria, error) {
	c := inspection.Criteria{FilterSpec: spec}
	if spec.Region == nil {
		return c, nil
	}
	scope, err := o.catalog.FactoryScope(ctx, *spec.Region)
	if err != nil {
		return inspection.Criteria{}, err
	}
	if len(scope) == 0 {
		o.logger.Debug("region %q has no factories", *spec.Region)
	}
	c.FactoryScope, c.Scoped = scope, true
	return c, nil
}

func (o *QueryOrchestrator) assemble(spec inspection.FilterSpec, items []inspection.Inspection, stats inspection.Stats) (*QueryResult, error) {
	summary, err := SummarizePage(items)
	if err != nil {
		return nil, err
	}
	return &QueryResult{
		Page:    inspection.NewPage(items, spec, stats.TotalMatching, stats.TotalAll),
		Stats:   stats,
		Summary: summary,
	}, nil
}
