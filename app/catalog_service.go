package app

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"qcgallery/domain/inspection"
	"qcgallery/internal"
	"qcgallery/ports"

	gocache "github.com/patrickmn/go-cache"
)

const (
	factoriesKey   = "factories"
	defectTypesKey = "defect_types"
)

// FilterOptions holds the choices offered for each filter dimension
type FilterOptions struct {
	Regions     []string `json:"regions"`
	Factories   []string `json:"factories"`
	Cameras     []string `json:"cameras"`
	DefectTypes []string `json:"defect_types"`
}

// CatalogService answers reference-data lookups and caches the option lists
type CatalogService struct {
	factories   ports.FactoryRepository
	inspections ports.InspectionRepository
	options     *gocache.Cache
	logger      *internal.Logger
}

// NewCatalogService creates a catalog service whose option lists live for ttl
func NewCatalogService(factories ports.FactoryRepository, inspections ports.InspectionRepository, ttl time.Duration, logger *internal.Logger) *CatalogService {
	return &CatalogService{
		factories:   factories,
		inspections: inspections,
		options:     gocache.New(ttl, 0),
		logger:      logger.With("catalog"),
	}
}

// ListFactories returns every factory ordered by id. Failures are not cached.
func (s *CatalogService) ListFactories(ctx context.Context) ([]inspection.Factory, error) {
	if v, ok := s.options.Get(factoriesKey); ok {
		return v.([]inspection.Factory), nil
	}
	factories, err := s.factories.ListFactories(ctx)
	if err != nil {
		return nil, err
	}
	s.options.SetDefault(factoriesKey, factories)
	return factories, nil
}

// ListDefectTypes returns distinct defect types, empty when there are none.
func (s *CatalogService) ListDefectTypes(ctx context.Context) ([]string, error) {
	if v, ok := s.options.Get(defectTypesKey); ok {
		return v.([]string), nil
	}
	types, err := s.inspections.DefectTypes(ctx)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []string{}
	}
	s.options.SetDefault(defectTypesKey, types)
	return types, nil
}

// ListRegions returns the sorted distinct regions of all factories
func (s *CatalogService) ListRegions(ctx context.Context) ([]string, error) {
	factories, err := s.ListFactories(ctx)
	if err != nil {
		return nil, err
	}
	regions := make([]string, 0, len(factories))
	for _, f := range factories {
		if f.Region != "" {
			regions = append(regions, f.Region)
		}
	}
	return sortedUnique(regions), nil
}

// CamerasFor returns the cameras of factoryID, or of every factory when
// factoryID is empty. An unknown factory has no cameras.
func (s *CatalogService) CamerasFor(ctx context.Context, factoryID string) ([]string, error) {
	factories, err := s.ListFactories(ctx)
	if err != nil {
		return nil, err
	}
	cameras := []string{}
	for _, f := range factories {
		if factoryID == "" || f.FactoryID == factoryID {
			cameras = append(cameras, f.Cameras...)
		}
	}
	return sortedUnique(cameras), nil
}

// FactoryScope resolves region to the ids of its factories. The result is
// empty, not nil, for a region with no factories.
func (s *CatalogService) FactoryScope(ctx context.Context, region string) ([]string, error) {
	factories, err := s.ListFactories(ctx)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, f := range factories {
		if f.Region == region {
			ids = append(ids, f.FactoryID)
		}
	}
	return ids, nil
}

// FilterOptions gathers every option list. A failing source leaves its lists
// empty; the joined error is returned alongside the partial options.
func (s *CatalogService) FilterOptions(ctx context.Context) (FilterOptions, error) {
	opts := FilterOptions{
		Regions:     []string{},
		Factories:   []string{},
		Cameras:     []string{},
		DefectTypes: []string{},
	}

	var errs []error
	if factories, err := s.ListFactories(ctx); err != nil {
		s.logger.Warn("factory options unavailable: %v", err)
		errs = append(errs, err)
	} else {
		var regions, cameras []string
		for _, f := range factories {
			opts.Factories = append(opts.Factories, f.FactoryID)
			if f.Region != "" {
				regions = append(regions, f.Region)
			}
			cameras = append(cameras, f.Cameras...)
		}
		opts.Regions = sortedUnique(regions)
		opts.Cameras = sortedUnique(cameras)
	}

	if types, err := s.ListDefectTypes(ctx); err != nil {
		s.logger.Warn("defect type options unavailable: %v", err)
		errs = append(errs, err)
	} else {
		opts.DefectTypes = types
	}
	return opts, stderrors.Join(errs...)
}

func sortedUnique(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
