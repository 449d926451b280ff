package ports

import (
	"context"

	"qcgallery/domain/inspection"
)

// FactoryRepository answers reference-data lookups against the metadata store
type FactoryRepository interface {
	ListFactories(ctx context.Context) ([]inspection.Factory, error)
}
