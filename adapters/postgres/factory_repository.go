package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"qcgallery/domain/inspection"
	"qcgallery/internal/errors"
	"qcgallery/ports"

	"github.com/lib/pq"
)

// factoryRepository reads factory reference data from the metadata store
type factoryRepository struct {
	source   DBSource
	table    string
	observer QueryObserver
}

// NewFactoryRepository creates a new factory repository over table
func NewFactoryRepository(source DBSource, table string, observer QueryObserver) (ports.FactoryRepository, error) {
	if err := validTable(table); err != nil {
		return nil, errors.ConfigInvalid(err.Error())
	}
	return &factoryRepository{source: source, table: table, observer: observer}, nil
}

type factoryRow struct {
	FactoryID string         `db:"factory_id"`
	Region    sql.NullString `db:"region"`
	Cameras   pq.StringArray `db:"cameras"`
}

// ListFactories returns every factory ordered by factory_id
func (r *factoryRepository) ListFactories(ctx context.Context) ([]inspection.Factory, error) {
	if r.observer != nil {
		defer r.observer.ObserveQuery("list_factories", time.Now())
	}

	db, err := r.source.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT factory_id, region, cameras FROM %s ORDER BY factory_id`, r.table)
	var rows []factoryRow
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Unreachable("metadata", err)
	}

	factories := make([]inspection.Factory, 0, len(rows))
	for _, row := range rows {
		cameras := []string(row.Cameras)
		if cameras == nil {
			cameras = []string{}
		}
		factories = append(factories, inspection.Factory{
			FactoryID: row.FactoryID,
			Region:    row.Region.String,
			Cameras:   cameras,
		})
	}
	return factories, nil
}
