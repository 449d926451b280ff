package ports

import (
	"context"

	"qcgallery/domain/inspection"
)

// InspectionRepository provides read-only access to inspection records.
// There is no write path.
type InspectionRepository interface {
	// List returns the rows of one page, timestamp descending
	List(ctx context.Context, c inspection.Criteria) ([]inspection.Inspection, error)
	// Stats counts rows under c with pagination ignored
	Stats(ctx context.Context, c inspection.Criteria) (inspection.Stats, error)
	// Query returns List and Stats assembled into a Page
	Query(ctx context.Context, c inspection.Criteria) (inspection.Page, error)
	// DefectTypes lists distinct non-null defect types, possibly empty
	DefectTypes(ctx context.Context) ([]string, error)
}
