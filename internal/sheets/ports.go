package sheets

import (
	"context"

	"smartsave/internal/core"
)

// GrowthExporter publishes a user's monthly growth series to an outside
// report. Exports are snapshots: each call records the series as of now.
type GrowthExporter interface {
	ExportGrowth(ctx context.Context, userID string, points []core.GrowthPoint) error
}
