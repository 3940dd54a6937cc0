// Package memory keeps the latest exported growth series in process. It stands
// in for the spreadsheet when no Google credentials are configured.
package memory

import (
	"context"
	"strings"
	"sync"

	"smartsave/internal/core"
	ports "smartsave/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	latest  map[string][]core.GrowthPoint
	exports int
}

var _ ports.GrowthExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{latest: map[string][]core.GrowthPoint{}}
}

func (e *Exporter) ExportGrowth(_ context.Context, userID string, points []core.GrowthPoint) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrUnauthenticated
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latest[userID] = append([]core.GrowthPoint(nil), points...)
	e.exports++
	return nil
}

// Latest returns a copy of the last series exported for userID.
func (e *Exporter) Latest(userID string) ([]core.GrowthPoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pts, ok := e.latest[userID]
	if !ok {
		return nil, false
	}
	return append([]core.GrowthPoint(nil), pts...), true
}

// Users lists everyone with at least one export.
func (e *Exporter) Users() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.latest))
	for u := range e.latest {
		out = append(out, u)
	}
	return out
}

func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}
