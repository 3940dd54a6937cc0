package services

import (
	"fmt"
	"sync"
	"time"

	"smartsave/internal/cache"
	"smartsave/internal/core"
)

// Views caches derived per-user read models. Every write for a user drops
// all of that user's entries and bumps the user's generation, so a view
// computed before the write is never stored after it.
type Views struct {
	dashboards *cache.LRUCache[core.DashboardState]
	growth     *cache.LRUCache[[]core.GrowthPoint]

	mu   sync.Mutex
	gens map[string]uint64
}

// NewViews builds the caches and registers them with mgr for expiry sweeps
// when mgr is non-nil.
func NewViews(size int, ttl time.Duration, mgr *cache.Manager) *Views {
	v := &Views{
		dashboards: cache.NewLRUCache[core.DashboardState](size, ttl),
		growth:     cache.NewLRUCache[[]core.GrowthPoint](size, ttl),
		gens:       make(map[string]uint64),
	}
	if mgr != nil {
		mgr.Register(v.dashboards)
		mgr.Register(v.growth)
	}
	return v
}

// Invalidate is safe on a nil *Views.
func (v *Views) Invalidate(userID string) int {
	if v == nil {
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gens[userID]++
	prefix := cache.UserPrefix(userID)
	return v.dashboards.DeletePrefix(prefix) + v.growth.DeletePrefix(prefix)
}

// generation is read before computing a view and handed back to the put.
func (v *Views) generation(userID string) uint64 {
	if v == nil {
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gens[userID]
}

func (v *Views) dashboard(userID string) (core.DashboardState, bool) {
	if v == nil {
		return core.DashboardState{}, false
	}
	return v.dashboards.Get(dashboardKey(userID))
}

// putDashboard drops st when userID was written to after gen was read.
func (v *Views) putDashboard(userID string, gen uint64, st core.DashboardState) bool {
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gens[userID] != gen {
		return false
	}
	v.dashboards.Set(dashboardKey(userID), st)
	return true
}

func (v *Views) growthSeries(userID string, year, month, n int) ([]core.GrowthPoint, bool) {
	if v == nil {
		return nil, false
	}
	return v.growth.Get(growthKey(userID, year, month, n))
}

func (v *Views) putGrowth(userID string, gen uint64, year, month, n int, pts []core.GrowthPoint) bool {
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gens[userID] != gen {
		return false
	}
	v.growth.Set(growthKey(userID, year, month, n), pts)
	return true
}

func dashboardKey(userID string) string {
	return cache.UserKey(userID, "dashboard")
}

func growthKey(userID string, year, month, n int) string {
	return cache.UserKey(userID, "growth", fmt.Sprintf("%04d-%02d", year, month), fmt.Sprint(n))
}
