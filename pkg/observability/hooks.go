// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about planning, committing and cache operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, never by libraries, so the planner and the
// commit driver stay free of any metrics framework.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetCommitHooks(&myCommitHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Commit().OnActionStart(ctx, "Mount", sid)
//	// ... run the action ...
//	observability.Commit().OnActionComplete(ctx, "Mount", sid, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Plan Hooks
// =============================================================================

// PlanHooks receives events from diffing, building and scheduling.
type PlanHooks interface {
	// Diff events
	OnDiffComplete(ctx context.Context, created, deleted, modified int, duration time.Duration)

	// Build events
	OnBuildStart(ctx context.Context, changes int)
	OnBuildComplete(ctx context.Context, actions, edges int, duration time.Duration, err error)

	// Schedule events
	OnScheduleComplete(ctx context.Context, actions int, duration time.Duration, err error)
}

// =============================================================================
// Commit Hooks
// =============================================================================

// CommitHooks receives events from the commit driver.
type CommitHooks interface {
	// OnCommitStart is called once before the first action.
	OnCommitStart(ctx context.Context, runID string, total int, dryRun bool)

	// OnActionStart and OnActionComplete bracket every committed action.
	OnActionStart(ctx context.Context, kind string, sid uint64)
	OnActionComplete(ctx context.Context, kind string, sid uint64, duration time.Duration, err error)

	// OnCommitComplete is called once with the number of committed actions.
	OnCommitComplete(ctx context.Context, runID string, committed int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPlanHooks is a no-op implementation of PlanHooks.
type NoopPlanHooks struct{}

func (NoopPlanHooks) OnDiffComplete(context.Context, int, int, int, time.Duration)     {}
func (NoopPlanHooks) OnBuildStart(context.Context, int)                               {}
func (NoopPlanHooks) OnBuildComplete(context.Context, int, int, time.Duration, error) {}
func (NoopPlanHooks) OnScheduleComplete(context.Context, int, time.Duration, error)   {}

// NoopCommitHooks is a no-op implementation of CommitHooks.
type NoopCommitHooks struct{}

func (NoopCommitHooks) OnCommitStart(context.Context, string, int, bool) {}
func (NoopCommitHooks) OnActionStart(context.Context, string, uint64)    {}
func (NoopCommitHooks) OnActionComplete(context.Context, string, uint64, time.Duration, error) {
}
func (NoopCommitHooks) OnCommitComplete(context.Context, string, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	planHooks   PlanHooks   = NoopPlanHooks{}
	commitHooks CommitHooks = NoopCommitHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetPlanHooks registers custom plan hooks.
// This should be called once at application startup before any planning.
func SetPlanHooks(h PlanHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		planHooks = h
	}
}

// SetCommitHooks registers custom commit hooks.
// This should be called once at application startup before any commit.
func SetCommitHooks(h CommitHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		commitHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Plan returns the registered plan hooks.
func Plan() PlanHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return planHooks
}

// Commit returns the registered commit hooks.
func Commit() CommitHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return commitHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	planHooks = NoopPlanHooks{}
	commitHooks = NoopCommitHooks{}
	cacheHooks = NoopCacheHooks{}
}
