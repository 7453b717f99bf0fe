// Package cleanup tears down sync groups, listeners, and viewport
// bindings, in full or per viewport, and reports reclamation stats.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/layoutctl"
	"github.com/vistagrid/vistagrid/internal/logging"
	"github.com/vistagrid/vistagrid/internal/registry"
	"github.com/vistagrid/vistagrid/internal/syncengine"
	"github.com/vistagrid/vistagrid/pkg/render"
)

// Manager coordinates resource reclamation across the registry, sync
// engine, and layout controller. Every tier accumulates CleanupStats;
// individual step failures are collected, never fatal.
type Manager struct {
	reg        *registry.Registry
	syncer     *syncengine.Engine
	controller *layoutctl.Controller
	renderer   render.Engine
	logger     zerolog.Logger
}

// New creates a manager over the given components.
func New(ctx context.Context, reg *registry.Registry, syncer *syncengine.Engine, controller *layoutctl.Controller, renderer render.Engine) *Manager {
	return &Manager{
		reg:        reg,
		syncer:     syncer,
		controller: controller,
		renderer:   renderer,
		logger:     logging.FromContext(ctx).With().Str("component", "cleanup-manager").Logger(),
	}
}

// Full removes every sync group, strips all listeners, removes every
// viewport, resets the controller to the minimal layout, and requests
// a best-effort cache purge from the renderer.
func (m *Manager) Full(ctx context.Context) entity.CleanupStats {
	var stats entity.CleanupStats
	log := logging.FromContext(ctx)

	groups, listeners := m.syncer.StripAll(ctx)
	stats.SyncGroupsRemoved += groups
	stats.ListenersRemoved += listeners

	for _, id := range m.reg.AllIDs() {
		removed, err := m.reg.Remove(ctx, id)
		if err != nil {
			stats.AddError("unbind viewport", err)
		}
		if removed {
			stats.ViewportsRemoved++
		}
	}

	m.controller.ClearSavedAnnotations()
	func() {
		defer func() {
			if r := recover(); r != nil {
				stats.AddError("controller reset", panicToError(r))
			}
		}()
		m.controller.Reset(ctx)
	}()

	if reclaimer, ok := m.renderer.(render.CacheReclaimer); ok {
		purged := reclaimer.PurgeCaches()
		log.Debug().Int("purged", purged).Msg("renderer cache purge requested")
	}

	log.Info().
		Int("viewports", stats.ViewportsRemoved).
		Int("listeners", stats.ListenersRemoved).
		Int("sync_groups", stats.SyncGroupsRemoved).
		Int("errors", len(stats.Errors)).
		Msg("full cleanup finished")
	return stats
}

// Light prunes sync groups with no members and membership entries for
// viewports no longer in the registry. It handles drift introduced by
// out-of-band viewport removal and is intended to run on a timer.
func (m *Manager) Light(ctx context.Context) entity.CleanupStats {
	var stats entity.CleanupStats

	res := m.syncer.PruneOrphans(ctx)
	stats.SyncGroupsRemoved = res.GroupsRemoved
	stats.ListenersRemoved = res.ListenersRemoved

	if res.MembersPruned > 0 || res.GroupsRemoved > 0 {
		logging.FromContext(ctx).Info().
			Int("members_pruned", res.MembersPruned).
			Int("groups_removed", res.GroupsRemoved).
			Msg("orphan sweep reclaimed sync state")
	}
	return stats
}

// Viewports removes the listed viewports from every sync group, the
// layout controller, and the registry.
func (m *Manager) Viewports(ctx context.Context, ids []entity.ViewportID) entity.CleanupStats {
	var stats entity.CleanupStats

	for _, id := range ids {
		vctx := logging.WithViewportID(ctx, string(id))
		log := logging.FromContext(vctx)

		groups, listeners := m.syncer.StripViewport(vctx, id)
		stats.ListenersRemoved += listeners
		if groups > 0 {
			log.Debug().Int("groups", groups).Msg("viewport stripped from sync groups")
		}

		m.controller.RemoveRegion(vctx, id)

		removed, err := m.reg.Remove(vctx, id)
		if err != nil {
			stats.AddError("unbind viewport", err)
		}
		if removed {
			stats.ViewportsRemoved++
		} else {
			stats.AddError("remove viewport", fmt.Errorf("viewport %s not found", id))
			log.Debug().Msg("targeted cleanup: viewport not in registry")
		}
	}
	return stats
}

// StartPeriodic runs the light tier on the given interval until the
// returned stop function is called or ctx is cancelled.
func (m *Manager) StartPeriodic(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Light(ctx)
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once bool
	return func() {
		if !once {
			once = true
			close(done)
		}
	}
}
