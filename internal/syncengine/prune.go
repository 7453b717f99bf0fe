package syncengine

import (
	"context"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/logging"
)

// PruneResult reports what an orphan sweep reclaimed.
type PruneResult struct {
	MembersPruned    int
	GroupsRemoved    int
	ListenersRemoved int
}

// PruneOrphans removes membership entries whose viewport no longer
// exists in the registry, then removes groups left with zero members.
// Membership of a removed viewport is a transient inconsistency that
// must be pruned, not merely ignored.
func (e *Engine) PruneOrphans(ctx context.Context) PruneResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := logging.FromContext(ctx)
	var res PruneResult

	for _, gid := range append([]string(nil), e.order...) {
		g := e.groups[gid]
		for _, m := range append([]entity.ViewportID(nil), g.Members...) {
			if e.reg.Has(m) {
				continue
			}
			g.RemoveMember(m)
			res.ListenersRemoved += e.detachLocked(gid, m)
			res.MembersPruned++
			log.Debug().Str("group_id", gid).Str("viewport_id", string(m)).Msg("pruned dangling sync group member")
		}
		if len(g.Members) == 0 {
			e.deleteGroupLocked(gid)
			res.GroupsRemoved++
			log.Debug().Str("group_id", gid).Msg("pruned empty sync group")
		}
	}
	return res
}

// StripViewport removes the viewport from every group it belongs to
// and releases its listeners. Groups left empty are kept; the orphan
// sweep reclaims them. Returns groups touched and listeners released.
func (e *Engine) StripViewport(ctx context.Context, id entity.ViewportID) (groups, listeners int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, gid := range e.order {
		g := e.groups[gid]
		if !g.RemoveMember(id) {
			continue
		}
		listeners += e.detachLocked(gid, id)
		groups++
	}
	if groups > 0 {
		logging.FromContext(ctx).Debug().
			Str("viewport_id", string(id)).
			Int("groups", groups).
			Msg("stripped viewport from sync groups")
	}
	return groups, listeners
}

// StripAll removes every group and releases every listener.
func (e *Engine) StripAll(ctx context.Context) (groups, listeners int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, gid := range append([]string(nil), e.order...) {
		g := e.groups[gid]
		for _, m := range append([]entity.ViewportID(nil), g.Members...) {
			listeners += e.detachLocked(gid, m)
		}
		e.deleteGroupLocked(gid)
		groups++
	}
	if groups > 0 {
		logging.FromContext(ctx).Info().Int("groups", groups).Int("listeners", listeners).Msg("removed all sync groups")
	}
	return groups, listeners
}

// Resubscribe rebuilds every member subscription against the current
// registry, pruning members that did not survive a topology change.
// The layout controller invokes it after every transition.
func (e *Engine) Resubscribe(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, gid := range append([]string(nil), e.order...) {
		g := e.groups[gid]
		for _, m := range append([]entity.ViewportID(nil), g.Members...) {
			e.detachLocked(gid, m)
			if !e.reg.Has(m) {
				g.RemoveMember(m)
				continue
			}
			e.attachLocked(ctx, g, m)
		}
	}
	logging.FromContext(ctx).Debug().Msg("sync subscriptions rebuilt after topology change")
}
