package syncengine

import (
	"context"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/logging"
)

// syncTarget is one member a propagation pass applies a patch to.
type syncTarget struct {
	groupID string
	id      entity.ViewportID
	handle  entity.RendererHandle
}

// Synchronize runs one propagation pass: every active group containing
// sourceID whose type set includes typ applies the payload to each
// other member, then renders it. Returns the number of viewports the
// patch was applied to.
//
// The pass holds the reentrancy guard for its whole duration. A nested
// call (a member's change notification fired by our own patch) is
// dropped, not queued: that is what breaks the feedback loop.
func (e *Engine) Synchronize(ctx context.Context, sourceID entity.ViewportID, typ entity.SyncType, payload Payload) int {
	if !typ.Valid() {
		e.logger.Warn().Str("sync_type", string(typ)).Msg("synchronize called with unknown type")
		return 0
	}
	if !e.propagating.CompareAndSwap(false, true) {
		e.logger.Debug().
			Str("viewport_id", string(sourceID)).
			Str("sync_type", string(typ)).
			Msg("dropping nested synchronize call")
		return 0
	}
	defer e.propagating.Store(false)

	// Plan the pass under the lock, apply outside it: applying a patch
	// fires the target's change notification synchronously.
	e.mu.Lock()
	var targets []syncTarget
	seen := make(map[entity.ViewportID]bool)
	for _, gid := range e.order {
		g := e.groups[gid]
		if !g.Active || !g.HasType(typ) || !g.HasMember(sourceID) {
			continue
		}
		for _, m := range g.Members {
			if m == sourceID || seen[m] {
				continue
			}
			vp, ok := e.reg.Get(m)
			if !ok {
				// Stale member; the orphan sweep will prune it.
				continue
			}
			seen[m] = true
			targets = append(targets, syncTarget{groupID: gid, id: m, handle: vp.Binding})
		}
	}
	e.mu.Unlock()

	log := logging.FromContext(ctx)
	applied := 0
	for _, t := range targets {
		if err := e.applyTo(t.handle, typ, payload); err != nil {
			log.Warn().Err(err).
				Str("group_id", t.groupID).
				Str("viewport_id", string(t.id)).
				Str("sync_type", string(typ)).
				Msg("sync apply failed, continuing with remaining targets")
			continue
		}
		if err := e.renderer.Render(t.handle); err != nil {
			log.Warn().Err(err).Str("viewport_id", string(t.id)).Msg("post-sync render failed")
		}
		applied++
	}

	if applied > 0 {
		log.Debug().
			Str("viewport_id", string(sourceID)).
			Str("sync_type", string(typ)).
			Int("targets", applied).
			Msg("propagated change")
	}
	return applied
}

// applyTo applies the type-specific patch rule to one target.
func (e *Engine) applyTo(h entity.RendererHandle, typ entity.SyncType, payload Payload) error {
	switch typ {
	case entity.SyncCamera:
		if payload.Camera == nil {
			return nil
		}
		return e.renderer.SetCamera(h, *payload.Camera)

	case entity.SyncPan, entity.SyncZoom:
		if payload.Camera == nil {
			return nil
		}
		cam, err := e.renderer.Camera(h)
		if err != nil {
			return err
		}
		if typ == entity.SyncPan {
			cam.PatchPan(*payload.Camera)
		} else {
			cam.PatchZoom(*payload.Camera)
		}
		return e.renderer.SetCamera(h, cam)

	case entity.SyncRotation:
		if payload.Rotation == nil {
			return nil
		}
		props, err := e.renderer.Properties(h)
		if err != nil {
			return err
		}
		props.Rotation = *payload.Rotation
		return e.renderer.SetProperties(h, props)

	case entity.SyncFlip:
		if payload.FlipHorizontal == nil && payload.FlipVertical == nil {
			return nil
		}
		props, err := e.renderer.Properties(h)
		if err != nil {
			return err
		}
		if payload.FlipHorizontal != nil {
			props.FlipHorizontal = *payload.FlipHorizontal
		}
		if payload.FlipVertical != nil {
			props.FlipVertical = *payload.FlipVertical
		}
		return e.renderer.SetProperties(h, props)

	case entity.SyncWindowLevel:
		if payload.VOI == nil {
			return nil
		}
		props, err := e.renderer.Properties(h)
		if err != nil {
			return err
		}
		voi := *payload.VOI
		props.VOI = &voi
		return e.renderer.SetProperties(h, props)
	}
	return nil
}
