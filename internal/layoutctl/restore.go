package layoutctl

import (
	"sort"
	"time"

	"github.com/vistagrid/vistagrid/internal/annotation"
	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/logging"
)

// scheduleStateRestore defers viewport-state restoration until the
// renderer has had a chance to bind the new surfaces. Caller holds
// c.mu; the closure captures the transition generation and becomes a
// no-op once a newer transition begins.
func (c *Controller) scheduleStateRestore(gen uint64, snaps []entity.ViewportStateSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].Index < snaps[j].Index })
	time.AfterFunc(c.timings.RestoreDelay, func() {
		c.restoreStatePass(gen, snaps, 1)
	})
}

// restoreStatePass applies saved states in ascending index order.
// Snapshots whose target viewport is not yet known to the registry are
// retried on the poll interval up to the attempt bound.
func (c *Controller) restoreStatePass(gen uint64, pending []entity.ViewportStateSnapshot, attempt int) {
	log := logging.FromContext(c.baseCtx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		log.Debug().Uint64("scheduled_gen", gen).Uint64("current_gen", c.generation).
			Msg("discarding stale state restoration")
		return
	}

	var retry []entity.ViewportStateSnapshot
	for _, s := range pending {
		if s.Index >= len(c.regions) {
			// The new layout has fewer regions than were saved.
			log.Warn().Int("index", s.Index).Str("saved_viewport", string(s.ViewportID)).
				Msg("discarding saved state beyond new layout size")
			continue
		}
		target := c.regions[s.Index]
		vp, ok := c.reg.Get(target)
		if !ok {
			retry = append(retry, s)
			continue
		}
		c.applySnapshotLocked(target, vp.Binding, s)
	}

	if len(retry) > 0 {
		if attempt < c.timings.MaxRestoreAttempts {
			time.AfterFunc(c.timings.PollInterval, func() {
				c.restoreStatePass(gen, retry, attempt+1)
			})
			return
		}
		log.Warn().Int("unrestored", len(retry)).Int("attempts", attempt).
			Msg("giving up on viewport state restoration")
	}
	c.phase = PhaseIdle
}

func (c *Controller) applySnapshotLocked(target entity.ViewportID, h entity.RendererHandle, s entity.ViewportStateSnapshot) {
	log := logging.FromContext(c.baseCtx)

	if s.Camera != nil {
		if err := c.renderer.SetCamera(h, *s.Camera); err != nil {
			log.Warn().Err(err).Str("viewport_id", string(target)).Msg("camera restore failed")
		}
	}
	if s.Properties != nil {
		if err := c.renderer.SetProperties(h, *s.Properties); err != nil {
			log.Warn().Err(err).Str("viewport_id", string(target)).Msg("properties restore failed")
		}
	}
	if s.Active {
		c.reg.SetActive(target)
	}
	if err := c.renderer.Render(h); err != nil {
		log.Warn().Err(err).Str("viewport_id", string(target)).Msg("post-restore render failed")
	}
}

// scheduleAnnotationRestore defers annotation restoration the same
// way. Caller holds c.mu.
func (c *Controller) scheduleAnnotationRestore(gen uint64, hold *annotationHold) {
	time.AfterFunc(c.timings.RestoreDelay, func() {
		c.restoreAnnotations(gen, hold)
	})
}

// restoreAnnotations relocates each captured annotation into the new
// topology via the ID remapping policy. One annotation failing never
// aborts the batch.
func (c *Controller) restoreAnnotations(gen uint64, hold *annotationHold) {
	log := logging.FromContext(c.baseCtx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		log.Debug().Uint64("scheduled_gen", gen).Uint64("current_gen", c.generation).
			Msg("discarding stale annotation restoration")
		// If the newer transition did not capture a hold of its own,
		// this one is abandoned: drop it and finish the store wipe its
		// presence deferred during clearing.
		if c.hold == hold {
			if hold.timer != nil {
				hold.timer.Stop()
			}
			c.hold = nil
			if err := c.store.RemoveAll(c.baseCtx); err != nil {
				log.Warn().Err(err).Msg("deferred annotation store clear failed")
			}
		}
		return
	}
	batch := hold.batch

	// The store was left untouched during clearing because of the hold;
	// the batch replaces its contents now.
	if err := c.store.RemoveAll(c.baseCtx); err != nil {
		log.Warn().Err(err).Msg("pre-restore annotation clear failed")
	}

	restored := 0
	for _, a := range batch.Items {
		target, exact := c.remapAnnotationLocked(a.SourceViewportID)
		if target == "" {
			// Last resort: any currently bound region.
			for _, id := range c.regions {
				if c.reg.Has(id) {
					target = id
					break
				}
			}
		}
		if target == "" {
			log.Warn().Str("annotation_id", a.AnnotationID).
				Msg("no viewport available for annotation restore, skipping")
			continue
		}
		if !exact {
			// The fallback heuristic can place an annotation on the
			// wrong image; make that visible.
			log.Warn().
				Str("annotation_id", a.AnnotationID).
				Str("source_viewport", string(a.SourceViewportID)).
				Str("target_viewport", string(target)).
				Msg("annotation relocated by fallback heuristic")
		}

		vp, _ := c.reg.Get(target)
		ann := annotation.Annotation{
			ID:         a.AnnotationID,
			ToolName:   a.ToolName,
			ViewportID: target,
			Payload:    a.Payload,
		}
		if err := c.store.Add(c.baseCtx, ann, vp.Surface); err != nil {
			log.Warn().Err(err).Str("annotation_id", a.AnnotationID).Msg("annotation restore failed, continuing batch")
			continue
		}
		restored++
	}

	log.Debug().Int("restored", restored).Int("total", len(batch.Items)).Msg("annotation restoration finished")
	c.scheduleHoldClearLocked()
	c.phase = PhaseIdle
}

// remapAnnotationLocked resolves the originating viewport to one in
// the new topology: a 1x1 layout maps everything to the sole viewport,
// an exact ID match wins otherwise, and the first available viewport
// is the fallback. Returns the target and whether the mapping was
// positional rather than heuristic.
func (c *Controller) remapAnnotationLocked(source entity.ViewportID) (entity.ViewportID, bool) {
	if len(c.regions) == 1 {
		return c.regions[0], true
	}
	for _, id := range c.regions {
		if id == source && c.reg.Has(id) {
			return id, true
		}
	}
	for _, id := range c.regions {
		if c.reg.Has(id) {
			return id, false
		}
	}
	return "", false
}

// scheduleHoldClearLocked arms the grace period after which a
// successfully restored annotation hold clears itself. Caller holds
// c.mu.
func (c *Controller) scheduleHoldClearLocked() {
	hold := c.hold
	if hold == nil {
		return
	}
	if hold.timer != nil {
		hold.timer.Stop()
	}
	hold.timer = time.AfterFunc(c.timings.AnnotationGrace, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.hold == hold {
			c.hold = nil
			logging.FromContext(c.baseCtx).Debug().Msg("annotation hold cleared after grace period")
		}
	})
}

// ClearSavedAnnotations drops the annotation hold immediately.
func (c *Controller) ClearSavedAnnotations() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hold != nil && c.hold.timer != nil {
		c.hold.timer.Stop()
	}
	c.hold = nil
}
