package layoutctl

import (
	"context"
	"errors"
	"fmt"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/logging"
	"github.com/vistagrid/vistagrid/pkg/render"
)

// ErrDuplicateLayout reports registering a layout name that exists.
var ErrDuplicateLayout = errors.New("layoutctl: layout already registered")

// ErrNoRegions is returned by operations that need at least one live
// display region.
var ErrNoRegions = errors.New("layoutctl: no display regions")

// AddViewport appends one display region to the live layout, outside
// the grid positions.
func (c *Controller) AddViewport(ctx context.Context) (*entity.Viewport, error) {
	c.mu.Lock()
	vp, err := c.addViewportLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.notifyTopologyChanged(ctx)
	c.notifyStateChanged()
	return vp, nil
}

// addViewportLocked binds a new region at the next free index.
// Caller holds c.mu.
func (c *Controller) addViewportLocked(ctx context.Context) (*entity.Viewport, error) {
	cfg, ok := c.layouts[c.current]
	if !ok {
		cfg = c.layouts[entity.DefaultLayoutName]
	}

	index := len(c.regions)
	id := viewportIDForIndex(index)
	for c.reg.Has(id) {
		index++
		id = viewportIDForIndex(index)
	}

	surface := entity.SurfaceRef{
		ID:     fmt.Sprintf("region-%d", index),
		Width:  c.canvasW / float64(cfg.Cols),
		Height: c.canvasH / float64(cfg.Rows),
	}
	vp, err := c.reg.Create(ctx, id, surface, entity.KindStack, render.Options{})
	if err != nil {
		return nil, fmt.Errorf("add viewport: %w", err)
	}
	c.regions = append(c.regions, vp.ID)
	c.attachInteractionLocked(ctx, vp.ID)
	return vp, nil
}

// RemoveViewport removes the region at the given position index.
// Removing the last remaining viewport is rejected.
func (c *Controller) RemoveViewport(ctx context.Context, index int) bool {
	log := logging.FromContext(ctx)

	c.mu.Lock()
	if index < 0 || index >= len(c.regions) {
		c.mu.Unlock()
		log.Warn().Int("index", index).Msg("removeViewport ignored: index out of range")
		return false
	}
	if len(c.regions) <= 1 {
		c.mu.Unlock()
		log.Warn().Msg("removeViewport rejected: would leave zero viewports")
		return false
	}

	id := c.regions[index]
	if sub, ok := c.interactions[id]; ok {
		sub.Cancel()
		delete(c.interactions, id)
	}
	c.reg.Remove(ctx, id)
	c.regions = append(c.regions[:index], c.regions[index+1:]...)
	c.mu.Unlock()

	c.notifyTopologyChanged(ctx)
	c.notifyStateChanged()
	return true
}

// RemoveRegion drops the named viewport's region without the minimum
// count guard. Targeted cleanup uses it; interactive removal goes
// through RemoveViewport.
func (c *Controller) RemoveRegion(ctx context.Context, id entity.ViewportID) bool {
	c.mu.Lock()
	found := false
	for i, rid := range c.regions {
		if rid == id {
			c.regions = append(c.regions[:i], c.regions[i+1:]...)
			found = true
			break
		}
	}
	if sub, ok := c.interactions[id]; ok {
		sub.Cancel()
		delete(c.interactions, id)
	}
	c.mu.Unlock()
	return found
}

// CloneViewport duplicates the source region's camera and display
// properties onto a newly added viewport.
func (c *Controller) CloneViewport(ctx context.Context, sourceIndex int) (*entity.Viewport, error) {
	log := logging.FromContext(ctx)

	c.mu.Lock()
	if sourceIndex < 0 || sourceIndex >= len(c.regions) {
		c.mu.Unlock()
		return nil, fmt.Errorf("clone viewport: index %d out of range", sourceIndex)
	}
	src, ok := c.reg.Get(c.regions[sourceIndex])
	if !ok {
		c.mu.Unlock()
		return nil, ErrNoRegions
	}

	cam, camErr := c.renderer.Camera(src.Binding)
	props, propsErr := c.renderer.Properties(src.Binding)

	vp, err := c.addViewportLocked(ctx)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	if camErr == nil {
		if err := c.renderer.SetCamera(vp.Binding, cam); err != nil {
			log.Warn().Err(err).Str("viewport_id", string(vp.ID)).Msg("clone camera apply failed")
		}
	}
	if propsErr == nil {
		if err := c.renderer.SetProperties(vp.Binding, props); err != nil {
			log.Warn().Err(err).Str("viewport_id", string(vp.ID)).Msg("clone properties apply failed")
		}
	}
	if err := c.renderer.Render(vp.Binding); err != nil {
		log.Warn().Err(err).Str("viewport_id", string(vp.ID)).Msg("post-clone render failed")
	}
	c.mu.Unlock()

	c.notifyTopologyChanged(ctx)
	c.notifyStateChanged()
	return vp, nil
}

// SwapViewports exchanges the regions at two position indices.
func (c *Controller) SwapViewports(ctx context.Context, i, j int) bool {
	log := logging.FromContext(ctx)

	c.mu.Lock()
	if i < 0 || j < 0 || i >= len(c.regions) || j >= len(c.regions) || i == j {
		c.mu.Unlock()
		log.Warn().Int("i", i).Int("j", j).Msg("swapViewports ignored: invalid indices")
		return false
	}
	c.regions[i], c.regions[j] = c.regions[j], c.regions[i]
	for _, id := range []entity.ViewportID{c.regions[i], c.regions[j]} {
		if vp, ok := c.reg.Get(id); ok {
			if err := c.renderer.Render(vp.Binding); err != nil {
				log.Warn().Err(err).Str("viewport_id", string(id)).Msg("post-swap render failed")
			}
		}
	}
	c.mu.Unlock()

	c.notifyStateChanged()
	return true
}

// RegisterLayout adds a named layout config.
func (c *Controller) RegisterLayout(cfg entity.LayoutConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.layouts[cfg.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLayout, cfg.Name)
	}
	c.layouts[cfg.Name] = cfg
	c.layoutOrder = append(c.layoutOrder, cfg.Name)
	return nil
}

// RemoveLayout deletes a named layout. Seeded defaults may not be
// removed.
func (c *Controller) RemoveLayout(name string) bool {
	for _, d := range entity.DefaultLayouts() {
		if d.Name == name {
			return false
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.layouts[name]; !ok {
		return false
	}
	delete(c.layouts, name)
	for i, n := range c.layoutOrder {
		if n == name {
			c.layoutOrder = append(c.layoutOrder[:i], c.layoutOrder[i+1:]...)
			break
		}
	}
	return true
}

// Layouts returns every registered layout in registration order.
func (c *Controller) Layouts() []entity.LayoutConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.LayoutConfig, 0, len(c.layoutOrder))
	for _, name := range c.layoutOrder {
		out = append(out, c.layouts[name])
	}
	return out
}
