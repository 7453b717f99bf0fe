// Package layoutctl maps declarative rows-by-cols layouts onto display
// regions, driving the viewport registry through create/destroy cycles
// while preserving camera and annotation state across transitions.
package layoutctl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vistagrid/vistagrid/internal/annotation"
	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/logging"
	"github.com/vistagrid/vistagrid/internal/registry"
	"github.com/vistagrid/vistagrid/pkg/render"
)

// Phase tracks where a transition currently is. Transitions run
// Idle → Saving → Clearing → Rebuilding → Restoring → Idle; any error
// edge falls back to Idle with preservation disabled for that
// transition only.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSaving
	PhaseClearing
	PhaseRebuilding
	PhaseRestoring
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSaving:
		return "saving"
	case PhaseClearing:
		return "clearing"
	case PhaseRebuilding:
		return "rebuilding"
	case PhaseRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

// Timings holds the deferred-restoration schedule. The renderer binds
// surfaces out-of-band, so restoration waits and then polls.
type Timings struct {
	RestoreDelay       time.Duration
	PollInterval       time.Duration
	MaxRestoreAttempts int
	AnnotationGrace    time.Duration
}

// DefaultTimings mirrors the production schedule.
func DefaultTimings() Timings {
	return Timings{
		RestoreDelay:       100 * time.Millisecond,
		PollInterval:       50 * time.Millisecond,
		MaxRestoreAttempts: 20,
		AnnotationGrace:    3 * time.Second,
	}
}

// Options configures a controller.
type Options struct {
	Timings      Timings
	CanvasWidth  float64
	CanvasHeight float64
}

// annotationHold keeps a captured annotation batch alive between the
// save and restore phases. While held, destructive store clears are
// skipped even if an unrelated transition triggers one.
type annotationHold struct {
	batch entity.AnnotationBatch
	timer *time.Timer
}

// Controller is the layout transition state machine.
type Controller struct {
	mu       sync.Mutex
	reg      *registry.Registry
	renderer render.Engine
	store    annotation.Store
	timings  Timings
	canvasW  float64
	canvasH  float64

	layouts     map[string]entity.LayoutConfig
	layoutOrder []string
	current     string
	// regions maps position index to viewport ID for the live layout.
	regions []entity.ViewportID

	phase Phase
	// generation counts transitions. Deferred restoration closures
	// capture the generation they were scheduled under and no-op once
	// a newer transition begins.
	generation uint64
	hold       *annotationHold

	// interactions holds the per-viewport handlers attached during
	// rebuild, released deterministically when a region is cleared.
	interactions map[entity.ViewportID]*render.Subscription

	histEntries []string
	histPos     int

	onTopologyChanged func(context.Context)
	onStateChanged    func()

	baseCtx context.Context
	logger  zerolog.Logger
}

// New creates a controller seeded with the default layout set.
func New(ctx context.Context, reg *registry.Registry, renderer render.Engine, store annotation.Store, opts Options) *Controller {
	if opts.Timings == (Timings{}) {
		opts.Timings = DefaultTimings()
	}
	if opts.CanvasWidth <= 0 {
		opts.CanvasWidth = 1920
	}
	if opts.CanvasHeight <= 0 {
		opts.CanvasHeight = 1080
	}

	c := &Controller{
		reg:          reg,
		renderer:     renderer,
		store:        store,
		timings:      opts.Timings,
		canvasW:      opts.CanvasWidth,
		canvasH:      opts.CanvasHeight,
		layouts:      make(map[string]entity.LayoutConfig),
		interactions: make(map[entity.ViewportID]*render.Subscription),
		histPos:      -1,
		baseCtx:      ctx,
		logger:       logging.FromContext(ctx).With().Str("component", "layout-controller").Logger(),
	}
	for _, cfg := range entity.DefaultLayouts() {
		c.layouts[cfg.Name] = cfg
		c.layoutOrder = append(c.layoutOrder, cfg.Name)
	}
	return c
}

// SetOnTopologyChanged registers the callback invoked after every
// topology change, used to rebuild sync subscriptions. Set once during
// wiring, before the controller is used.
func (c *Controller) SetOnTopologyChanged(fn func(context.Context)) {
	c.onTopologyChanged = fn
}

// SetOnStateChanged registers the callback invoked when layout state
// changes (for session snapshots). Set once during wiring.
func (c *Controller) SetOnStateChanged(fn func()) {
	c.onStateChanged = fn
}

// SetLayout transitions to the named layout, optionally preserving
// viewport and annotation state across the rebuild. An unknown name
// falls back to the default layout rather than failing.
func (c *Controller) SetLayout(ctx context.Context, name string, preserve bool) []entity.Viewport {
	return c.applyLayout(ctx, name, preserve, true)
}

func (c *Controller) applyLayout(ctx context.Context, name string, preserve bool, recordHistory bool) []entity.Viewport {
	log := logging.FromContext(ctx)

	c.mu.Lock()

	cfg, ok := c.layouts[name]
	if !ok {
		log.Warn().Str("layout", name).Str("fallback", entity.DefaultLayoutName).Msg("unknown layout, falling back to default")
		cfg = c.layouts[entity.DefaultLayoutName]
	}

	// Re-creating an identical live topology would needlessly discard
	// renderer state, so the same layout is a no-op.
	if cfg.Name == c.current && len(c.regions) > 0 && c.topologyIntactLocked() {
		log.Debug().Str("layout", cfg.Name).Msg("layout unchanged, skipping transition")
		vps := c.viewportsLocked()
		c.mu.Unlock()
		return vps
	}

	c.generation++
	gen := c.generation

	var snaps []entity.ViewportStateSnapshot
	annotationsCaptured := false
	if preserve && c.reg.Count() > 0 {
		c.phase = PhaseSaving
		var err error
		snaps, err = c.captureStatesLocked()
		if err == nil {
			annotationsCaptured, err = c.captureAnnotationsLocked(ctx)
		}
		if err != nil {
			// The whole preservation attempt fails together. The
			// transition itself still completes.
			log.Warn().Err(err).Str("layout", cfg.Name).Msg("state preservation failed, continuing without it")
			snaps = nil
			annotationsCaptured = false
		}
	}

	c.phase = PhaseClearing
	for id, sub := range c.interactions {
		sub.Cancel()
		delete(c.interactions, id)
	}
	for _, id := range c.regions {
		c.reg.Remove(ctx, id)
	}
	c.regions = nil
	if c.hold == nil {
		// No preserved state anywhere, so clearing the store loses
		// nothing. With a hold in place the store is left untouched
		// and overwritten during restoration instead.
		if err := c.store.RemoveAll(ctx); err != nil {
			log.Warn().Err(err).Msg("annotation store clear failed")
		}
	}

	c.phase = PhaseRebuilding
	c.rebuildLocked(ctx, cfg)
	c.current = cfg.Name
	if recordHistory {
		c.recordHistoryLocked(cfg.Name)
	}

	if len(snaps) > 0 || annotationsCaptured {
		c.phase = PhaseRestoring
		if len(snaps) > 0 {
			c.scheduleStateRestore(gen, snaps)
		}
		if annotationsCaptured {
			c.scheduleAnnotationRestore(gen, c.hold)
		}
	} else {
		c.phase = PhaseIdle
	}

	vps := c.viewportsLocked()
	c.mu.Unlock()

	log.Info().
		Str("layout", cfg.Name).
		Int("viewports", len(vps)).
		Bool("preserving", len(snaps) > 0 || annotationsCaptured).
		Msg("layout applied")

	c.notifyTopologyChanged(ctx)
	c.notifyStateChanged()
	return vps
}

// rebuildLocked instantiates rows*cols display regions and binds each
// through the registry. Region identifiers derive from position index.
func (c *Controller) rebuildLocked(ctx context.Context, cfg entity.LayoutConfig) {
	log := logging.FromContext(ctx)
	regionW := c.canvasW / float64(cfg.Cols)
	regionH := c.canvasH / float64(cfg.Rows)

	for i := 0; i < cfg.ViewportCount(); i++ {
		id := viewportIDForIndex(i)
		surface := entity.SurfaceRef{
			ID:     fmt.Sprintf("region-%d", i),
			Width:  regionW,
			Height: regionH,
		}
		vp, err := c.reg.Create(ctx, id, surface, entity.KindStack, render.Options{})
		if err != nil {
			// A failed region leaves a hole; remaining regions still
			// come up so the operator keeps what can be shown.
			log.Error().Err(err).Str("viewport_id", string(id)).Msg("viewport creation failed during rebuild")
			continue
		}
		c.regions = append(c.regions, vp.ID)
		c.attachInteractionLocked(ctx, vp.ID)
	}
}

// attachInteractionLocked subscribes the interaction handler for one
// viewport. The handle is stored so region teardown can release it.
func (c *Controller) attachInteractionLocked(ctx context.Context, id entity.ViewportID) {
	sub, err := c.renderer.Subscribe(id, render.EventCameraModified, func(render.Event) {
		// Must not take c.mu: the notification can fire while a
		// restoration pass holds it.
		c.notifyStateChanged()
	})
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("viewport_id", string(id)).Msg("interaction handler attach failed")
		return
	}
	c.interactions[id] = sub
}

// captureStatesLocked snapshots camera, properties, and image
// reference for every live region. Any single failure fails the whole
// capture.
func (c *Controller) captureStatesLocked() ([]entity.ViewportStateSnapshot, error) {
	snaps := make([]entity.ViewportStateSnapshot, 0, len(c.regions))
	for i, id := range c.regions {
		vp, ok := c.reg.Get(id)
		if !ok {
			continue
		}
		cam, err := c.renderer.Camera(vp.Binding)
		if err != nil {
			return nil, fmt.Errorf("capture camera for %s: %w", id, err)
		}
		props, err := c.renderer.Properties(vp.Binding)
		if err != nil {
			return nil, fmt.Errorf("capture properties for %s: %w", id, err)
		}
		snaps = append(snaps, entity.ViewportStateSnapshot{
			Index:      i,
			ViewportID: id,
			Active:     vp.Active,
			Camera:     &cam,
			Properties: &props,
			ImageID:    props.CurrentImage,
		})
	}
	return snaps, nil
}

// captureAnnotationsLocked snapshots the annotation store into a hold.
// Returns true when annotations were captured.
func (c *Controller) captureAnnotationsLocked(ctx context.Context) (bool, error) {
	anns, err := c.store.All(ctx)
	if err != nil {
		return false, fmt.Errorf("capture annotations: %w", err)
	}
	if len(anns) == 0 {
		return false, nil
	}

	batch := entity.AnnotationBatch{CapturedAt: time.Now()}
	for _, a := range anns {
		batch.Items = append(batch.Items, entity.AnnotationSnapshot{
			AnnotationID:     a.ID,
			ToolName:         a.ToolName,
			Payload:          a.Payload,
			SourceViewportID: a.ViewportID,
		})
	}
	c.setHoldLocked(batch)
	return true, nil
}

func (c *Controller) setHoldLocked(batch entity.AnnotationBatch) {
	if c.hold != nil && c.hold.timer != nil {
		c.hold.timer.Stop()
	}
	c.hold = &annotationHold{batch: batch}
}

// viewportsLocked resolves the region list to viewport copies.
func (c *Controller) viewportsLocked() []entity.Viewport {
	out := make([]entity.Viewport, 0, len(c.regions))
	for _, id := range c.regions {
		if vp, ok := c.reg.Get(id); ok {
			out = append(out, vp)
		}
	}
	return out
}

// topologyIntactLocked reports whether every current region still
// exists in the registry. Out-of-band removal breaks the same-layout
// no-op optimization.
func (c *Controller) topologyIntactLocked() bool {
	for _, id := range c.regions {
		if !c.reg.Has(id) {
			return false
		}
	}
	return true
}

func (c *Controller) notifyTopologyChanged(ctx context.Context) {
	if c.onTopologyChanged != nil {
		c.onTopologyChanged(ctx)
	}
}

func (c *Controller) notifyStateChanged() {
	if c.onStateChanged != nil {
		c.onStateChanged()
	}
}

func viewportIDForIndex(i int) entity.ViewportID {
	return entity.ViewportID(fmt.Sprintf("viewport-%d", i))
}

// CurrentLayout returns the live layout name ("" before the first
// transition).
func (c *Controller) CurrentLayout() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ViewportIDs returns the region viewport IDs in position order.
func (c *Controller) ViewportIDs() []entity.ViewportID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.ViewportID(nil), c.regions...)
}

// Phase returns the current transition phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// HasPreservedState reports whether an annotation hold is in place.
func (c *Controller) HasPreservedState() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hold != nil
}

// Reset clears history and preserved state, then applies the minimal
// default layout without preservation. Used by full cleanup.
func (c *Controller) Reset(ctx context.Context) []entity.Viewport {
	c.mu.Lock()
	if c.hold != nil && c.hold.timer != nil {
		c.hold.timer.Stop()
	}
	c.hold = nil
	c.histEntries = nil
	c.histPos = -1
	c.current = ""
	c.mu.Unlock()

	return c.applyLayout(ctx, entity.DefaultLayoutName, false, true)
}
