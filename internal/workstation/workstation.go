// Package workstation wires the viewport registry, layout transition
// controller, synchronization engine, and cleanup manager into one
// explicit context object constructed at startup and passed by
// injection, so multiple independent instances can coexist in tests.
package workstation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vistagrid/vistagrid/internal/annotation"
	"github.com/vistagrid/vistagrid/internal/cleanup"
	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/domain/repository"
	"github.com/vistagrid/vistagrid/internal/infrastructure/config"
	"github.com/vistagrid/vistagrid/internal/layoutctl"
	"github.com/vistagrid/vistagrid/internal/logging"
	"github.com/vistagrid/vistagrid/internal/registry"
	"github.com/vistagrid/vistagrid/internal/syncengine"
	"github.com/vistagrid/vistagrid/pkg/render"
)

// Options configures a workstation.
type Options struct {
	Renderer    render.Engine
	Annotations annotation.Store
	States      repository.StateRepository
	Config      *config.Config
}

// Workstation owns the four coordination components and the
// caller-facing surface.
type Workstation struct {
	Registry *registry.Registry
	Sync     *syncengine.Engine
	Layout   *layoutctl.Controller
	Cleanup  *cleanup.Manager

	renderer    render.Engine
	annotations annotation.Store
	states      repository.StateRepository

	sessionEnabled bool
	defaultLayout  string
	saveDebounce   time.Duration
	saveMu         sync.Mutex
	saveTimer      *time.Timer

	stopSweep func()
	sweepEach time.Duration

	baseCtx context.Context
	logger  zerolog.Logger
}

// New wires a workstation from its collaborators. A nil annotation
// store gets an in-memory one; a nil state repository disables
// session persistence.
func New(ctx context.Context, opts Options) *Workstation {
	cfg := opts.Config
	if cfg == nil {
		cfg = defaultConfig()
	}
	store := opts.Annotations
	if store == nil {
		store = annotation.NewMemoryStore()
	}

	reg := registry.New(ctx, opts.Renderer)
	syncer := syncengine.New(ctx, reg, opts.Renderer)
	controller := layoutctl.New(ctx, reg, opts.Renderer, store, layoutctl.Options{
		Timings: layoutctl.Timings{
			RestoreDelay:       cfg.Restore.Delay(),
			PollInterval:       cfg.Restore.PollInterval(),
			MaxRestoreAttempts: cfg.Restore.MaxAttempts,
			AnnotationGrace:    cfg.Restore.AnnotationGrace(),
		},
		CanvasWidth:  cfg.Display.CanvasWidth,
		CanvasHeight: cfg.Display.CanvasHeight,
	})
	cleaner := cleanup.New(ctx, reg, syncer, controller, opts.Renderer)

	w := &Workstation{
		Registry:       reg,
		Sync:           syncer,
		Layout:         controller,
		Cleanup:        cleaner,
		renderer:       opts.Renderer,
		annotations:    store,
		states:         opts.States,
		sessionEnabled: opts.States != nil && cfg.Session.Enabled,
		defaultLayout:  cfg.DefaultLayout,
		saveDebounce:   cfg.Session.SaveDebounce(),
		sweepEach:      cfg.Cleanup.OrphanSweepInterval(),
		baseCtx:        ctx,
		logger:         logging.FromContext(ctx).With().Str("component", "workstation").Logger(),
	}

	controller.SetOnTopologyChanged(func(ctx context.Context) {
		syncer.Resubscribe(ctx)
		w.markDirty()
	})
	controller.SetOnStateChanged(w.markDirty)

	return w
}

func defaultConfig() *config.Config {
	return &config.Config{
		Display: config.DisplayConfig{CanvasWidth: 1920, CanvasHeight: 1080},
		Restore: config.RestoreConfig{DelayMs: 100, PollIntervalMs: 50, MaxAttempts: 20, AnnotationGraceMs: 3000},
		Cleanup: config.CleanupConfig{OrphanSweepIntervalMs: 60000},
		Session: config.SessionConfig{Enabled: true, SaveDebounceMs: 5000},
	}
}

// StartMaintenance begins the recurring orphan sweep.
func (w *Workstation) StartMaintenance(ctx context.Context) {
	if w.stopSweep != nil {
		return
	}
	w.stopSweep = w.Cleanup.StartPeriodic(logging.WithComponent(ctx, "maintenance"), w.sweepEach)
}

// Close stops background work and flushes pending session state.
func (w *Workstation) Close(ctx context.Context) error {
	if w.stopSweep != nil {
		w.stopSweep()
		w.stopSweep = nil
	}
	w.saveMu.Lock()
	if w.saveTimer != nil {
		w.saveTimer.Stop()
		w.saveTimer = nil
	}
	w.saveMu.Unlock()
	return w.SaveSession(ctx)
}

// SetLayout transitions to the named layout.
func (w *Workstation) SetLayout(ctx context.Context, name string, preserve bool) []entity.Viewport {
	return w.Layout.SetLayout(ctx, name, preserve)
}

// ActivateViewport makes the given viewport the active one.
func (w *Workstation) ActivateViewport(id entity.ViewportID) bool {
	ok := w.Registry.SetActive(id)
	if ok {
		w.markDirty()
	}
	return ok
}

// AddViewport appends a display region to the live layout.
func (w *Workstation) AddViewport(ctx context.Context) (*entity.Viewport, error) {
	return w.Layout.AddViewport(ctx)
}

// RemoveViewport removes the region at the given position index.
func (w *Workstation) RemoveViewport(ctx context.Context, index int) bool {
	return w.Layout.RemoveViewport(ctx, index)
}

// CloneViewport duplicates a region's camera and properties onto a new
// viewport.
func (w *Workstation) CloneViewport(ctx context.Context, sourceIndex int) (*entity.Viewport, error) {
	return w.Layout.CloneViewport(ctx, sourceIndex)
}

// SwapViewports exchanges two regions.
func (w *Workstation) SwapViewports(ctx context.Context, i, j int) bool {
	return w.Layout.SwapViewports(ctx, i, j)
}

// Undo reverts the last layout transition.
func (w *Workstation) Undo(ctx context.Context) bool {
	return w.Layout.Undo(ctx)
}

// Redo re-applies an undone layout transition.
func (w *Workstation) Redo(ctx context.Context) bool {
	return w.Layout.Redo(ctx)
}

// CreateSyncGroup registers a sync group.
func (w *Workstation) CreateSyncGroup(ctx context.Context, id string, types []entity.SyncType) (*entity.SyncGroup, error) {
	g, err := w.Sync.CreateSyncGroup(ctx, id, types)
	if err == nil {
		w.markDirty()
	}
	return g, err
}

// AddViewportToSyncGroup subscribes a viewport into a group.
func (w *Workstation) AddViewportToSyncGroup(ctx context.Context, groupID string, id entity.ViewportID) error {
	err := w.Sync.AddViewport(ctx, groupID, id)
	if err == nil {
		w.markDirty()
	}
	return err
}

// RemoveViewportFromSyncGroup detaches a viewport from a group.
func (w *Workstation) RemoveViewportFromSyncGroup(ctx context.Context, groupID string, id entity.ViewportID) error {
	err := w.Sync.RemoveViewport(ctx, groupID, id)
	if err == nil {
		w.markDirty()
	}
	return err
}

// RemoveSyncGroup deletes a group and its listener subscriptions.
func (w *Workstation) RemoveSyncGroup(ctx context.Context, groupID string) error {
	err := w.Sync.RemoveGroup(ctx, groupID)
	if err == nil {
		w.markDirty()
	}
	return err
}

// EnableSyncGroup resumes propagation for a group.
func (w *Workstation) EnableSyncGroup(groupID string) bool {
	ok := w.Sync.EnableGroup(groupID)
	if ok {
		w.markDirty()
	}
	return ok
}

// DisableSyncGroup suspends propagation for a group without
// discarding its membership.
func (w *Workstation) DisableSyncGroup(groupID string) bool {
	ok := w.Sync.DisableGroup(groupID)
	if ok {
		w.markDirty()
	}
	return ok
}

// SynchronizeViewports runs one propagation pass.
func (w *Workstation) SynchronizeViewports(ctx context.Context, source entity.ViewportID, typ entity.SyncType, payload syncengine.Payload) int {
	return w.Sync.Synchronize(ctx, source, typ, payload)
}

// PerformFullCleanup tears everything down to the minimal layout.
func (w *Workstation) PerformFullCleanup(ctx context.Context) entity.CleanupStats {
	stats := w.Cleanup.Full(ctx)
	w.markDirty()
	return stats
}

// PerformLightCleanup prunes orphaned sync state.
func (w *Workstation) PerformLightCleanup(ctx context.Context) entity.CleanupStats {
	return w.Cleanup.Light(ctx)
}

// CleanupSpecificViewports removes the listed viewports everywhere.
func (w *Workstation) CleanupSpecificViewports(ctx context.Context, ids []entity.ViewportID) entity.CleanupStats {
	stats := w.Cleanup.Viewports(ctx, ids)
	w.markDirty()
	return stats
}

// GetCurrentLayout returns the live layout name.
func (w *Workstation) GetCurrentLayout() string {
	return w.Layout.CurrentLayout()
}

// GetViewportCount returns the number of registered viewports.
func (w *Workstation) GetViewportCount() int {
	return w.Registry.Count()
}

// GetAllSyncGroups returns a snapshot of every sync group.
func (w *Workstation) GetAllSyncGroups() []entity.SyncGroup {
	return w.Sync.Groups()
}

// GetMemoryUsageEstimate reports an in-process accounting of the
// coordination state: surface buffers, listener handles, and held
// annotation payloads. It is an estimate, not a measurement.
func (w *Workstation) GetMemoryUsageEstimate(ctx context.Context) int64 {
	const (
		bytesPerPixel  = 4
		bytesPerHandle = 256
		bytesPerGroup  = 512
	)

	var total int64
	for _, id := range w.Registry.AllIDs() {
		vp, ok := w.Registry.Get(id)
		if !ok {
			continue
		}
		total += int64(vp.Surface.Width * vp.Surface.Height * bytesPerPixel)
	}
	total += int64(w.Sync.SubscriptionCount() * bytesPerHandle)
	total += int64(len(w.Sync.Groups()) * bytesPerGroup)

	if anns, err := w.annotations.All(ctx); err == nil {
		for _, a := range anns {
			total += int64(len(a.Payload))
		}
	}
	return total
}
