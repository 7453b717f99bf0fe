package layoutctl

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistagrid/vistagrid/internal/annotation"
	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/registry"
	"github.com/vistagrid/vistagrid/pkg/render"
)

func testTimings() Timings {
	return Timings{
		RestoreDelay:       10 * time.Millisecond,
		PollInterval:       5 * time.Millisecond,
		MaxRestoreAttempts: 5,
		AnnotationGrace:    50 * time.Millisecond,
	}
}

type ctlFixture struct {
	engine *render.Offscreen
	reg    *registry.Registry
	store  *annotation.MemoryStore
	ctl    *Controller
}

func newCtlFixture(ctx context.Context) *ctlFixture {
	engine := render.NewOffscreen()
	reg := registry.New(ctx, engine)
	store := annotation.NewMemoryStore()
	ctl := New(ctx, reg, engine, store, Options{Timings: testTimings()})
	return &ctlFixture{engine: engine, reg: reg, store: store, ctl: ctl}
}

func (f *ctlFixture) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.ctl.Phase() == PhaseIdle
	}, 2*time.Second, 5*time.Millisecond, "transition never settled")
}

func TestController_SetLayout(t *testing.T) {
	ctx := context.Background()

	t.Run("builds the grid and activates the first viewport", func(t *testing.T) {
		f := newCtlFixture(ctx)

		viewports := f.ctl.SetLayout(ctx, "2x2", false)

		require.Len(t, viewports, 4)
		assert.Equal(t, "2x2", f.ctl.CurrentLayout())
		assert.Equal(t, entity.ViewportID("viewport-0"), f.reg.ActiveID())
		assert.Equal(t, PhaseIdle, f.ctl.Phase())
	})

	t.Run("regions split the canvas evenly", func(t *testing.T) {
		f := newCtlFixture(ctx)

		viewports := f.ctl.SetLayout(ctx, "2x2", false)

		require.Len(t, viewports, 4)
		assert.InDelta(t, 960, viewports[0].Surface.Width, 0.01)
		assert.InDelta(t, 540, viewports[0].Surface.Height, 0.01)
	})

	t.Run("unknown layout falls back to the default", func(t *testing.T) {
		f := newCtlFixture(ctx)

		viewports := f.ctl.SetLayout(ctx, "13x37", false)

		require.Len(t, viewports, 1)
		assert.Equal(t, entity.DefaultLayoutName, f.ctl.CurrentLayout())
	})

	t.Run("same layout is a no-op", func(t *testing.T) {
		f := newCtlFixture(ctx)

		before := f.ctl.SetLayout(ctx, "2x2", false)
		after := f.ctl.SetLayout(ctx, "2x2", false)

		require.Len(t, after, 4)
		for i := range before {
			assert.Equal(t, before[i].Binding, after[i].Binding, "binding %d changed", i)
		}
	})

	t.Run("same layout rebuilds after out-of-band removal", func(t *testing.T) {
		f := newCtlFixture(ctx)

		f.ctl.SetLayout(ctx, "2x2", false)
		removed, err := f.reg.Remove(ctx, "viewport-3")
		require.NoError(t, err)
		require.True(t, removed)

		after := f.ctl.SetLayout(ctx, "2x2", false)

		assert.Len(t, after, 4)
		assert.Equal(t, 4, f.reg.Count())
	})
}

func TestController_StatePreservation(t *testing.T) {
	ctx := context.Background()

	t.Run("camera and properties survive a round trip", func(t *testing.T) {
		f := newCtlFixture(ctx)
		viewports := f.ctl.SetLayout(ctx, "2x2", false)

		cam := entity.Camera{Position: entity.Vec3{0, 0, 500}, Zoom: 2.5, ParallelScale: 80}
		require.NoError(t, f.engine.SetCamera(viewports[1].Binding, cam))
		voi := entity.VOIRange{Lower: -100, Upper: 400}
		require.NoError(t, f.engine.SetProperties(viewports[1].Binding, entity.DisplayProperties{VOI: &voi, Rotation: 90}))

		f.ctl.SetLayout(ctx, "1x3", true)
		f.waitIdle(t)

		h, ok := f.engine.Handle("viewport-1")
		require.True(t, ok)
		got, err := f.engine.Camera(h)
		require.NoError(t, err)
		assert.True(t, got.ApproxEqual(cam, 1e-9))

		props, err := f.engine.Properties(h)
		require.NoError(t, err)
		require.NotNil(t, props.VOI)
		assert.Equal(t, voi, *props.VOI)
		assert.Equal(t, 90.0, props.Rotation)
	})

	t.Run("active viewport is restored by position", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "2x2", false)
		require.True(t, f.reg.SetActive("viewport-2"))

		f.ctl.SetLayout(ctx, "1x3", true)
		f.waitIdle(t)

		assert.Equal(t, entity.ViewportID("viewport-2"), f.reg.ActiveID())
	})

	t.Run("saved state beyond the new layout size is discarded", func(t *testing.T) {
		f := newCtlFixture(ctx)
		viewports := f.ctl.SetLayout(ctx, "2x2", false)

		for i, vp := range viewports {
			cam := entity.Camera{Zoom: float64(i+1) * 10}
			require.NoError(t, f.engine.SetCamera(vp.Binding, cam))
		}

		after := f.ctl.SetLayout(ctx, "1x1", true)
		f.waitIdle(t)

		require.Len(t, after, 1)
		h, _ := f.engine.Handle("viewport-0")
		got, err := f.engine.Camera(h)
		require.NoError(t, err)
		assert.Equal(t, 10.0, got.Zoom)
	})

	t.Run("a newer transition cancels a scheduled restoration", func(t *testing.T) {
		f := newCtlFixture(ctx)
		viewports := f.ctl.SetLayout(ctx, "2x2", false)
		require.NoError(t, f.engine.SetCamera(viewports[0].Binding, entity.Camera{Zoom: 9}))

		// The second transition starts before the first one's deferred
		// restoration fires. The stale closure must not write into the
		// final topology.
		f.ctl.SetLayout(ctx, "1x3", true)
		f.ctl.SetLayout(ctx, "3x1", false)
		f.waitIdle(t)
		time.Sleep(3 * testTimings().RestoreDelay)

		h, _ := f.engine.Handle("viewport-0")
		got, err := f.engine.Camera(h)
		require.NoError(t, err)
		assert.NotEqual(t, 9.0, got.Zoom)
	})

	t.Run("capture failure completes the transition without restoration", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "2x2", false)
		f.engine.FailCamera("viewport-1", assert.AnError)

		after := f.ctl.SetLayout(ctx, "1x3", true)

		assert.Len(t, after, 3)
		assert.Equal(t, PhaseIdle, f.ctl.Phase())
		assert.False(t, f.ctl.HasPreservedState())
	})
}

func TestController_AnnotationPreservation(t *testing.T) {
	ctx := context.Background()

	addAnnotation := func(t *testing.T, f *ctlFixture, id string, viewport entity.ViewportID) {
		t.Helper()
		vp, ok := f.reg.Get(viewport)
		require.True(t, ok)
		err := f.store.Add(ctx, annotation.Annotation{
			ID:         id,
			ToolName:   "length",
			ViewportID: viewport,
			Payload:    json.RawMessage(`{"mm": 42.5}`),
		}, vp.Surface)
		require.NoError(t, err)
	}

	annotationsByID := func(t *testing.T, f *ctlFixture) map[string]annotation.Annotation {
		t.Helper()
		anns, err := f.store.All(ctx)
		require.NoError(t, err)
		out := make(map[string]annotation.Annotation, len(anns))
		for _, a := range anns {
			out[a.ID] = a
		}
		return out
	}

	t.Run("collapse to 1x1 maps every annotation to the sole viewport", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "2x2", false)
		addAnnotation(t, f, "ann-1", "viewport-2")
		addAnnotation(t, f, "ann-2", "viewport-3")

		f.ctl.SetLayout(ctx, "1x1", true)
		f.waitIdle(t)

		require.Eventually(t, func() bool {
			byID := annotationsByID(t, f)
			if len(byID) != 2 {
				return false
			}
			for _, a := range byID {
				if a.ViewportID != "viewport-0" {
					return false
				}
			}
			return true
		}, 2*time.Second, 5*time.Millisecond, "annotations never landed on the sole viewport")
	})

	t.Run("matching viewport id keeps its annotation", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "2x2", false)
		addAnnotation(t, f, "ann-1", "viewport-1")

		f.ctl.SetLayout(ctx, "2x3", true)
		f.waitIdle(t)

		require.Eventually(t, func() bool {
			a, ok := annotationsByID(t, f)["ann-1"]
			return ok && a.ViewportID == "viewport-1"
		}, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("transition without preservation clears the store", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "2x2", false)
		addAnnotation(t, f, "ann-1", "viewport-0")

		f.ctl.SetLayout(ctx, "1x3", false)

		assert.Equal(t, 0, f.store.Count())
	})

	t.Run("hold abandoned by a newer transition is dropped", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "2x2", false)
		addAnnotation(t, f, "ann-1", "viewport-0")

		// The second transition starts before the first one's deferred
		// restoration fires, invalidating it.
		f.ctl.SetLayout(ctx, "1x1", true)
		f.ctl.SetLayout(ctx, "2x2", false)

		require.Eventually(t, func() bool {
			return !f.ctl.HasPreservedState() && f.store.Count() == 0
		}, 2*time.Second, 5*time.Millisecond, "abandoned hold was never reaped")

		// With the hold gone, non-preserving transitions wipe the store
		// again.
		addAnnotation(t, f, "ann-2", "viewport-1")
		f.ctl.SetLayout(ctx, "1x3", false)
		assert.Equal(t, 0, f.store.Count())
	})

	t.Run("hold clears itself after the grace period", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "2x2", false)
		addAnnotation(t, f, "ann-1", "viewport-0")

		f.ctl.SetLayout(ctx, "1x1", true)
		require.True(t, f.ctl.HasPreservedState())

		f.waitIdle(t)
		require.Eventually(t, func() bool {
			return !f.ctl.HasPreservedState()
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestController_History(t *testing.T) {
	ctx := context.Background()
	f := newCtlFixture(ctx)

	f.ctl.SetLayout(ctx, "1x1", false)
	f.ctl.SetLayout(ctx, "2x2", false)
	f.waitIdle(t)
	f.ctl.SetLayout(ctx, "1x3", false)
	f.waitIdle(t)

	require.True(t, f.ctl.Undo(ctx))
	f.waitIdle(t)
	assert.Equal(t, "2x2", f.ctl.CurrentLayout())

	require.True(t, f.ctl.Redo(ctx))
	f.waitIdle(t)
	assert.Equal(t, "1x3", f.ctl.CurrentLayout())

	// Nothing beyond the newest entry.
	assert.False(t, f.ctl.Redo(ctx))
}

func TestController_AddRemoveViewport(t *testing.T) {
	ctx := context.Background()

	t.Run("add appends a region", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "2x2", false)

		vp, err := f.ctl.AddViewport(ctx)
		require.NoError(t, err)

		assert.Equal(t, entity.ViewportID("viewport-4"), vp.ID)
		assert.Equal(t, 5, f.reg.Count())
	})

	t.Run("add avoids id collisions after removal", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "1x3", false)
		require.True(t, f.ctl.RemoveViewport(ctx, 0))

		vp, err := f.ctl.AddViewport(ctx)
		require.NoError(t, err)

		assert.False(t, vp.ID == "viewport-1" || vp.ID == "viewport-2", "collided with live viewport %s", vp.ID)
	})

	t.Run("remove rejects the last viewport", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "1x1", false)

		assert.False(t, f.ctl.RemoveViewport(ctx, 0))
		assert.Equal(t, 1, f.reg.Count())
	})

	t.Run("remove rejects an out-of-range index", func(t *testing.T) {
		f := newCtlFixture(ctx)
		f.ctl.SetLayout(ctx, "2x2", false)

		assert.False(t, f.ctl.RemoveViewport(ctx, 7))
		assert.False(t, f.ctl.RemoveViewport(ctx, -1))
	})
}

func TestController_CloneViewport(t *testing.T) {
	ctx := context.Background()
	f := newCtlFixture(ctx)
	viewports := f.ctl.SetLayout(ctx, "2x2", false)

	cam := entity.Camera{Position: entity.Vec3{11, 0, 0}, Zoom: 4}
	require.NoError(t, f.engine.SetCamera(viewports[2].Binding, cam))

	vp, err := f.ctl.CloneViewport(ctx, 2)
	require.NoError(t, err)

	got, err := f.engine.Camera(vp.Binding)
	require.NoError(t, err)
	assert.True(t, got.ApproxEqual(cam, 1e-9))
}

func TestController_SwapViewports(t *testing.T) {
	ctx := context.Background()
	f := newCtlFixture(ctx)
	f.ctl.SetLayout(ctx, "2x2", false)

	require.True(t, f.ctl.SwapViewports(ctx, 0, 3))

	ids := f.ctl.ViewportIDs()
	assert.Equal(t, entity.ViewportID("viewport-3"), ids[0])
	assert.Equal(t, entity.ViewportID("viewport-0"), ids[3])

	assert.False(t, f.ctl.SwapViewports(ctx, 1, 1))
	assert.False(t, f.ctl.SwapViewports(ctx, 0, 9))
}

func TestController_RegisterLayout(t *testing.T) {
	ctx := context.Background()
	f := newCtlFixture(ctx)

	custom := entity.LayoutConfig{Name: "4x4", Rows: 4, Cols: 4}
	require.NoError(t, f.ctl.RegisterLayout(custom))
	assert.ErrorIs(t, f.ctl.RegisterLayout(custom), ErrDuplicateLayout)

	viewports := f.ctl.SetLayout(ctx, "4x4", false)
	assert.Len(t, viewports, 16)

	assert.Error(t, f.ctl.RegisterLayout(entity.LayoutConfig{Name: "bad", Rows: 0, Cols: 2}))
}

func TestController_RemoveLayout(t *testing.T) {
	f := newCtlFixture(context.Background())

	require.NoError(t, f.ctl.RegisterLayout(entity.LayoutConfig{Name: "4x1", Rows: 4, Cols: 1}))
	assert.True(t, f.ctl.RemoveLayout("4x1"))
	assert.False(t, f.ctl.RemoveLayout("4x1"))

	// Seeded defaults are not removable.
	assert.False(t, f.ctl.RemoveLayout("1x1"))
}

func TestController_Reset(t *testing.T) {
	ctx := context.Background()
	f := newCtlFixture(ctx)
	f.ctl.SetLayout(ctx, "2x2", false)
	f.ctl.SetLayout(ctx, "1x3", false)

	viewports := f.ctl.Reset(ctx)

	require.Len(t, viewports, 1)
	assert.Equal(t, entity.DefaultLayoutName, f.ctl.CurrentLayout())
	assert.False(t, f.ctl.HasPreservedState())
	// The fresh default layout is the sole history entry.
	assert.Equal(t, 1, f.ctl.HistoryDepth())
}
