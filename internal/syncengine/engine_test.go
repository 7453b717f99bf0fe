package syncengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/registry"
	"github.com/vistagrid/vistagrid/pkg/render"
)

type fixture struct {
	engine *render.Offscreen
	reg    *registry.Registry
	sync   *Engine
}

func newFixture(t *testing.T, ctx context.Context, ids ...entity.ViewportID) *fixture {
	t.Helper()
	engine := render.NewOffscreen()
	reg := registry.New(ctx, engine)
	for _, id := range ids {
		_, err := reg.Create(ctx, id, entity.SurfaceRef{ID: string(id), Width: 640, Height: 480}, entity.KindStack, render.Options{})
		require.NoError(t, err)
	}
	return &fixture{engine: engine, reg: reg, sync: New(ctx, reg, engine)}
}

func (f *fixture) camera(t *testing.T, id entity.ViewportID) entity.Camera {
	t.Helper()
	h, ok := f.engine.Handle(id)
	require.True(t, ok)
	cam, err := f.engine.Camera(h)
	require.NoError(t, err)
	return cam
}

func TestEngine_CreateSyncGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("discards invalid types but keeps valid ones", func(t *testing.T) {
		f := newFixture(t, ctx)

		g, err := f.sync.CreateSyncGroup(ctx, "g1", []entity.SyncType{entity.SyncPan, "teleport"})
		require.NoError(t, err)

		assert.True(t, g.HasType(entity.SyncPan))
		assert.False(t, g.HasType("teleport"))
	})

	t.Run("rejects a group with no valid types", func(t *testing.T) {
		f := newFixture(t, ctx)

		_, err := f.sync.CreateSyncGroup(ctx, "g1", []entity.SyncType{"teleport"})

		assert.ErrorIs(t, err, ErrNoValidTypes)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		f := newFixture(t, ctx)

		_, err := f.sync.CreateSyncGroup(ctx, "g1", []entity.SyncType{entity.SyncPan})
		require.NoError(t, err)
		_, err = f.sync.CreateSyncGroup(ctx, "g1", []entity.SyncType{entity.SyncZoom})

		assert.ErrorIs(t, err, ErrDuplicateGroup)
	})
}

func TestEngine_AddViewport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ctx, "viewport-0")

	_, err := f.sync.CreateSyncGroup(ctx, "g1", []entity.SyncType{entity.SyncPan})
	require.NoError(t, err)

	t.Run("member gains a camera listener", func(t *testing.T) {
		require.NoError(t, f.sync.AddViewport(ctx, "g1", "viewport-0"))
		assert.Equal(t, 1, f.engine.ListenerCount("viewport-0"))
	})

	t.Run("double add is rejected", func(t *testing.T) {
		assert.ErrorIs(t, f.sync.AddViewport(ctx, "g1", "viewport-0"), ErrAlreadyMember)
	})

	t.Run("unknown viewport is rejected", func(t *testing.T) {
		assert.ErrorIs(t, f.sync.AddViewport(ctx, "g1", "viewport-9"), ErrUnknownViewport)
	})

	t.Run("unknown group is rejected", func(t *testing.T) {
		assert.ErrorIs(t, f.sync.AddViewport(ctx, "g9", "viewport-0"), ErrUnknownGroup)
	})
}

func TestEngine_Synchronize(t *testing.T) {
	ctx := context.Background()

	link := func(t *testing.T, f *fixture, groupID string, types []entity.SyncType, members ...entity.ViewportID) {
		t.Helper()
		_, err := f.sync.CreateSyncGroup(ctx, groupID, types)
		require.NoError(t, err)
		for _, m := range members {
			require.NoError(t, f.sync.AddViewport(ctx, groupID, m))
		}
	}

	t.Run("pan reaches every other member and not the source", func(t *testing.T) {
		f := newFixture(t, ctx, "viewport-0", "viewport-1", "viewport-2")
		link(t, f, "g1", []entity.SyncType{entity.SyncPan}, "viewport-0", "viewport-1", "viewport-2")

		src := entity.Camera{Position: entity.Vec3{10, 20, 0}, FocalPoint: entity.Vec3{10, 20, -1}, Zoom: 9}
		applied := f.sync.Synchronize(ctx, "viewport-0", entity.SyncPan, Payload{Camera: &src})

		assert.Equal(t, 2, applied)
		for _, id := range []entity.ViewportID{"viewport-1", "viewport-2"} {
			cam := f.camera(t, id)
			assert.Equal(t, src.Position, cam.Position, "position on %s", id)
			assert.Equal(t, src.FocalPoint, cam.FocalPoint, "focal point on %s", id)
			// Pan must not drag the zoom along.
			assert.NotEqual(t, src.Zoom, cam.Zoom, "zoom on %s", id)
		}
	})

	t.Run("window level patches the targets' VOI", func(t *testing.T) {
		f := newFixture(t, ctx, "viewport-0", "viewport-1")
		link(t, f, "g1", []entity.SyncType{entity.SyncWindowLevel}, "viewport-0", "viewport-1")

		voi := entity.VOIRange{Lower: -200, Upper: 800}
		applied := f.sync.Synchronize(ctx, "viewport-0", entity.SyncWindowLevel, Payload{VOI: &voi})

		require.Equal(t, 1, applied)
		h, _ := f.engine.Handle("viewport-1")
		props, err := f.engine.Properties(h)
		require.NoError(t, err)
		require.NotNil(t, props.VOI)
		assert.Equal(t, voi, *props.VOI)
	})

	t.Run("disabled group does not propagate", func(t *testing.T) {
		f := newFixture(t, ctx, "viewport-0", "viewport-1")
		link(t, f, "g1", []entity.SyncType{entity.SyncPan}, "viewport-0", "viewport-1")
		require.True(t, f.sync.DisableGroup("g1"))

		src := entity.Camera{Position: entity.Vec3{5, 0, 0}}
		assert.Equal(t, 0, f.sync.Synchronize(ctx, "viewport-0", entity.SyncPan, Payload{Camera: &src}))
	})

	t.Run("type not in the group does not propagate", func(t *testing.T) {
		f := newFixture(t, ctx, "viewport-0", "viewport-1")
		link(t, f, "g1", []entity.SyncType{entity.SyncPan}, "viewport-0", "viewport-1")

		rot := 90.0
		assert.Equal(t, 0, f.sync.Synchronize(ctx, "viewport-0", entity.SyncRotation, Payload{Rotation: &rot}))
	})

	t.Run("overlapping groups apply once per target", func(t *testing.T) {
		f := newFixture(t, ctx, "viewport-0", "viewport-1")
		link(t, f, "g1", []entity.SyncType{entity.SyncPan}, "viewport-0", "viewport-1")
		link(t, f, "g2", []entity.SyncType{entity.SyncPan}, "viewport-0", "viewport-1")

		src := entity.Camera{Position: entity.Vec3{7, 0, 0}}
		assert.Equal(t, 1, f.sync.Synchronize(ctx, "viewport-0", entity.SyncPan, Payload{Camera: &src}))
	})

	t.Run("stale member is skipped without error", func(t *testing.T) {
		f := newFixture(t, ctx, "viewport-0", "viewport-1", "viewport-2")
		link(t, f, "g1", []entity.SyncType{entity.SyncPan}, "viewport-0", "viewport-1", "viewport-2")
		removed, err := f.reg.Remove(ctx, "viewport-2")
		require.NoError(t, err)
		require.True(t, removed)

		src := entity.Camera{Position: entity.Vec3{3, 0, 0}}
		assert.Equal(t, 1, f.sync.Synchronize(ctx, "viewport-0", entity.SyncPan, Payload{Camera: &src}))
	})
}

func TestEngine_ReentrancyGuard(t *testing.T) {
	// A member's change notification fires synchronously while the
	// originating pass still holds the guard. The nested pass must be
	// dropped, so the follower's change never echoes back.
	ctx := context.Background()
	f := newFixture(t, ctx, "viewport-0", "viewport-1")

	_, err := f.sync.CreateSyncGroup(ctx, "g1", []entity.SyncType{entity.SyncCamera})
	require.NoError(t, err)
	require.NoError(t, f.sync.AddViewport(ctx, "g1", "viewport-0"))
	require.NoError(t, f.sync.AddViewport(ctx, "g1", "viewport-1"))

	h, _ := f.engine.Handle("viewport-0")
	want := entity.Camera{Position: entity.Vec3{1, 2, 3}, Zoom: 2}
	require.NoError(t, f.engine.SetCamera(h, want))

	// Both viewports converge on the same camera, exactly once.
	assert.True(t, f.camera(t, "viewport-0").ApproxEqual(want, 1e-9))
	assert.True(t, f.camera(t, "viewport-1").ApproxEqual(want, 1e-9))
	// One render for the follower, none extra from an echo pass.
	assert.Equal(t, 0, f.engine.RenderCount("viewport-0"))
	assert.Equal(t, 1, f.engine.RenderCount("viewport-1"))
}

func TestEngine_PruneOrphans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ctx, "viewport-0", "viewport-1")

	_, err := f.sync.CreateSyncGroup(ctx, "g1", []entity.SyncType{entity.SyncPan})
	require.NoError(t, err)
	require.NoError(t, f.sync.AddViewport(ctx, "g1", "viewport-0"))
	require.NoError(t, f.sync.AddViewport(ctx, "g1", "viewport-1"))

	// Remove directly from the registry, leaving the membership dangling.
	removed, err := f.reg.Remove(ctx, "viewport-1")
	require.NoError(t, err)
	require.True(t, removed)

	res := f.sync.PruneOrphans(ctx)

	assert.Equal(t, 1, res.MembersPruned)
	assert.Equal(t, 0, res.GroupsRemoved)
	g, ok := f.sync.Group("g1")
	require.True(t, ok)
	assert.Equal(t, []entity.ViewportID{"viewport-0"}, g.Members)

	// Pruning the last member removes the group too.
	removed, err = f.reg.Remove(ctx, "viewport-0")
	require.NoError(t, err)
	require.True(t, removed)
	res = f.sync.PruneOrphans(ctx)
	assert.Equal(t, 1, res.MembersPruned)
	assert.Equal(t, 1, res.GroupsRemoved)
	assert.Empty(t, f.sync.Groups())
}

func TestEngine_RemoveGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ctx, "viewport-0", "viewport-1")

	_, err := f.sync.CreateSyncGroup(ctx, "g1", []entity.SyncType{entity.SyncPan, entity.SyncWindowLevel})
	require.NoError(t, err)
	require.NoError(t, f.sync.AddViewport(ctx, "g1", "viewport-0"))
	require.NoError(t, f.sync.AddViewport(ctx, "g1", "viewport-1"))
	require.Positive(t, f.sync.SubscriptionCount())

	require.NoError(t, f.sync.RemoveGroup(ctx, "g1"))

	assert.Zero(t, f.sync.SubscriptionCount())
	assert.Equal(t, 0, f.engine.ListenerCount("viewport-0"))
	assert.Equal(t, 0, f.engine.ListenerCount("viewport-1"))
}

func TestEngine_MutateSyncTypes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ctx, "viewport-0", "viewport-1")

	_, err := f.sync.CreateSyncGroup(ctx, "g1", []entity.SyncType{entity.SyncPan})
	require.NoError(t, err)
	require.NoError(t, f.sync.AddViewport(ctx, "g1", "viewport-0"))
	require.NoError(t, f.sync.AddViewport(ctx, "g1", "viewport-1"))
	require.Equal(t, 1, f.engine.ListenerCount("viewport-0"))

	t.Run("adding window level reattaches members with a voi listener", func(t *testing.T) {
		require.NoError(t, f.sync.AddSyncTypes(ctx, "g1", []entity.SyncType{entity.SyncWindowLevel}))

		g, ok := f.sync.Group("g1")
		require.True(t, ok)
		assert.True(t, g.HasType(entity.SyncWindowLevel))
		assert.Equal(t, 2, f.engine.ListenerCount("viewport-0"))
		assert.Equal(t, 2, f.engine.ListenerCount("viewport-1"))
	})

	t.Run("removing the camera type drops the camera listener", func(t *testing.T) {
		require.NoError(t, f.sync.RemoveSyncTypes(ctx, "g1", []entity.SyncType{entity.SyncPan}))

		g, ok := f.sync.Group("g1")
		require.True(t, ok)
		assert.False(t, g.HasType(entity.SyncPan))
		assert.Equal(t, 1, f.engine.ListenerCount("viewport-0"))
	})

	t.Run("unknown type is ignored", func(t *testing.T) {
		require.NoError(t, f.sync.AddSyncTypes(ctx, "g1", []entity.SyncType{"teleport"}))

		g, ok := f.sync.Group("g1")
		require.True(t, ok)
		assert.False(t, g.HasType("teleport"))
	})

	t.Run("unknown group errors", func(t *testing.T) {
		err := f.sync.AddSyncTypes(ctx, "missing", []entity.SyncType{entity.SyncZoom})
		assert.ErrorIs(t, err, ErrUnknownGroup)
	})
}
