package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/infrastructure/config"
	"github.com/vistagrid/vistagrid/internal/infrastructure/persistence/sqlite"
	"github.com/vistagrid/vistagrid/internal/logging"
	"github.com/vistagrid/vistagrid/internal/syncengine"
	"github.com/vistagrid/vistagrid/internal/workstation"
	"github.com/vistagrid/vistagrid/pkg/render"
)

// NewDemoCmd creates the demo command. It drives a full workstation
// against the in-memory renderer and prints what happens at each
// step, which doubles as a smoke test of the whole wiring.
func NewDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted viewport coordination walkthrough",
		RunE:  runDemo,
	}

	cmd.Flags().Duration("settle", 500*time.Millisecond, "How long to wait for deferred state restoration")
	cmd.Flags().String("log-dir", "", "Write rotated JSON logs to this directory")
	cmd.Flags().String("db", "", "Session database file (defaults to the configured path)")

	return cmd
}

func runDemo(cmd *cobra.Command, _ []string) error {
	settle, _ := cmd.Flags().GetDuration("settle")
	out := cmd.OutOrStdout()
	theme := DefaultTheme()

	mgr, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("set up configuration: %w", err)
	}
	if err := mgr.Load(); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := mgr.Get()

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.Logging.Level)
	logCfg.Format = cfg.Logging.Format
	logger := logging.New(logCfg)
	if dir, _ := cmd.Flags().GetString("log-dir"); dir != "" {
		fileLogger, closer, err := logging.NewWithRotation(logCfg, dir)
		if err != nil {
			return fmt.Errorf("set up file logging: %w", err)
		}
		defer closer.Close() //nolint:errcheck
		logger = fileLogger
	}
	ctx := logging.WithContext(cmd.Context(), logger)

	mgr.OnChange(func(next *config.Config) {
		logger.Info().Str("default_layout", next.DefaultLayout).Msg("configuration reloaded")
	})
	mgr.Watch(ctx)

	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	db, err := sqlite.NewConnection(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	defer sqlite.Close(db) //nolint:errcheck

	engine := render.NewOffscreen()
	ws := workstation.New(ctx, workstation.Options{
		Renderer: engine,
		States:   sqlite.NewStateRepository(db),
		Config:   cfg,
	})
	defer ws.Close(ctx) //nolint:errcheck

	if err := ws.RestoreSession(ctx); err != nil {
		logger.Warn().Err(err).Msg("starting without the previous session")
	}
	ws.StartMaintenance(ctx)

	fmt.Fprintln(out, theme.Title.Render("vistagrid demo"))
	fmt.Fprintln(out)

	step := func(n int, what string) {
		fmt.Fprintf(out, "%s %s\n", theme.Highlight.Render(fmt.Sprintf("[%d]", n)), what)
	}

	step(1, "transition to a 2x2 grid")
	viewports := ws.SetLayout(ctx, "2x2", false)
	fmt.Fprintf(out, "    %s\n", theme.Subtle.Render(describeViewports(viewports)))

	step(2, "adjust the first viewport's camera")
	first := viewports[0].ID
	if err := engine.SetCamera(viewports[0].Binding, entity.Camera{
		Position:      entity.Vec3{0, 0, 300},
		ViewUp:        entity.Vec3{0, 1, 0},
		Zoom:          2.5,
		ParallelScale: 120,
	}); err != nil {
		return err
	}

	step(3, "link all viewports for pan and zoom")
	group, err := ws.CreateSyncGroup(ctx, "demo-group", []entity.SyncType{entity.SyncPan, entity.SyncZoom})
	if err != nil {
		return err
	}
	for _, vp := range viewports {
		if err := ws.AddViewportToSyncGroup(ctx, group.ID, vp.ID); err != nil {
			return err
		}
	}

	step(4, "propagate a zoom from the first viewport")
	zoomed, err := engine.Camera(viewports[0].Binding)
	if err != nil {
		return err
	}
	zoomed.Zoom = 3.0
	applied := ws.SynchronizeViewports(ctx, first, entity.SyncZoom, syncengine.Payload{Camera: &zoomed})
	fmt.Fprintf(out, "    %s\n", theme.Subtle.Render(fmt.Sprintf("zoom applied to %d follower(s)", applied)))

	step(5, "transition to 1x3 with state preservation, then back")
	ws.SetLayout(ctx, "1x3", true)
	time.Sleep(settle)
	ws.SetLayout(ctx, "2x2", true)
	time.Sleep(settle)
	cam, err := engine.Camera(mustHandle(engine, first))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "    %s\n", theme.Subtle.Render(fmt.Sprintf("camera survived the round trip (zoom=%.1f)", cam.Zoom)))

	step(6, "remove two viewports everywhere")
	stats := ws.CleanupSpecificViewports(ctx, ws.Layout.ViewportIDs()[:2])
	fmt.Fprintf(out, "    %s\n", theme.Subtle.Render(describeStats(stats)))

	step(7, "full teardown")
	stats = ws.PerformFullCleanup(ctx)
	fmt.Fprintf(out, "    %s\n", theme.Subtle.Render(describeStats(stats)))

	summary := fmt.Sprintf("final layout %s with %d viewport(s), ~%d bytes coordination state",
		ws.GetCurrentLayout(), ws.GetViewportCount(), ws.GetMemoryUsageEstimate(ctx))
	fmt.Fprintln(out)
	fmt.Fprintln(out, theme.Box.Render(theme.Success.Render(summary)))
	return nil
}

func describeViewports(viewports []entity.Viewport) string {
	ids := make([]string, 0, len(viewports))
	for _, vp := range viewports {
		ids = append(ids, string(vp.ID))
	}
	return fmt.Sprintf("created %d viewport(s): %s", len(viewports), strings.Join(ids, ", "))
}

func describeStats(stats entity.CleanupStats) string {
	s := fmt.Sprintf("removed %d viewport(s), %d listener(s), %d sync group(s)",
		stats.ViewportsRemoved, stats.ListenersRemoved, stats.SyncGroupsRemoved)
	if len(stats.Errors) > 0 {
		s += fmt.Sprintf(", %d error(s)", len(stats.Errors))
	}
	return s
}

func mustHandle(engine render.Engine, id entity.ViewportID) entity.RendererHandle {
	h, _ := engine.Handle(id)
	return h
}
