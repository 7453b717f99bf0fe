package workstation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vistagrid/vistagrid/internal/domain/entity"
	"github.com/vistagrid/vistagrid/internal/domain/repository"
	"github.com/vistagrid/vistagrid/internal/logging"
)

const (
	keyCurrentLayout = "layout.current"
	keySyncGroups    = "sync.groups"
)

type persistedGroup struct {
	ID      string              `json:"id"`
	Types   []entity.SyncType   `json:"types"`
	Members []entity.ViewportID `json:"members"`
	Active  bool                `json:"active"`
}

// markDirty arms the debounced session save. Called from component
// callbacks, so it must not call back into the components itself.
func (w *Workstation) markDirty() {
	if !w.sessionEnabled {
		return
	}
	w.saveMu.Lock()
	defer w.saveMu.Unlock()
	if w.saveTimer != nil {
		w.saveTimer.Stop()
	}
	w.saveTimer = time.AfterFunc(w.saveDebounce, func() {
		if err := w.SaveSession(w.baseCtx); err != nil {
			w.logger.Warn().Err(err).Msg("debounced session save failed")
		}
	})
}

// SaveSession writes the current layout name and sync-group settings
// to the state repository.
func (w *Workstation) SaveSession(ctx context.Context) error {
	if !w.sessionEnabled {
		return nil
	}

	name := w.Layout.CurrentLayout()
	if err := w.states.Store(ctx, keyCurrentLayout, []byte(name), repository.PurposeLayoutState); err != nil {
		return err
	}

	groups := w.Sync.Groups()
	persisted := make([]persistedGroup, 0, len(groups))
	for _, g := range groups {
		persisted = append(persisted, persistedGroup{
			ID:      g.ID,
			Types:   g.TypeList(),
			Members: append([]entity.ViewportID(nil), g.Members...),
			Active:  g.Active,
		})
	}
	raw, err := json.Marshal(persisted)
	if err != nil {
		return err
	}
	if err := w.states.Store(ctx, keySyncGroups, raw, repository.PurposeSyncSettings); err != nil {
		return err
	}

	w.logger.Debug().Str("layout", name).Int("sync_groups", len(persisted)).Msg("session saved")
	return nil
}

// RestoreSession replays persisted layout and sync-group settings.
// Missing state is not an error; a fresh workstation simply starts on
// the default layout.
func (w *Workstation) RestoreSession(ctx context.Context) error {
	if !w.sessionEnabled {
		return nil
	}

	raw, err := w.states.Retrieve(ctx, keyCurrentLayout)
	switch err {
	case nil:
		w.Layout.SetLayout(ctx, string(raw), false)
	case repository.ErrNotFound:
		if w.defaultLayout != "" {
			w.Layout.SetLayout(ctx, w.defaultLayout, false)
		}
	default:
		return err
	}

	raw, err = w.states.Retrieve(ctx, keySyncGroups)
	switch err {
	case nil:
	case repository.ErrNotFound:
		return nil
	default:
		return err
	}

	var persisted []persistedGroup
	if err := json.Unmarshal(raw, &persisted); err != nil {
		w.logger.Warn().Err(err).Msg("discarding unreadable sync settings")
		return nil
	}
	for _, pg := range persisted {
		gctx := logging.WithSyncGroup(ctx, pg.ID)
		g, err := w.Sync.CreateSyncGroup(gctx, pg.ID, pg.Types)
		if err != nil {
			w.logger.Warn().Err(err).Str("group_id", pg.ID).Msg("skipping persisted sync group")
			continue
		}
		for _, member := range pg.Members {
			// Members referencing viewports of a different layout are
			// dropped rather than failing the whole restore.
			if err := w.Sync.AddViewport(gctx, pg.ID, member); err != nil {
				w.logger.Debug().Err(err).Str("group_id", pg.ID).Str("viewport_id", string(member)).Msg("persisted member no longer resolvable")
			}
		}
		if !pg.Active {
			w.Sync.DisableGroup(g.ID)
		}
	}

	w.logger.Info().Str("layout", w.Layout.CurrentLayout()).Int("sync_groups", len(persisted)).Msg("session restored")
	return nil
}
