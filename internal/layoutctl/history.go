package layoutctl

import (
	"context"

	"github.com/vistagrid/vistagrid/internal/logging"
)

// historyCap bounds the transition history for undo/redo.
const historyCap = 10

// recordHistoryLocked pushes a layout onto the history, truncating any
// redo tail. Caller holds c.mu.
func (c *Controller) recordHistoryLocked(name string) {
	if c.histPos >= 0 && c.histPos < len(c.histEntries) && c.histEntries[c.histPos] == name {
		return
	}
	c.histEntries = append(c.histEntries[:c.histPos+1], name)
	if len(c.histEntries) > historyCap {
		c.histEntries = c.histEntries[len(c.histEntries)-historyCap:]
	}
	c.histPos = len(c.histEntries) - 1
}

// Undo transitions back to the previous layout in the history,
// preserving state. Returns false when there is nothing to undo.
func (c *Controller) Undo(ctx context.Context) bool {
	c.mu.Lock()
	if c.histPos <= 0 {
		c.mu.Unlock()
		return false
	}
	c.histPos--
	target := c.histEntries[c.histPos]
	c.mu.Unlock()

	logging.FromContext(ctx).Debug().Str("layout", target).Msg("undoing layout transition")
	c.applyLayout(ctx, target, true, false)
	return true
}

// Redo re-applies a transition undone by Undo.
func (c *Controller) Redo(ctx context.Context) bool {
	c.mu.Lock()
	if c.histPos < 0 || c.histPos+1 >= len(c.histEntries) {
		c.mu.Unlock()
		return false
	}
	c.histPos++
	target := c.histEntries[c.histPos]
	c.mu.Unlock()

	logging.FromContext(ctx).Debug().Str("layout", target).Msg("redoing layout transition")
	c.applyLayout(ctx, target, true, false)
	return true
}

// HistoryDepth returns the number of recorded transitions.
func (c *Controller) HistoryDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.histEntries)
}
