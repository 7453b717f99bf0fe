package config

// Config represents the complete configuration for vistagrid.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database" toml:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging" toml:"logging"`
	Display  DisplayConfig  `mapstructure:"display" json:"display" toml:"display"`
	Restore  RestoreConfig  `mapstructure:"restore" json:"restore" toml:"restore"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup" json:"cleanup" toml:"cleanup"`
	Session  SessionConfig  `mapstructure:"session" json:"session" toml:"session"`
	// DefaultLayout names the layout applied at startup when no
	// persisted session exists.
	DefaultLayout string `mapstructure:"default_layout" json:"default_layout" toml:"default_layout"`
}

// DatabaseConfig locates the workstation state database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path" toml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level" toml:"level"`
	Format string `mapstructure:"format" json:"format" toml:"format"`
}

// DisplayConfig sets the logical canvas the layout grid divides.
type DisplayConfig struct {
	CanvasWidth  float64 `mapstructure:"canvas_width" json:"canvas_width" toml:"canvas_width"`
	CanvasHeight float64 `mapstructure:"canvas_height" json:"canvas_height" toml:"canvas_height"`
}

// RestoreConfig tunes the deferred state/annotation restoration that
// runs after a layout transition while the renderer binds out-of-band.
type RestoreConfig struct {
	DelayMs           int `mapstructure:"delay_ms" json:"delay_ms" toml:"delay_ms"`
	PollIntervalMs    int `mapstructure:"poll_interval_ms" json:"poll_interval_ms" toml:"poll_interval_ms"`
	MaxAttempts       int `mapstructure:"max_attempts" json:"max_attempts" toml:"max_attempts"`
	AnnotationGraceMs int `mapstructure:"annotation_grace_ms" json:"annotation_grace_ms" toml:"annotation_grace_ms"`
}

// CleanupConfig tunes the recurring orphan sweep.
type CleanupConfig struct {
	OrphanSweepIntervalMs int `mapstructure:"orphan_sweep_interval_ms" json:"orphan_sweep_interval_ms" toml:"orphan_sweep_interval_ms"`
}

// SessionConfig controls layout/sync-settings persistence.
type SessionConfig struct {
	Enabled        bool `mapstructure:"enabled" json:"enabled" toml:"enabled"`
	SaveDebounceMs int  `mapstructure:"save_debounce_ms" json:"save_debounce_ms" toml:"save_debounce_ms"`
}
