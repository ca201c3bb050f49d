package config

// DefaultConfig returns a Config populated with all default values. The
// reference deployment runs at UTC+9, so that is the default day offset.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       "~/.config/nagi",
			SQLiteFile: "nagi.db",
		},
		Daemon: DaemonConfig{
			Host:    "127.0.0.1",
			Port:    7741,
			BaseURL: "http://127.0.0.1:7741",
		},
		Time: TimeConfig{
			UTCOffsetMinutes: 540,
		},
		Display: DisplayConfig{
			DotUnits: []int{60, 30, 10, 1},
		},
		Auth: AuthConfig{
			LoginTokenTTLMinutes: 10,
			SessionTTLDays:       30,
		},
	}
}
