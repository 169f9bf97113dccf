package registry

// Config holds configuration for the Registry client.
type Config struct {
	// Table is the name of the entries table holding the registry singleton,
	// domain entries, and record entries.
	// Default: "nsmirror_entries"
	Table string
}

// DefaultConfig returns defaults suitable for a single-table deployment.
func DefaultConfig() Config {
	return Config{
		Table: "nsmirror_entries",
	}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "nsmirror_entries"
	}
}
