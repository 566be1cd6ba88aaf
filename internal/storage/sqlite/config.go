package sqlite

import (
	"fmt"
)

type Config struct {
	DatabasePath string
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// GetConnectionString enables foreign keys and a busy timeout so concurrent
// token writers wait instead of failing with SQLITE_BUSY.
func (c *Config) GetConnectionString() string {
	if c.DatabasePath == ":memory:" {
		return "file::memory:?cache=shared&_busy_timeout=5000"
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", c.DatabasePath)
}

func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "./gmb_connector.db",
	}
}
