package store

import (
	"os"
	"path/filepath"

	"codeberg.org/mutker/unabara/internal/errors"
)

const (
	defaultDirPerm = 0o755
	dbFileName     = "catalog.db"
)

type Config struct {
	// Path is the sqlite database file.
	Path string
	// BackupDir receives a copy of the database before an incompatible
	// schema is replaced. Empty means a "backups" directory next to Path.
	BackupDir string
}

// DefaultConfig places the catalog under $XDG_DATA_HOME/unabara.
func DefaultConfig() Config {
	return Config{Path: filepath.Join(DataDir(), dbFileName)}
}

// DataDir is the per-user data directory for unabara.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "unabara")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "unabara")
	}
	return filepath.Join(os.TempDir(), "unabara")
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New().New(ErrInvalidDBPath)
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.Path), "backups")
}
