package store

import (
	"database/sql"

	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS dives (
	       id          TEXT PRIMARY KEY,
	       number      INTEGER NOT NULL,
	       name        TEXT NOT NULL,
	       location    TEXT NOT NULL,
	       site_id     TEXT NOT NULL,
	       site_name   TEXT NOT NULL,
	       start_time  INTEGER NOT NULL,
	       duration    REAL NOT NULL,
	       max_depth   REAL NOT NULL,
	       sample_count INTEGER NOT NULL CHECK (typeof(sample_count) = 'integer'),
	       saved_at    TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS cylinders (
	       dive_id        TEXT NOT NULL REFERENCES dives(id) ON DELETE CASCADE,
	       idx            INTEGER NOT NULL,
	       description    TEXT NOT NULL,
	       size           REAL NOT NULL,
	       work_pressure  REAL NOT NULL,
	       o2_percent     REAL NOT NULL,
	       he_percent     REAL NOT NULL,
	       start_pressure REAL NOT NULL,
	       end_pressure   REAL NOT NULL,
	       PRIMARY KEY (dive_id, idx)
	   );
	   CREATE TABLE IF NOT EXISTS gas_switches (
	       dive_id   TEXT NOT NULL REFERENCES dives(id) ON DELETE CASCADE,
	       seq       INTEGER NOT NULL,
	       timestamp REAL NOT NULL,
	       cylinder  INTEGER NOT NULL,
	       PRIMARY KEY (dive_id, seq)
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       dive_id     TEXT NOT NULL REFERENCES dives(id) ON DELETE CASCADE,
	       seq         INTEGER NOT NULL,
	       timestamp   REAL NOT NULL,
	       depth       REAL NOT NULL,
	       temperature REAL NOT NULL,
	       ndl         REAL NOT NULL,
	       ceiling     REAL NOT NULL,
	       tts         REAL NOT NULL,
	       o2_percent  REAL NOT NULL,
	       pressures   TEXT NOT NULL,
	       po2_sensors TEXT NOT NULL,
	       PRIMARY KEY (dive_id, seq)
	   );`

	insertDiveSQL = `
    INSERT INTO dives (
        id, number, name, location, site_id, site_name,
        start_time, duration, max_depth, sample_count, saved_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertCylinderSQL = `
    INSERT INTO cylinders (
        dive_id, idx, description, size, work_pressure,
        o2_percent, he_percent, start_pressure, end_pressure
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertGasSwitchSQL = `
    INSERT INTO gas_switches (dive_id, seq, timestamp, cylinder)
    VALUES (?, ?, ?, ?)`

	insertSampleSQL = `
    INSERT INTO samples (
        dive_id, seq, timestamp, depth, temperature, ndl,
        ceiling, tts, o2_percent, pressures, po2_sensors
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// tables in drop order.
var tables = []string{"samples", "gas_switches", "cylinders", "dives", "schema_versions"}

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating catalog database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				if !errors.Is(err, sql.ErrTxDone) {
					log.Debug().Err(err).Msg("Failed to rollback transaction")
				}
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Catalog schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for an empty database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
