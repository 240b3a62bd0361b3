package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/unabara/internal/dive"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/logger"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
}

func NewRepository(cfg Config, log logger.Logger) (Catalog, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Path,
			Error: err.Error(),
		})
	}

	dsn := cfg.Path + "?_journal=WAL&_auto_vacuum=2&_foreign_keys=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Debug().
		Str("path", cfg.Path).
		Int("schema_version", SchemaVersion).
		Msg("Catalog opened")

	return &repository{db: db, logger: log, cfg: cfg}, nil
}

// Save stores series under a new ID.
func (r *repository) Save(ctx context.Context, series *dive.Series) (string, error) {
	errFactory := errors.New()
	if series == nil {
		return "", errFactory.WithMessage(ErrInvalidDive, "nil dive")
	}

	id := uuid.NewString()
	samples := series.Samples()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				r.logger.Debug().Err(err).Msg("Failed to rollback save")
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, insertDiveSQL,
		id,
		series.Number(),
		series.Name(),
		series.Location(),
		series.SiteID(),
		series.SiteName(),
		unixTime(series.StartTime()),
		series.Duration(),
		series.MaxDepth(),
		len(samples),
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return "", saveError("insert_dive", err)
	}

	for _, c := range series.Cylinders() {
		if _, err := tx.ExecContext(ctx, insertCylinderSQL,
			id, c.Index, c.Description, c.Size, c.WorkPressure,
			c.O2Percent, c.HePercent, c.StartPressure, c.EndPressure,
		); err != nil {
			return "", saveError("insert_cylinder", err)
		}
	}

	for i, sw := range series.GasSwitches() {
		if _, err := tx.ExecContext(ctx, insertGasSwitchSQL, id, i, sw.Timestamp, sw.CylinderIndex); err != nil {
			return "", saveError("insert_gas_switch", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		return "", saveError("prepare_samples", err)
	}
	defer stmt.Close()

	for i, s := range samples {
		pressures, err := json.Marshal(s.Pressures)
		if err != nil {
			return "", saveError("encode_pressures", err)
		}
		sensors, err := json.Marshal(s.PO2Sensors)
		if err != nil {
			return "", saveError("encode_po2", err)
		}
		if _, err := stmt.ExecContext(ctx,
			id, i, s.Timestamp, s.Depth, s.Temperature, s.NDL,
			s.Ceiling, s.TTS, s.O2Percent, string(pressures), string(sensors),
		); err != nil {
			return "", saveError("insert_sample", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	r.logger.Info().
		Str("id", id).
		Str("dive", series.Name()).
		Int("samples", len(samples)).
		Msg("Dive saved to catalog")

	return id, nil
}

func saveError(phase string, err error) error {
	return errors.New().WithData(ErrTransactionFailed, struct {
		Phase string
		Error string
	}{
		Phase: phase,
		Error: err.Error(),
	})
}

// List returns every stored dive, oldest first.
func (r *repository) List(ctx context.Context) ([]Entry, error) {
	errFactory := errors.New()

	rows, err := r.db.QueryContext(ctx, `
        SELECT id, number, name, location, start_time, duration,
               max_depth, sample_count, saved_at
        FROM dives
        ORDER BY start_time, number, saved_at
    `)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			start   int64
			savedAt string
		)
		if err := rows.Scan(&e.ID, &e.Number, &e.Name, &e.Location, &start,
			&e.Duration, &e.MaxDepth, &e.Samples, &savedAt); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		e.StartTime = fromUnix(start)
		e.SavedAt, _ = time.Parse(time.RFC3339, savedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	return entries, nil
}

// Load rebuilds the series stored under id.
func (r *repository) Load(ctx context.Context, id string) (*dive.Series, error) {
	errFactory := errors.New()

	var (
		number                           int
		name, location, siteID, siteName string
		start                            int64
	)
	err := r.db.QueryRowContext(ctx, `
        SELECT number, name, location, site_id, site_name, start_time
        FROM dives WHERE id = ?
    `, id).Scan(&number, &name, &location, &siteID, &siteName, &start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errFactory.WithData(ErrNotFound, struct{ ID string }{id})
	}
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	series := dive.NewSeries()
	series.SetNumber(number)
	series.SetName(name)
	series.SetLocation(location)
	series.SetSiteID(siteID)
	series.SetSiteName(siteName)
	series.SetStartTime(fromUnix(start))

	if err := r.loadCylinders(ctx, id, series); err != nil {
		return nil, err
	}
	if err := r.loadGasSwitches(ctx, id, series); err != nil {
		return nil, err
	}
	if err := r.loadSamples(ctx, id, series); err != nil {
		return nil, err
	}

	r.logger.Debug().Str("id", id).Int("samples", series.Len()).Msg("Dive loaded from catalog")
	return series, nil
}

func (r *repository) loadCylinders(ctx context.Context, id string, series *dive.Series) error {
	rows, err := r.db.QueryContext(ctx, `
        SELECT description, size, work_pressure, o2_percent, he_percent,
               start_pressure, end_pressure
        FROM cylinders WHERE dive_id = ? ORDER BY idx
    `, id)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c dive.Cylinder
		if err := rows.Scan(&c.Description, &c.Size, &c.WorkPressure, &c.O2Percent,
			&c.HePercent, &c.StartPressure, &c.EndPressure); err != nil {
			return errors.New().Wrap(ErrStorageAccess, err)
		}
		series.AddCylinder(c)
	}
	return rows.Err()
}

func (r *repository) loadGasSwitches(ctx context.Context, id string, series *dive.Series) error {
	rows, err := r.db.QueryContext(ctx, `
        SELECT timestamp, cylinder
        FROM gas_switches WHERE dive_id = ? ORDER BY seq
    `, id)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	for rows.Next() {
		var sw dive.GasSwitch
		if err := rows.Scan(&sw.Timestamp, &sw.CylinderIndex); err != nil {
			return errors.New().Wrap(ErrStorageAccess, err)
		}
		series.AddGasSwitch(sw.Timestamp, sw.CylinderIndex)
	}
	return rows.Err()
}

func (r *repository) loadSamples(ctx context.Context, id string, series *dive.Series) error {
	errFactory := errors.New()

	rows, err := r.db.QueryContext(ctx, `
        SELECT timestamp, depth, temperature, ndl, ceiling, tts,
               o2_percent, pressures, po2_sensors
        FROM samples WHERE dive_id = ? ORDER BY seq
    `, id)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s                  dive.Sample
			pressures, sensors string
		)
		if err := rows.Scan(&s.Timestamp, &s.Depth, &s.Temperature, &s.NDL, &s.Ceiling,
			&s.TTS, &s.O2Percent, &pressures, &sensors); err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
		if err := json.Unmarshal([]byte(pressures), &s.Pressures); err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
		if err := json.Unmarshal([]byte(sensors), &s.PO2Sensors); err != nil {
			return errFactory.Wrap(ErrStorageAccess, err)
		}
		series.AddSample(s)
	}
	return rows.Err()
}

// Delete removes the dive stored under id.
func (r *repository) Delete(ctx context.Context, id string) error {
	errFactory := errors.New()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				r.logger.Debug().Err(err).Msg("Failed to rollback delete")
			}
		}
	}()

	for _, table := range []string{"samples", "gas_switches", "cylinders"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE dive_id = ?", id); err != nil {
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM dives WHERE id = ?", id)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errFactory.WithData(ErrNotFound, struct{ ID string }{id})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	r.logger.Info().Str("id", id).Msg("Dive deleted from catalog")
	return nil
}

func (r *repository) Close() error {
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Debug().Msg("Catalog closed")
	return nil
}

func unixTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
