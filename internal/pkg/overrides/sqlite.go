package overrides

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
)

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER PRIMARY KEY,
    applied_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS accessory_overrides (
    canonical_id  TEXT PRIMARY KEY,
    force_off     INTEGER NOT NULL DEFAULT 0,
    occupied      INTEGER,
    privacy_mode  INTEGER,
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);
`

var _ blink.OverrideStore = (*SQLite)(nil)

// SQLite keeps accessory overrides in a local database so that they
// survive restarts
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the database at path and brings the schema up to
// date
func Open(ctx context.Context, path string) (*SQLite, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "expanding %s", path)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, errors.Wrap(err, "creating database directory")
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening override database %s", path)
	}

	// one connection keeps :memory: databases alive and writes serialised
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "connecting to override database %s", path)
	}

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Logger(ctx).Debugf("override database %s ready", path)

	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) version(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&count)
	if err != nil || count == 0 {
		return 0, err
	}

	var version int
	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	return version, err
}

func (s *SQLite) migrate(ctx context.Context) error {
	version, err := s.version(ctx)
	if err != nil {
		return errors.Wrap(err, "reading schema version")
	}
	if version >= schemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting schema transaction")
	}

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "applying schema v1")
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (1)`); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "recording schema version")
	}

	return errors.Wrap(tx.Commit(), "committing schema")
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func boolPtr(nb sql.NullBool) *bool {
	if !nb.Valid {
		return nil
	}
	b := nb.Bool
	return &b
}

func (s *SQLite) Load(ctx context.Context, canonicalID string) (blink.Overrides, error) {
	var (
		o        blink.Overrides
		occupied sql.NullBool
		privacy  sql.NullBool
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT force_off, occupied, privacy_mode
		FROM accessory_overrides WHERE canonical_id = ?
	`, canonicalID).Scan(&o.ForceOff, &occupied, &privacy)
	if err == sql.ErrNoRows {
		return blink.Overrides{}, nil
	}
	if err != nil {
		return blink.Overrides{}, errors.Wrapf(err, "loading overrides for %s", canonicalID)
	}

	o.Occupied = boolPtr(occupied)
	o.PrivacyMode = boolPtr(privacy)
	return o, nil
}

func (s *SQLite) Save(ctx context.Context, canonicalID string, o blink.Overrides) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accessory_overrides (canonical_id, force_off, occupied, privacy_mode, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(canonical_id) DO UPDATE SET
			force_off = excluded.force_off,
			occupied = excluded.occupied,
			privacy_mode = excluded.privacy_mode,
			updated_at = excluded.updated_at
	`, canonicalID, o.ForceOff, nullBool(o.Occupied), nullBool(o.PrivacyMode))

	return errors.Wrapf(err, "saving overrides for %s", canonicalID)
}

// All returns every stored override keyed by canonical ID
func (s *SQLite) All(ctx context.Context) (map[string]blink.Overrides, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT canonical_id, force_off, occupied, privacy_mode FROM accessory_overrides`)
	if err != nil {
		return nil, errors.Wrap(err, "listing overrides")
	}
	defer rows.Close()

	all := make(map[string]blink.Overrides)
	for rows.Next() {
		var (
			id       string
			o        blink.Overrides
			occupied sql.NullBool
			privacy  sql.NullBool
		)
		if err := rows.Scan(&id, &o.ForceOff, &occupied, &privacy); err != nil {
			return nil, errors.Wrap(err, "reading overrides")
		}
		o.Occupied = boolPtr(occupied)
		o.PrivacyMode = boolPtr(privacy)
		all[id] = o
	}

	return all, errors.Wrap(rows.Err(), "listing overrides")
}
