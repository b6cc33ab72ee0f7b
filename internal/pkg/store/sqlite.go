package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

const (
	busyTimeoutMs     = 5000
	connectionTimeout = 5 * time.Second
)

// Schema versions, applied in order.  Never edit an applied entry, append a
// new one.
var migrations = []string{
	`CREATE TABLE users (
		id          TEXT PRIMARY KEY,
		nickname    TEXT NOT NULL DEFAULT '',
		unlinked_at TIMESTAMP
	)`,
	`CREATE TABLE tokens (
		token   TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE devices (
		user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		device_id    TEXT NOT NULL,
		position     INTEGER NOT NULL,
		name         TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		room         TEXT NOT NULL DEFAULT '',
		device_type  TEXT NOT NULL,
		driver       TEXT NOT NULL,
		params       TEXT NOT NULL DEFAULT '{}',
		actions      TEXT NOT NULL DEFAULT '{}',
		capabilities TEXT NOT NULL DEFAULT '{}',
		properties   TEXT NOT NULL DEFAULT '{}',
		device_info  TEXT,
		PRIMARY KEY (user_id, device_id)
	)`,
	`CREATE TABLE device_states (
		device_id  TEXT NOT NULL,
		instance   TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (device_id, instance)
	)`,
	// States are owned by the user of the device.  Rows from version 4 carry
	// no owner and are dropped.
	`DROP TABLE device_states;
	CREATE TABLE device_states (
		user_id    TEXT NOT NULL,
		device_id  TEXT NOT NULL,
		instance   TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, device_id, instance)
	)`,
}

// SQLiteBackend keeps users, tokens, devices and the last known device
// states in a SQLite database
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and brings its schema up
// to date
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	if path == "" {
		return nil, errors.New("sqlite store needs a path")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, errors.Wrap(err, "creating database directory")
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	// One writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "verifying database connection")
	}

	s := &SQLiteBackend{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteBackend) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, applied_at TIMESTAMP NOT NULL)`,
	); err != nil {
		return errors.Wrap(err, "creating schema_migrations")
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return errors.Wrap(err, "reading schema version")
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "starting migration")
		}

		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "applying migration %d", version)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, version, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "recording migration %d", version)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "committing migration %d", version)
		}

		logging.Logger(ctx).Infof("[STORE] %s: applied schema version %d", s.path, version)
	}

	return nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) UserByToken(ctx context.Context, token string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.nickname
		FROM tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token = ? AND u.unlinked_at IS NULL`, token,
	).Scan(&u.ID, &u.Nickname)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownToken
	}
	if err != nil {
		return nil, errors.Wrap(err, "looking up token")
	}

	return &u, nil
}

func (s *SQLiteBackend) LoadDevices(ctx context.Context, userID string) ([]DeviceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, name, description, room, device_type, driver,
		       params, actions, capabilities, properties, device_info
		FROM devices
		WHERE user_id = ?
		ORDER BY position, device_id`, userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying devices")
	}
	defer rows.Close()

	var out []DeviceRecord
	for rows.Next() {
		var r DeviceRecord
		var params, actions, caps, props string
		var info sql.NullString

		if err := rows.Scan(&r.DeviceID, &r.Name, &r.Description, &r.Room, &r.DeviceType, &r.Driver,
			&params, &actions, &caps, &props, &info); err != nil {
			return nil, errors.Wrap(err, "scanning device")
		}

		cols := []struct {
			name string
			raw  string
			dst  interface{}
		}{
			{"params", params, &r.Params},
			{"actions", actions, &r.Actions},
			{"capabilities", caps, &r.Capabilities},
			{"properties", props, &r.Properties},
		}
		for _, c := range cols {
			if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
				return nil, errors.Wrapf(err, "device %s: decoding %s", r.DeviceID, c.name)
			}
		}
		if info.Valid && info.String != "" {
			if err := json.Unmarshal([]byte(info.String), &r.DeviceInfo); err != nil {
				return nil, errors.Wrapf(err, "device %s: decoding device_info", r.DeviceID)
			}
		}

		out = append(out, r)
	}

	return out, errors.Wrap(rows.Err(), "reading devices")
}

// UnlinkUser revokes the user's tokens and marks the account unlinked.  The
// device records stay for a later relink.
func (s *SQLiteBackend) UnlinkUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting unlink")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE users SET unlinked_at = ? WHERE id = ?`, time.Now().UTC(), userID)
	if err != nil {
		return errors.Wrap(err, "unlinking user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrUnknownUser, "unlinking %s", userID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?`, userID); err != nil {
		return errors.Wrap(err, "revoking tokens")
	}

	return errors.Wrap(tx.Commit(), "committing unlink")
}

// Import upserts the users, tokens and devices of a seed.  A user's devices
// are replaced by the seed's list.
func (s *SQLiteBackend) Import(ctx context.Context, seed Seed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting import")
	}
	defer tx.Rollback()

	for _, u := range seed.Users {
		if u.ID == "" {
			return errors.New("seed user without id")
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, nickname) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET nickname = excluded.nickname, unlinked_at = NULL`,
			u.ID, u.Nickname,
		); err != nil {
			return errors.Wrapf(err, "importing user %s", u.ID)
		}

		for _, t := range u.Tokens {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tokens (token, user_id) VALUES (?, ?)
				ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id`,
				t, u.ID,
			); err != nil {
				return errors.Wrapf(err, "importing token for user %s", u.ID)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE user_id = ?`, u.ID); err != nil {
			return errors.Wrapf(err, "clearing devices of user %s", u.ID)
		}

		for i, d := range u.Devices {
			if err := insertDevice(ctx, tx, u.ID, i, d); err != nil {
				return err
			}
		}
	}

	return errors.Wrap(tx.Commit(), "committing import")
}

func insertDevice(ctx context.Context, tx *sql.Tx, userID string, position int, d DeviceRecord) error {
	enc := func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	}

	params, err := enc(nonNilParams(d))
	if err != nil {
		return errors.Wrapf(err, "device %s: encoding params", d.DeviceID)
	}
	actions, err := enc(d.Actions)
	if err != nil {
		return errors.Wrapf(err, "device %s: encoding actions", d.DeviceID)
	}
	caps, err := enc(d.Capabilities)
	if err != nil {
		return errors.Wrapf(err, "device %s: encoding capabilities", d.DeviceID)
	}
	props, err := enc(d.Properties)
	if err != nil {
		return errors.Wrapf(err, "device %s: encoding properties", d.DeviceID)
	}

	var info sql.NullString
	if d.DeviceInfo != nil {
		s, err := enc(d.DeviceInfo)
		if err != nil {
			return errors.Wrapf(err, "device %s: encoding device_info", d.DeviceID)
		}
		info = sql.NullString{String: s, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (user_id, device_id, position, name, description, room, device_type, driver,
		                     params, actions, capabilities, properties, device_info)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, d.DeviceID, position, d.Name, d.Description, d.Room, d.DeviceType, d.Driver,
		params, actions, caps, props, info,
	)

	return errors.Wrapf(err, "importing device %s", d.DeviceID)
}

func nonNilParams(d DeviceRecord) interface{} {
	if d.Params == nil {
		return map[string]interface{}{}
	}
	return d.Params
}

// SaveState records the last requested value of a device instance
func (s *SQLiteBackend) SaveState(ctx context.Context, key drivers.StateKey, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding state of %s", stateName(key))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO device_states (user_id, device_id, instance, value, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, device_id, instance) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key.UserID, key.DeviceID, key.Instance, string(b), time.Now().UTC(),
	)

	return errors.Wrapf(err, "saving state of %s", stateName(key))
}

func (s *SQLiteBackend) LoadState(ctx context.Context, key drivers.StateKey) (interface{}, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM device_states WHERE user_id = ? AND device_id = ? AND instance = ?`,
		key.UserID, key.DeviceID, key.Instance,
	).Scan(&raw)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "loading state of %s", stateName(key))
	}

	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, errors.Wrapf(err, "decoding state of %s", stateName(key))
	}

	return v, true, nil
}

func stateName(key drivers.StateKey) string {
	return fmt.Sprintf("%s/%s/%s", key.UserID, key.DeviceID, key.Instance)
}
