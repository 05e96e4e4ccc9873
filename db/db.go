// Package db provides database connection helpers, schema migration, and the small stores
// behind the channel log, last-seen and trigger plugins.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'

	"github.com/onnwee/cappuccino/chanlog"
)

// Connect opens a Postgres connection pool for dsn and verifies it answers.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DB_DSN")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	database.SetMaxOpenConns(8)
	database.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return database, nil
}

// ChanlogStore persists channel log entries.
type ChanlogStore struct {
	DB *sql.DB
}

// InsertChanlog implements chanlog.Store. Empty optional fields are stored as NULL.
func (s *ChanlogStore) InsertChanlog(ctx context.Context, e chanlog.Entry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chanlog (nick, channel, event, target, data, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Nick, nullString(e.Channel), e.Event, nullString(e.Target), nullString(e.Data), at.UTC())
	if err != nil {
		return fmt.Errorf("insert chanlog: %w", err)
	}
	return nil
}

// SeenStore keeps the last time each nick spoke. Nicks are compared case-insensitively.
type SeenStore struct {
	DB *sql.DB
}

// SetLastSeen records t as the last activity of nick.
func (s *SeenStore) SetLastSeen(ctx context.Context, nick string, t time.Time) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (nick, last_seen) VALUES ($1, $2)
		ON CONFLICT (nick) DO UPDATE SET last_seen = EXCLUDED.last_seen`,
		strings.ToLower(nick), t.UTC())
	if err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	return nil
}

// LastSeen returns the last recorded activity of nick; ok is false when none exists.
func (s *SeenStore) LastSeen(ctx context.Context, nick string) (t time.Time, ok bool, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT last_seen FROM users WHERE nick = $1`, strings.ToLower(nick)).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last seen: %w", err)
	}
	return t.UTC(), true, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// TriggerStore keeps per-channel triggers. Channel and trigger names are
// stored lower-cased.
type TriggerStore struct {
	DB *sql.DB
}

// SetTrigger creates or replaces a trigger.
func (s *TriggerStore) SetTrigger(ctx context.Context, channel, name, response string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO triggers (channel, name, response) VALUES ($1, $2, $3)
		ON CONFLICT (channel, name) DO UPDATE SET response = EXCLUDED.response, updated_at = NOW()`,
		strings.ToLower(channel), strings.ToLower(name), response)
	if err != nil {
		return fmt.Errorf("set trigger: %w", err)
	}
	return nil
}

// DeleteTrigger removes a trigger and reports whether it existed.
func (s *TriggerStore) DeleteTrigger(ctx context.Context, channel, name string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM triggers WHERE channel = $1 AND name = $2`,
		strings.ToLower(channel), strings.ToLower(name))
	if err != nil {
		return false, fmt.Errorf("delete trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete trigger: %w", err)
	}
	return n > 0, nil
}

// Trigger returns the response stored for name; ok is false when none exists.
func (s *TriggerStore) Trigger(ctx context.Context, channel, name string) (response string, ok bool, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT response FROM triggers WHERE channel = $1 AND name = $2`,
		strings.ToLower(channel), strings.ToLower(name)).Scan(&response)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get trigger: %w", err)
	}
	return response, true, nil
}

// ListTriggers returns the trigger names of channel in alphabetical order.
func (s *TriggerStore) ListTriggers(ctx context.Context, channel string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name FROM triggers WHERE channel = $1 ORDER BY name`, strings.ToLower(channel))
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return names, nil
}
