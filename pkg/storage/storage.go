// Package storage persists brands, tracked scammers and the alert
// ledger in SQLite, including the per-scammer sweep cursor.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// ErrBrandInvariant is returned when a brand marked as having an
// official account is missing its account id or username.
var ErrBrandInvariant = errors.New("brand with account requires account id and username")

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS brands (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  name             TEXT NOT NULL UNIQUE,
  has_account      INTEGER NOT NULL CHECK (has_account IN (0,1)),
  account_id       INTEGER,
  username         TEXT,
  added_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_searched_at DATETIME
);
CREATE TABLE IF NOT EXISTS scammers (
  id         INTEGER PRIMARY KEY,
  username   TEXT NOT NULL,
  brand_id   INTEGER NOT NULL REFERENCES brands(id),
  created_at DATETIME,
  added_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  is_active  INTEGER NOT NULL DEFAULT 1 CHECK (is_active IN (0,1)),
  since_id   INTEGER NOT NULL DEFAULT 0,
  start_time DATETIME
);
CREATE INDEX IF NOT EXISTS idx_scammers_active ON scammers(is_active);
CREATE TABLE IF NOT EXISTS alerts (
  id                INTEGER PRIMARY KEY,
  created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  scammer_id        INTEGER NOT NULL REFERENCES scammers(id),
  victim_id         INTEGER NOT NULL,
  victim_username   TEXT NOT NULL,
  victim_created_at DATETIME,
  tweet_id          INTEGER NOT NULL,
  tweet_text        TEXT,
  tweet_created_at  DATETIME,
  UNIQUE(scammer_id, victim_id)
);
CREATE INDEX IF NOT EXISTS idx_alerts_tweet ON alerts(scammer_id, tweet_id);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// InsertBrand adds a new brand, enforcing the official-account
// invariant.
func (d *DB) InsertBrand(ctx context.Context, b Brand) (int64, error) {
	if b.HasAccount && (b.AccountID == 0 || b.Username == "") {
		return 0, ErrBrandInvariant
	}
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO brands(name, has_account, account_id, username) VALUES(?,?,?,?)`,
		b.Name, boolToInt(b.HasAccount), nullIfZero(b.AccountID), nullIfEmpty(b.Username))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Brands returns all brands.
func (d *DB) Brands(ctx context.Context) ([]Brand, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, name, has_account, account_id, username, added_at, last_searched_at FROM brands ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Brand
	for rows.Next() {
		var b Brand
		var hasAccount int
		var accountID sql.NullInt64
		var username sql.NullString
		var addedAt, lastSearched sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &hasAccount, &accountID, &username, &addedAt, &lastSearched); err != nil {
			return nil, err
		}
		b.HasAccount = hasAccount == 1
		b.AccountID = accountID.Int64
		b.Username = username.String
		b.AddedAt = parseSQLiteTime(addedAt.String)
		b.LastSearchedAt = parseSQLiteTime(lastSearched.String)
		out = append(out, b)
	}
	return out, rows.Err()
}

// TouchBrandSearched advances the brand's last_searched_at watermark.
func (d *DB) TouchBrandSearched(ctx context.Context, brandID int64) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE brands SET last_searched_at = CURRENT_TIMESTAMP WHERE id = ?`, brandID)
	return err
}

// UpsertScammer inserts a tracked scammer or refreshes its username and
// brand. The cursor of an existing record is preserved.
func (d *DB) UpsertScammer(ctx context.Context, s Scammer) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO scammers(id, username, brand_id, created_at, is_active, since_id, start_time)
VALUES(?,?,?,?,1,?,?)
ON CONFLICT(id) DO UPDATE SET username = excluded.username, brand_id = excluded.brand_id`,
		s.ID, s.Username, s.BrandID, nullIfZeroTime(s.CreatedAt), s.SinceID, nullIfZeroTime(s.StartTime))
	return err
}

// ActiveScammers returns all scammers not yet reported suspended.
func (d *DB) ActiveScammers(ctx context.Context) ([]Scammer, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, username, brand_id, created_at, added_at, is_active, since_id, start_time
FROM scammers WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Scammer
	for rows.Next() {
		s, err := scanScammer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ScammerIDs returns the ids of every tracked scammer, active or not.
func (d *DB) ScammerIDs(ctx context.Context) (map[int64]bool, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id FROM scammers")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ScammerUsernames maps every tracked scammer id to its last known
// username.
func (d *DB) ScammerUsernames(ctx context.Context) (map[int64]string, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, username FROM scammers")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var username string
		if err := rows.Scan(&id, &username); err != nil {
			return nil, err
		}
		names[id] = username
	}
	return names, rows.Err()
}

// ScammerByUsername looks a tracked scammer up case-insensitively.
func (d *DB) ScammerByUsername(ctx context.Context, username string) (Scammer, bool, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, username, brand_id, created_at, added_at, is_active, since_id, start_time
FROM scammers WHERE username = ? COLLATE NOCASE LIMIT 1`, username)
	if err != nil {
		return Scammer{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return Scammer{}, false, rows.Err()
	}
	s, err := scanScammer(rows)
	if err != nil {
		return Scammer{}, false, err
	}
	return s, true, nil
}

// DeactivateScammers flips is_active off for the given ids, returning
// how many rows changed.
func (d *DB) DeactivateScammers(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var total int64
	for _, id := range ids {
		res, execErr := tx.ExecContext(ctx, `UPDATE scammers SET is_active = 0 WHERE id = ?`, id)
		if execErr != nil {
			err = execErr
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// AdvanceCursor moves the scammer's tweet-id watermark forward. The
// write takes the maximum of the stored and offered values, so the
// watermark never regresses even under concurrent sweeps.
func (d *DB) AdvanceCursor(ctx context.Context, scammerID, sinceID int64) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE scammers SET since_id = MAX(since_id, ?) WHERE id = ?`, sinceID, scammerID)
	return err
}

// HasAlerted reports whether the (scammer, victim) pair is already in
// the ledger. Must be checked before any dispatch.
func (d *DB) HasAlerted(ctx context.Context, scammerID, victimID int64) (bool, error) {
	var n int
	err := d.sql.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM alerts WHERE scammer_id = ? AND victim_id = ?`, scammerID, victimID).Scan(&n)
	return n > 0, err
}

// HasAlertedTweet reports whether an alert was already recorded for the
// offending tweet, letting sweeps skip it without re-classifying.
func (d *DB) HasAlertedTweet(ctx context.Context, scammerID, tweetID int64) (bool, error) {
	var n int
	err := d.sql.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM alerts WHERE scammer_id = ? AND tweet_id = ?`, scammerID, tweetID).Scan(&n)
	return n > 0, err
}

// RecordAlert appends a ledger record. A second record for the same
// (scammer, victim) pair is silently ignored, keeping the ledger
// append-only and idempotent.
func (d *DB) RecordAlert(ctx context.Context, a Alert) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO alerts(id, scammer_id, victim_id, victim_username, victim_created_at, tweet_id, tweet_text, tweet_created_at)
VALUES(?,?,?,?,?,?,?,?)
ON CONFLICT(scammer_id, victim_id) DO NOTHING`,
		a.ID, a.ScammerID, a.VictimID, a.VictimUsername, nullIfZeroTime(a.VictimCreatedAt),
		a.TweetID, nullIfEmpty(a.TweetText), nullIfZeroTime(a.TweetCreatedAt))
	return err
}

// RecentAlerts returns the most recent N ledger records.
func (d *DB) RecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, created_at, scammer_id, victim_id, victim_username, victim_created_at, tweet_id, tweet_text, tweet_created_at
FROM alerts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		var createdAt string
		var victimCreated, tweetCreated, tweetText sql.NullString
		if err := rows.Scan(&a.ID, &createdAt, &a.ScammerID, &a.VictimID, &a.VictimUsername,
			&victimCreated, &a.TweetID, &tweetText, &tweetCreated); err != nil {
			return nil, err
		}
		a.CreatedAt = parseSQLiteTime(createdAt)
		a.VictimCreatedAt = parseSQLiteTime(victimCreated.String)
		a.TweetText = tweetText.String
		a.TweetCreatedAt = parseSQLiteTime(tweetCreated.String)
		out = append(out, a)
	}
	return out, rows.Err()
}

type BrandStats struct {
	Brand        string
	ScammerCount int
	AlertCount   int
}

func (d *DB) GetStats(ctx context.Context) ([]BrandStats, error) {
	query := `
		SELECT
			b.name,
			COUNT(DISTINCT s.id),
			COUNT(DISTINCT a.id)
		FROM
			brands b
			LEFT JOIN scammers s ON s.brand_id = b.id
			LEFT JOIN alerts a ON a.scammer_id = s.id
		GROUP BY
			b.id
		ORDER BY
			b.name;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []BrandStats
	for rows.Next() {
		var s BrandStats
		if err := rows.Scan(&s.Brand, &s.ScammerCount, &s.AlertCount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func scanScammer(rows *sql.Rows) (Scammer, error) {
	var s Scammer
	var isActive int
	var createdAt, addedAt, startTime sql.NullString
	if err := rows.Scan(&s.ID, &s.Username, &s.BrandID, &createdAt, &addedAt, &isActive, &s.SinceID, &startTime); err != nil {
		return Scammer{}, err
	}
	s.IsActive = isActive == 1
	s.CreatedAt = parseSQLiteTime(createdAt.String)
	s.AddedAt = parseSQLiteTime(addedAt.String)
	s.StartTime = parseSQLiteTime(startTime.String)
	return s, nil
}

// parseSQLiteTime handles both the CURRENT_TIMESTAMP format and RFC3339
// strings written by the driver.
func parseSQLiteTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func nullIfZeroTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
