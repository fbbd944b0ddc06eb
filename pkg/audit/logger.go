// Package audit keeps a local log of every upstream API fetch for
// diagnostics: which resources were requested, whether the cache answered,
// how many attempts a fetch took and how it ended. It is not a cache and
// never feeds responses back to callers.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/models"
)

// Logger writes and queries request entries in a dedicated SQLite database.
type Logger struct {
	db   *sql.DB
	cfg  models.AuditConfig
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the audit database and creates the schema.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}
	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS request_log (
		request_id     TEXT PRIMARY KEY,
		resource_id    TEXT NOT NULL,
		api_key_hash   TEXT NOT NULL,
		api_key_prefix TEXT NOT NULL,
		params         TEXT,
		status_code    INTEGER,
		cache_hit      INTEGER NOT NULL DEFAULT 0,
		attempts       INTEGER NOT NULL DEFAULT 0,
		record_count   INTEGER NOT NULL DEFAULT 0,
		latency_ms     INTEGER,
		error          TEXT,
		created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_request_resource ON request_log(resource_id)`); err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_request_created ON request_log(created_at)`)
	return err
}

// Log inserts a request entry.
func (l *Logger) Log(ctx context.Context, entry models.RequestEntry) error {
	if l == nil || l.db == nil {
		return nil
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO request_log
		(request_id, resource_id, api_key_hash, api_key_prefix, params,
		 status_code, cache_hit, attempts, record_count, latency_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.ResourceID, entry.APIKeyHash, entry.APIKeyPrefix,
		entry.Params, entry.StatusCode, entry.CacheHit, entry.Attempts,
		entry.RecordCount, entry.LatencyMs, entry.Error, entry.CreatedAt,
	)
	return err
}

// Query returns request entries matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.RequestQueryOpts) ([]models.RequestEntry, error) {
	q := `SELECT request_id, resource_id, api_key_hash, api_key_prefix, params,
		status_code, cache_hit, attempts, record_count, latency_ms, error, created_at
		FROM request_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.ResourceID != "" {
		q += " AND resource_id = ?"
		args = append(args, opts.ResourceID)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since)
	}
	if opts.ErrorsOnly {
		q += " AND error != ''"
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.RequestEntry
	for rows.Next() {
		var e models.RequestEntry
		var errText sql.NullString
		var params sql.NullString
		if err := rows.Scan(
			&e.RequestID, &e.ResourceID, &e.APIKeyHash, &e.APIKeyPrefix, &params,
			&e.StatusCode, &e.CacheHit, &e.Attempts, &e.RecordCount,
			&e.LatencyMs, &errText, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Params = params.String
		e.Error = errText.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate counts grouped by resource and day.
func (l *Logger) Stats(ctx context.Context) ([]models.RequestStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT resource_id, date(created_at) AS day, count(*) AS cnt,
			sum(cache_hit) AS hits, sum(CASE WHEN error != '' THEN 1 ELSE 0 END) AS errs
		 FROM request_log GROUP BY resource_id, day ORDER BY day DESC, resource_id`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.RequestStat
	for rows.Next() {
		var s models.RequestStat
		var day sql.NullString
		var hits, errs sql.NullInt64
		if err := rows.Scan(&s.ResourceID, &day, &s.Count, &hits, &errs); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		s.CacheHits = hits.Int64
		s.Errors = errs.Int64
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM request_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}

// HashAPIKey returns the SHA-256 hex hash and an 8-char prefix for an API
// key, so log entries can be correlated without storing the secret.
func HashAPIKey(key string) (hash, prefix string) {
	h := sha256.Sum256([]byte(key))
	hash = hex.EncodeToString(h[:])
	if len(key) > 8 {
		prefix = key[:8]
	} else {
		prefix = key
	}
	return hash, prefix
}
