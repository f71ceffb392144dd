package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/models"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest cache schema version.
const CurrentSchemaVersion = 1

// SQLiteStore persists entries in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens or creates the database at path and migrates it.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS cache_entries (
		  id                TEXT PRIMARY KEY,
		  normalized_text   TEXT NOT NULL,
		  keywords_json     TEXT NOT NULL,
		  book_json         TEXT NOT NULL,
		  source            TEXT NOT NULL,
		  confidence        REAL NOT NULL,
		  usage_count       INTEGER NOT NULL DEFAULT 0,
		  is_false_positive INTEGER NOT NULL DEFAULT 0,
		  created_at        INTEGER NOT NULL,
		  updated_at        INTEGER NOT NULL,
		  last_used_at      INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_cache_entries_text
		ON cache_entries(normalized_text)
		WHERE is_false_positive = 0;

		CREATE TABLE IF NOT EXISTS cache_keywords (
		  entry_id TEXT NOT NULL REFERENCES cache_entries(id) ON DELETE CASCADE,
		  keyword  TEXT NOT NULL,
		  PRIMARY KEY (entry_id, keyword)
		);

		CREATE INDEX IF NOT EXISTS idx_cache_keywords_keyword
		ON cache_keywords(keyword);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

const entryColumns = `e.id, e.normalized_text, e.keywords_json, e.book_json, e.source,
	e.confidence, e.usage_count, e.is_false_positive, e.created_at, e.updated_at, e.last_used_at`

func (s *SQLiteStore) Exact(ctx context.Context, text string) ([]models.CacheEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM cache_entries e
		WHERE e.normalized_text = ? AND e.is_false_positive = 0`
	return s.query(ctx, query, text)
}

func (s *SQLiteStore) Candidates(ctx context.Context, keywords []string) ([]models.CacheEntry, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keywords)), ",")
	query := `SELECT ` + entryColumns + ` FROM cache_entries e
		WHERE e.is_false_positive = 0 AND e.id IN (
			SELECT entry_id FROM cache_keywords WHERE keyword IN (` + placeholders + `)
		)`
	args := make([]any, len(keywords))
	for i, k := range keywords {
		args[i] = k
	}
	return s.query(ctx, query, args...)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.CacheEntry, bool, error) {
	entries, err := s.query(ctx, `SELECT `+entryColumns+` FROM cache_entries e WHERE e.id = ?`, id)
	if err != nil || len(entries) == 0 {
		return models.CacheEntry{}, false, err
	}
	return entries[0], true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, entry models.CacheEntry) error {
	keywordsJSON, err := json.Marshal(entry.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	bookJSON, err := json.Marshal(entry.Book)
	if err != nil {
		return fmt.Errorf("failed to encode book: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_entries (
			id, normalized_text, keywords_json, book_json, source, confidence,
			usage_count, is_false_positive, created_at, updated_at, last_used_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			normalized_text = excluded.normalized_text,
			keywords_json = excluded.keywords_json,
			book_json = excluded.book_json,
			source = excluded.source,
			confidence = excluded.confidence,
			is_false_positive = excluded.is_false_positive,
			updated_at = excluded.updated_at`,
		entry.ID, entry.NormalizedText, string(keywordsJSON), string(bookJSON), string(entry.Source),
		entry.Confidence, entry.UsageCount, entry.IsFalsePositive,
		entry.CreatedAt.UnixMilli(), entry.UpdatedAt.UnixMilli(), toNullMillis(entry.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_keywords WHERE entry_id = ?`, entry.ID); err != nil {
		return fmt.Errorf("failed to clear keywords: %w", err)
	}
	for _, k := range entry.Keywords {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO cache_keywords (entry_id, keyword) VALUES (?, ?)`, entry.ID, k); err != nil {
			return fmt.Errorf("failed to insert keyword: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`,
		at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return requireRow(res, id)
}

func (s *SQLiteStore) MarkFalsePositive(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET is_false_positive = 1, updated_at = ? WHERE id = ?`,
		at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to mark false positive: %w", err)
	}
	return requireRow(res, id)
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(source = 'prepopulated'), 0),
			COALESCE(SUM(source = 'learned'), 0),
			COALESCE(SUM(is_false_positive), 0),
			COALESCE(SUM(usage_count), 0)
		FROM cache_entries`).Scan(&st.Entries, &st.Prepopulated, &st.Learned, &st.FalsePositives, &st.TotalUsage)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// query scans entry rows. Rows that cannot be decoded are logged and skipped.
func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	var out []models.CacheEntry
	for rows.Next() {
		var (
			e                      models.CacheEntry
			keywordsJSON, bookJSON string
			source                 string
			createdAt, updatedAt   int64
			lastUsedAt             sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.NormalizedText, &keywordsJSON, &bookJSON, &source,
			&e.Confidence, &e.UsageCount, &e.IsFalsePositive, &createdAt, &updatedAt, &lastUsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache row: %w", err)
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &e.Keywords); err != nil {
			s.logger.Warn("Skipping corrupt cache entry", "id", e.ID, "field", "keywords", "err", err)
			continue
		}
		if err := json.Unmarshal([]byte(bookJSON), &e.Book); err != nil {
			s.logger.Warn("Skipping corrupt cache entry", "id", e.ID, "field", "book", "err", err)
			continue
		}
		e.Source = models.CacheSource(source)
		e.CreatedAt = time.UnixMilli(createdAt)
		e.UpdatedAt = time.UnixMilli(updatedAt)
		if lastUsedAt.Valid {
			e.LastUsedAt = time.UnixMilli(lastUsedAt.Int64)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache rows: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return errors.NewNotFound("cache entry " + id)
	}
	return nil
}

func toNullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
