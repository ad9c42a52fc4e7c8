// Package store wraps the hub's embedded SQLite database: WAL-mode
// concurrency, transaction scoping, id generation, and the daily
// receipt-number sequence.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store owns the hub's single-file embedded database connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite database at path with WAL
// journaling, foreign-key enforcement, and a 5-second busy timeout so brief
// write contention retries silently instead of failing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows only one writer at a time; a single connection avoids
	// SQLITE_BUSY races between goroutines inside this process and lets the
	// busy_timeout DSN param do its job for contention from outside it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// DB returns the underlying *sql.DB for packages that need direct access
// (migrations, raw diagnostics queries).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the on-disk database file path.
func (s *Store) Path() string {
	return s.path
}

// WithTx runs fn inside a single atomic transaction, committing on success
// and rolling back if fn returns an error or panics. Every write that
// produces a cloud-observable effect must use WithTx so the business write
// and its outbox row commit or roll back together.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Checkpoint truncates the WAL file back into the main database file. Call
// this on graceful shutdown.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("checkpointing WAL: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FileSizeBytes returns the approximate on-disk size of the database,
// computed from page_count * page_size (the main file only; -wal/-shm are
// not included).
func (s *Store) FileSizeBytes(ctx context.Context) (int64, error) {
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("reading page_count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("reading page_size: %w", err)
	}
	return pageCount * pageSize, nil
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns a short opaque identifier: a base36 timestamp concatenated
// with base36 random bytes. It is unique within this process (timestamp
// component is monotonic at millisecond resolution; the random suffix
// disambiguates ids minted within the same millisecond).
func NewID() string {
	ts := toBase36(time.Now().UnixMilli())
	return ts + "-" + randomBase36(8)
}

func toBase36(n int64) string {
	if n == 0 {
		return "0"
	}
	var b strings.Builder
	digits := make([]byte, 0, 16)
	for n > 0 {
		digits = append(digits, idAlphabet[n%36])
		n /= 36
	}
	for i := len(digits) - 1; i >= 0; i-- {
		b.WriteByte(digits[i])
	}
	return b.String()
}

func randomBase36(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure is effectively unrecoverable on any real
			// platform; fall back to a timestamp-derived byte rather than
			// panic so id generation never blocks a write path.
			out[i] = idAlphabet[time.Now().UnixNano()%36]
			continue
		}
		out[i] = idAlphabet[idx.Int64()]
	}
	return string(out)
}
