package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	// Pure Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/LDSLab/stoicheia/model"
)

// Options configures the SQLite session.
type Options struct {
	// Synchronous is the SQLite synchronous pragma: "off", "normal" or
	// "full".
	Synchronous string

	// BusyTimeout bounds how long a statement waits for a competing
	// handle's lock before failing.
	BusyTimeout time.Duration
}

// DB is one handle onto a stoicheia database file. A handle is
// single-threaded: it holds exactly one SQLite connection and serializes
// calls in call order. Open several handles for parallelism; SQLite's WAL
// journal coordinates them.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the database at path and applies the
// idempotent schema. The path ":memory:" creates a private in-memory
// database.
func Open(path string, opts Options) (*DB, error) {
	if opts.Synchronous == "" {
		opts.Synchronous = "off"
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("synchronous(%s)", opts.Synchronous))
	q.Add("_pragma", "foreign_keys(1)")
	dsn := path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection per handle: the engine is single-threaded per
	// handle, and a second connection to ":memory:" would be a second
	// database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{sql: db}, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Tx is a single database transaction. All registry, patch-store and
// commit-graph operations hang off it; axis label vectors read within the
// transaction are cached on it, which is safe because labels are
// append-only and the transaction sees a stable snapshot.
type Tx struct {
	tx        *sql.Tx
	axisCache map[string]*model.Axis
}

// Begin starts a transaction. SQLite transactions begin deferred: they
// take no lock until the first read or write, so a read-only fn sees a
// consistent snapshot without blocking a writer under WAL.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx, axisCache: make(map[string]*model.Axis)}, nil
}

// View runs fn in a transaction used only for reads.
func (db *DB) View(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Update runs fn in a writable transaction, committing on success and
// rolling back on any error.
func (db *DB) Update(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
