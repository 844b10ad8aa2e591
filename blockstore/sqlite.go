// SPDX-License-Identifier: EPL-2.0

package blockstore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite is a block store persisted in a SQLite database, one row per
// block. The driver is pure Go, so the store works anywhere the module
// does. A dsn of ":memory:" gives a private throwaway database, which is
// what the tests use.
type SQLite struct {
	db       *sql.DB
	maxBytes int
	closed   bool
}

// OpenSQLite opens or creates the block database at dsn. A maxBlockBytes
// of zero selects DefaultBlockBytes.
func OpenSQLite(dsn string, maxBlockBytes int) (*SQLite, error) {
	if maxBlockBytes <= 0 {
		maxBlockBytes = DefaultBlockBytes
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", dsn, err)
	}

	// A ":memory:" database is private to its connection; a second pooled
	// connection would see an empty database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS blocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		refs INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create blocks table: %w", err)
	}

	return &SQLite{db: db, maxBytes: maxBlockBytes}, nil
}

func (s *SQLite) NewBlock(data []byte) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}

	if len(data) > s.maxBytes {
		return 0, fmt.Errorf("%d bytes into %d-byte blocks: %w", len(data), s.maxBytes, ErrBlockTooLarge)
	}

	res, err := s.db.Exec(`INSERT INTO blocks (refs, data) VALUES (1, ?)`, data)
	if err != nil {
		return 0, fmt.Errorf("%w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w", err)
	}

	return id, nil
}

func (s *SQLite) ReadBlock(id, off int64, dst []byte) error {
	if s.closed {
		return ErrClosed
	}

	if off < 0 {
		return fmt.Errorf("offset %d: %w", off, ErrReadRange)
	}

	// substr's block slicing is 1-based
	var chunk []byte
	err := s.db.QueryRow(`SELECT substr(data, ?, ?) FROM blocks WHERE id = ?`,
		off+1, len(dst), id).Scan(&chunk)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("block %d: %w", id, ErrUnknownBlock)
	}
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	if len(chunk) != len(dst) {
		return fmt.Errorf("[%d, %d) beyond block %d: %w", off, off+int64(len(dst)), id, ErrReadRange)
	}

	copy(dst, chunk)

	return nil
}

func (s *SQLite) Retain(id int64) error {
	if s.closed {
		return ErrClosed
	}

	res, err := s.db.Exec(`UPDATE blocks SET refs = refs + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("block %d: %w", id, ErrUnknownBlock)
	}

	return nil
}

func (s *SQLite) Release(id int64) error {
	if s.closed {
		return ErrClosed
	}

	res, err := s.db.Exec(`UPDATE blocks SET refs = refs - 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("block %d: %w", id, ErrUnknownBlock)
	}

	if _, err := s.db.Exec(`DELETE FROM blocks WHERE id = ? AND refs <= 0`, id); err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}

func (s *SQLite) MaxBlockBytes() int { return s.maxBytes }

func (s *SQLite) Flush() error {
	if s.closed {
		return ErrClosed
	}

	return nil
}

// Len returns the number of live blocks.
func (s *SQLite) Len() (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	var n int
	if err := s.db.QueryRow(`SELECT count(*) FROM blocks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w", err)
	}

	return n, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}
