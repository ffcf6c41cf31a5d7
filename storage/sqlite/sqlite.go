// Copyright 2026 The lognode Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite reads and writes the node's local entry replica.
//
// The replica holds sequenced entries and the cluster's latest signed
// tree head. Entry and SCT blobs are stored in their TLS wire encodings.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cert-trans/lognode/entry"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	sequence INTEGER PRIMARY KEY,
	entry BLOB NOT NULL,
	sct BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS tree_heads (
	tree_size INTEGER PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	root_hash BLOB NOT NULL,
	signature BLOB NOT NULL
);`

// DB is a replica database handle, safe for concurrent use.
type DB struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the replica database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replica database: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize replica schema: %v", err)
	}
	return &DB{db: db}, nil
}

// Close releases the handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// AddEntry stores a sequenced entry. Replication is idempotent: storing a
// sequence that is already present is a no-op, and the row stored first is
// kept even if the new blobs differ.
func (d *DB) AddEntry(ctx context.Context, le *entry.LoggedEntry) error {
	entryBlob, err := tls.Marshal(le.Entry)
	if err != nil {
		return fmt.Errorf("failed to serialize entry %d: %v", le.Sequence, err)
	}
	sctBlob, err := tls.Marshal(le.SCT)
	if err != nil {
		return fmt.Errorf("failed to serialize SCT for entry %d: %v", le.Sequence, err)
	}
	_, err = d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO entries (sequence, entry, sct) VALUES (?, ?, ?)",
		le.Sequence, entryBlob, sctBlob)
	return err
}

// ScanEntries opens a cursor over entries with sequence >= start, in
// ascending sequence order. Gap handling is the caller's concern; the
// cursor just streams the rows that exist.
func (d *DB) ScanEntries(ctx context.Context, start int64) (*Scanner, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT sequence, entry, sct FROM entries WHERE sequence >= ? ORDER BY sequence", start)
	if err != nil {
		return nil, err
	}
	return &Scanner{rows: rows}, nil
}

// StoreTreeHead records a cluster-committed signed tree head.
func (d *DB) StoreTreeHead(ctx context.Context, sth *ct.SignedTreeHead) error {
	sig, err := tls.Marshal(sth.TreeHeadSignature)
	if err != nil {
		return fmt.Errorf("failed to serialize tree head signature: %v", err)
	}
	_, err = d.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO tree_heads (tree_size, timestamp, root_hash, signature) VALUES (?, ?, ?, ?)",
		sth.TreeSize, sth.Timestamp, sth.SHA256RootHash[:], sig)
	return err
}

// LatestTreeHead returns the stored tree head with the largest size, or
// nil when none has been stored yet.
func (d *DB) LatestTreeHead(ctx context.Context) (*ct.SignedTreeHead, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT tree_size, timestamp, root_hash, signature FROM tree_heads ORDER BY tree_size DESC LIMIT 1")
	var sth ct.SignedTreeHead
	var rootHash, sig []byte
	if err := row.Scan(&sth.TreeSize, &sth.Timestamp, &rootHash, &sig); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(rootHash) != len(sth.SHA256RootHash) {
		return nil, fmt.Errorf("stored root hash has %d bytes, want %d", len(rootHash), len(sth.SHA256RootHash))
	}
	copy(sth.SHA256RootHash[:], rootHash)
	rest, err := tls.Unmarshal(sig, &sth.TreeHeadSignature)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored tree head signature: %v", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data after tree head signature: %d bytes", len(rest))
	}
	sth.Version = ct.V1
	return &sth, nil
}

// Scanner streams rows from one ScanEntries call. It is not safe for
// concurrent use.
type Scanner struct {
	rows *sql.Rows
}

// Next returns the next entry, or io.EOF once the scan is exhausted.
func (s *Scanner) Next() (*entry.LoggedEntry, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	var le entry.LoggedEntry
	var entryBlob, sctBlob []byte
	if err := s.rows.Scan(&le.Sequence, &entryBlob, &sctBlob); err != nil {
		return nil, err
	}
	rest, err := tls.Unmarshal(entryBlob, &le.Entry)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry %d: %v", le.Sequence, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data after entry %d: %d bytes", le.Sequence, len(rest))
	}
	rest, err = tls.Unmarshal(sctBlob, &le.SCT)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SCT for entry %d: %v", le.Sequence, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data after SCT for entry %d: %d bytes", le.Sequence, len(rest))
	}
	// The wire form cannot tell no extensions from empty ones; read them
	// back as nil, the form AddEntry callers build.
	if len(le.SCT.Extensions) == 0 {
		le.SCT.Extensions = nil
	}
	return &le, nil
}

// Close releases the cursor.
func (s *Scanner) Close() error {
	return s.rows.Close()
}
