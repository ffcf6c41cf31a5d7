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

package backend

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"sync"

	ct "github.com/google/certificate-transparency-go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"github.com/cert-trans/lognode/entry"
	"github.com/cert-trans/lognode/storage/sqlite"
)

// Log answers Merkle tree reads from an in-memory tree rebuilt over the
// local replica, and reports staleness by comparing the local tree size
// with the cluster's committed tree head.
type Log struct {
	db *sqlite.DB

	mu    sync.RWMutex
	tree  *tree
	index map[[sha256.Size]byte]int64
	sth   *ct.SignedTreeHead
}

// NewLog creates a Log over db. Call Sync before serving, and
// periodically afterwards, to pull in replicated entries.
func NewLog(db *sqlite.DB) *Log {
	return &Log{
		db:    db,
		tree:  newTree(),
		index: make(map[[sha256.Size]byte]int64),
	}
}

// Sync appends newly replicated entries to the tree, stopping at the
// first sequence gap, and refreshes the cluster tree head.
func (l *Log) Sync(ctx context.Context) error {
	l.mu.RLock()
	next := int64(l.tree.size())
	l.mu.RUnlock()

	scanner, err := l.db.ScanEntries(ctx, next)
	if err != nil {
		return err
	}
	defer func() { _ = scanner.Close() }()

	appended := 0
	for {
		le, err := scanner.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if le.Sequence != next {
			// A gap means replication has not caught up; retry later.
			break
		}
		leafInput, err := entry.SerializeForLeaf(&le.Entry, le.SCT.Timestamp, le.SCT.Extensions)
		if err != nil {
			return err
		}
		hash := entry.LeafHash(leafInput)
		var key [sha256.Size]byte
		copy(key[:], hash)

		l.mu.Lock()
		l.tree.appendLeafHash(hash)
		l.index[key] = le.Sequence
		l.mu.Unlock()
		next++
		appended++
	}

	sth, err := l.db.LatestTreeHead(ctx)
	if err != nil {
		return err
	}
	if sth != nil {
		l.mu.Lock()
		l.sth = sth
		l.mu.Unlock()
	}
	if appended > 0 {
		klog.V(1).Infof("replica sync appended %d entries, tree size now %d", appended, next)
	}
	return nil
}

// GetSTH returns the cluster's latest committed tree head, or nil when
// none has been replicated yet.
func (l *Log) GetSTH() *ct.SignedTreeHead {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sth
}

// AuditProof returns the sequence number of the entry with the given
// Merkle leaf hash and its inclusion proof in the tree of the given size.
func (l *Log) AuditProof(leafHash []byte, treeSize uint64) (int64, [][]byte, error) {
	if len(leafHash) != sha256.Size {
		return 0, nil, status.Errorf(codes.NotFound, "leaf hash has %d bytes, want %d", len(leafHash), sha256.Size)
	}
	var key [sha256.Size]byte
	copy(key[:], leafHash)

	l.mu.RLock()
	defer l.mu.RUnlock()
	seq, ok := l.index[key]
	if !ok {
		return 0, nil, status.Error(codes.NotFound, "leaf hash not found")
	}
	if uint64(seq) >= treeSize {
		return 0, nil, status.Errorf(codes.NotFound, "leaf %d is outside tree of size %d", seq, treeSize)
	}
	if treeSize > l.tree.size() {
		return 0, nil, status.Errorf(codes.NotFound, "tree size %d not yet replicated", treeSize)
	}
	path, err := l.tree.inclusionProof(uint64(seq), treeSize)
	if err != nil {
		return 0, nil, status.Errorf(codes.Internal, "%v", err)
	}
	return seq, path, nil
}

// ConsistencyProof proves the tree of size first is a prefix of the tree
// of size second.
func (l *Log) ConsistencyProof(first, second uint64) ([][]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if second > l.tree.size() {
		return nil, status.Errorf(codes.InvalidArgument, "tree size %d not yet replicated", second)
	}
	proof, err := l.tree.consistencyProof(first, second)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	return proof, nil
}

// NodeIsStale reports whether the local tree lags the cluster's committed
// view.
func (l *Log) NodeIsStale() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sth != nil && l.tree.size() < l.sth.TreeSize
}
