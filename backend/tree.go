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

// Package backend serves Merkle tree reads from an in-memory tree built
// over the node's local replica.
package backend

import (
	"fmt"

	"github.com/transparency-dev/merkle"
	"github.com/transparency-dev/merkle/rfc6962"
)

// tree is an append-only RFC 6962 Merkle tree over leaf hashes. The proof
// algorithms are the recursive definitions of RFC 6962 s2.1; they
// recompute internal nodes on demand, which is fine at replica scale.
type tree struct {
	hasher merkle.LogHasher
	leaves [][]byte
}

func newTree() *tree {
	return &tree{hasher: rfc6962.DefaultHasher}
}

func (t *tree) size() uint64 {
	return uint64(len(t.leaves))
}

func (t *tree) appendLeafHash(hash []byte) {
	t.leaves = append(t.leaves, hash)
}

// rootAt returns the Merkle tree hash of the first size leaves.
func (t *tree) rootAt(size uint64) ([]byte, error) {
	if size > t.size() {
		return nil, fmt.Errorf("tree size %d exceeds %d leaves", size, t.size())
	}
	return t.subtreeRoot(0, size), nil
}

// subtreeRoot computes MTH over leaves [lo, hi).
func (t *tree) subtreeRoot(lo, hi uint64) []byte {
	if hi == lo {
		return t.hasher.EmptyRoot()
	}
	if hi-lo == 1 {
		return t.leaves[lo]
	}
	k := largestPowerOfTwoBelow(hi - lo)
	return t.hasher.HashChildren(t.subtreeRoot(lo, lo+k), t.subtreeRoot(lo+k, hi))
}

// inclusionProof returns the audit path for leaf index in the tree of the
// given size, per the PATH definition of RFC 6962.
func (t *tree) inclusionProof(index, size uint64) ([][]byte, error) {
	if size > t.size() {
		return nil, fmt.Errorf("tree size %d exceeds %d leaves", size, t.size())
	}
	if index >= size {
		return nil, fmt.Errorf("leaf index %d is outside tree of size %d", index, size)
	}
	return t.path(index, 0, size), nil
}

func (t *tree) path(index, lo, hi uint64) [][]byte {
	if hi-lo <= 1 {
		return nil
	}
	k := largestPowerOfTwoBelow(hi - lo)
	if index-lo < k {
		return append(t.path(index, lo, lo+k), t.subtreeRoot(lo+k, hi))
	}
	return append(t.path(index, lo+k, hi), t.subtreeRoot(lo, lo+k))
}

// consistencyProof proves the tree of size first is a prefix of the tree
// of size second, per the PROOF definition of RFC 6962.
func (t *tree) consistencyProof(first, second uint64) ([][]byte, error) {
	if second > t.size() {
		return nil, fmt.Errorf("tree size %d exceeds %d leaves", second, t.size())
	}
	if first > second {
		return nil, fmt.Errorf("first %d > second %d", first, second)
	}
	if first == 0 || first == second {
		return nil, nil
	}
	return t.subproof(first, 0, second, true), nil
}

func (t *tree) subproof(m, lo, hi uint64, complete bool) [][]byte {
	if m == hi-lo {
		if complete {
			return nil
		}
		return [][]byte{t.subtreeRoot(lo, hi)}
	}
	k := largestPowerOfTwoBelow(hi - lo)
	if m <= k {
		return append(t.subproof(m, lo, lo+k, complete), t.subtreeRoot(lo+k, hi))
	}
	return append(t.subproof(m-k, lo+k, hi, false), t.subtreeRoot(lo, lo+k))
}

// largestPowerOfTwoBelow returns the largest power of two strictly less
// than n, for n >= 2.
func largestPowerOfTwoBelow(n uint64) uint64 {
	k := uint64(1)
	for k<<1 < n {
		k <<= 1
	}
	return k
}
