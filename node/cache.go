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

package node

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cert-trans/lognode/entry"
)

const entryCacheSize = 4096

type cacheKey struct {
	sequence    int64
	includeSCTs bool
}

// entryCache holds rendered get-entries elements. Sequenced entries are
// immutable, so entries never need invalidation, only eviction.
type entryCache struct {
	lru *lru.Cache[cacheKey, leafEntry]
}

func newEntryCache(size int) (*entryCache, error) {
	c, err := lru.New[cacheKey, leafEntry](size)
	if err != nil {
		return nil, err
	}
	return &entryCache{lru: c}, nil
}

// renderEntry produces the wire form of a sequenced entry, consulting the
// cache first. Serialization failures are internal errors; the stored
// record was accepted once already.
func (n *Node) renderEntry(le *entry.LoggedEntry, includeSCTs bool) (leafEntry, error) {
	key := cacheKey{sequence: le.Sequence, includeSCTs: includeSCTs}
	if cached, ok := n.cache.lru.Get(key); ok {
		cacheHits.Inc()
		return cached, nil
	}
	cacheMisses.Inc()

	leafInput, err := entry.SerializeForLeaf(&le.Entry, le.SCT.Timestamp, le.SCT.Extensions)
	if err != nil {
		return leafEntry{}, status.Errorf(codes.Internal, "failed to serialize entry %d: %v", le.Sequence, err)
	}
	extraData, err := entry.SerializeExtraData(&le.Entry)
	if err != nil {
		return leafEntry{}, status.Errorf(codes.Internal, "failed to serialize extra data for entry %d: %v", le.Sequence, err)
	}
	rendered := leafEntry{LeafInput: leafInput, ExtraData: extraData}
	if includeSCTs {
		sct, err := entry.SerializeSCT(le.SCT)
		if err != nil {
			return leafEntry{}, status.Errorf(codes.Internal, "failed to serialize SCT for entry %d: %v", le.Sequence, err)
		}
		rendered.SCT = sct
	}
	n.cache.lru.Add(key, rendered)
	return rendered, nil
}
