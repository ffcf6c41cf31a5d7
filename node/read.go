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
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// leafEntry is one element of a get-entries response. SCT is only set
// when the caller asked for include_scts.
type leafEntry struct {
	LeafInput []byte `json:"leaf_input"`
	ExtraData []byte `json:"extra_data"`
	SCT       []byte `json:"sct,omitempty"`
}

type getEntriesResponse struct {
	Entries []leafEntry `json:"entries"`
}

// getSTH serves the latest signed tree head. It only touches in-memory
// state and runs inline.
func getSTH(ctx context.Context, n *Node, w http.ResponseWriter, r *http.Request) (int, error) {
	sth := n.lookup.GetSTH()
	if sth == nil {
		return http.StatusInternalServerError, status.Error(codes.Internal, "no tree head available")
	}
	sig, err := tls.Marshal(sth.TreeHeadSignature)
	if err != nil {
		return http.StatusInternalServerError, status.Errorf(codes.Internal, "failed to serialize tree head signature: %v", err)
	}
	sendJSONReply(w, http.StatusOK, ct.GetSTHResponse{
		TreeSize:          sth.TreeSize,
		Timestamp:         sth.Timestamp,
		SHA256RootHash:    sth.SHA256RootHash[:],
		TreeHeadSignature: sig,
	})
	return http.StatusOK, nil
}

// getEntries serves a range of sequenced entries. The replica scan may
// block on disk, so it runs on the worker pool.
func getEntries(ctx context.Context, n *Node, w http.ResponseWriter, r *http.Request) (int, error) {
	q := queryParams(r)
	start, ok := intParam(q, "start")
	if !ok || start < 0 {
		return http.StatusBadRequest, status.Error(codes.InvalidArgument, `Missing or invalid "start" parameter.`)
	}
	end, ok := intParam(q, "end")
	if !ok || end < start {
		return http.StatusBadRequest, status.Error(codes.InvalidArgument, `Missing or invalid "end" parameter.`)
	}
	includeSCTs := boolParam(q, "include_scts")
	if max := n.cfg.MaxLeafEntriesPerResponse; end-start+1 > max {
		end = start + max - 1
	}

	var entries []leafEntry
	var scanErr error
	if err := n.offload(ctx, func() {
		entries, scanErr = n.scanEntries(ctx, start, end, includeSCTs)
	}); err != nil {
		return http.StatusServiceUnavailable, status.Errorf(codes.ResourceExhausted, "node overloaded: %v", err)
	}
	if scanErr != nil {
		return http.StatusInternalServerError, scanErr
	}
	if len(entries) == 0 {
		return http.StatusBadRequest, status.Error(codes.InvalidArgument, "Entry not found.")
	}
	sendJSONReply(w, http.StatusOK, getEntriesResponse{Entries: entries})
	return http.StatusOK, nil
}

// scanEntries reads entries start..end (inclusive) from the replica,
// stopping cleanly at the first sequence gap.
func (n *Node) scanEntries(ctx context.Context, start, end int64, includeSCTs bool) ([]leafEntry, error) {
	scanner, err := n.db.ScanEntries(ctx, start)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to open entry scan: %v", err)
	}
	defer func() { _ = scanner.Close() }()

	var entries []leafEntry
	for seq := start; seq <= end; seq++ {
		le, err := scanner.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, status.Errorf(codes.Internal, "entry scan failed at %d: %v", seq, err)
		}
		if le.Sequence != seq {
			// A gap means the replica has not caught up past seq yet.
			break
		}
		rendered, err := n.renderEntry(le, includeSCTs)
		if err != nil {
			return nil, err
		}
		entries = append(entries, rendered)
	}
	return entries, nil
}

// getProofByHash serves a Merkle inclusion proof for a leaf hash at a
// given tree size.
func getProofByHash(ctx context.Context, n *Node, w http.ResponseWriter, r *http.Request) (int, error) {
	q := queryParams(r)
	hashB64, ok := param(q, "hash")
	if !ok || hashB64 == "" {
		return http.StatusBadRequest, status.Error(codes.InvalidArgument, `Missing or invalid "hash" parameter.`)
	}
	hash, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil || len(hash) == 0 {
		return http.StatusBadRequest, status.Error(codes.InvalidArgument, `Missing or invalid "hash" parameter.`)
	}
	treeSize, ok := intParam(q, "tree_size")
	if !ok || treeSize < 0 {
		return http.StatusBadRequest, status.Error(codes.InvalidArgument, `Missing or invalid "tree_size" parameter.`)
	}
	sth := n.lookup.GetSTH()
	if sth == nil {
		return http.StatusInternalServerError, status.Error(codes.Internal, "no tree head available")
	}
	if uint64(treeSize) > sth.TreeSize {
		return http.StatusBadRequest, status.Error(codes.InvalidArgument, `Missing or invalid "tree_size" parameter.`)
	}

	var leafIndex int64
	var path [][]byte
	var proofErr error
	if err := n.offload(ctx, func() {
		leafIndex, path, proofErr = n.lookup.AuditProof(hash, uint64(treeSize))
	}); err != nil {
		return http.StatusServiceUnavailable, status.Errorf(codes.ResourceExhausted, "node overloaded: %v", err)
	}
	if proofErr != nil {
		if status.Code(proofErr) == codes.NotFound {
			return http.StatusBadRequest, status.Error(codes.NotFound, "Couldn't find hash.")
		}
		return http.StatusInternalServerError, proofErr
	}
	sendJSONReply(w, http.StatusOK, ct.GetProofByHashResponse{
		LeafIndex: leafIndex,
		AuditPath: path,
	})
	return http.StatusOK, nil
}

// getSTHConsistency serves a consistency proof between two tree sizes.
func getSTHConsistency(ctx context.Context, n *Node, w http.ResponseWriter, r *http.Request) (int, error) {
	q := queryParams(r)
	first, ok := intParam(q, "first")
	if !ok || first < 0 {
		return http.StatusBadRequest, status.Error(codes.InvalidArgument, `Missing or invalid "first" parameter.`)
	}
	second, ok := intParam(q, "second")
	if !ok || second < first {
		return http.StatusBadRequest, status.Error(codes.InvalidArgument, `Missing or invalid "second" parameter.`)
	}

	var proof [][]byte
	var proofErr error
	if err := n.offload(ctx, func() {
		proof, proofErr = n.lookup.ConsistencyProof(uint64(first), uint64(second))
	}); err != nil {
		return http.StatusServiceUnavailable, status.Errorf(codes.ResourceExhausted, "node overloaded: %v", err)
	}
	if proofErr != nil {
		return httpStatusForError(proofErr), proofErr
	}
	sendJSONReply(w, http.StatusOK, ct.GetSTHConsistencyResponse{Consistency: proof})
	return http.StatusOK, nil
}

// getRoots serves the trust anchor set. The roots are read-only after
// startup, so this runs inline.
func getRoots(ctx context.Context, n *Node, w http.ResponseWriter, r *http.Request) (int, error) {
	roots := n.checker.GetTrustedCertificates()
	certs := make([]string, 0, len(roots))
	for _, root := range roots {
		if len(root.Raw) == 0 {
			return http.StatusInternalServerError, status.Error(codes.Internal, "trust anchor has no DER encoding")
		}
		certs = append(certs, base64.StdEncoding.EncodeToString(root.Raw))
	}
	sendJSONReply(w, http.StatusOK, ct.GetRootsResponse{Certificates: certs})
	return http.StatusOK, nil
}
