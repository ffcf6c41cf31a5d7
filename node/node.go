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

// Package node implements the request-handling plane of a CT log node:
// the RFC 6962 read and write endpoints, the staleness-aware dispatcher
// that proxies requests to a peer while the local replica lags the
// cluster, and the offload of blocking work onto a worker pool.
package node

import (
	"context"
	"net/http"
	"sync"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/x509"
	"k8s.io/klog/v2"

	"github.com/cert-trans/lognode/config"
	"github.com/cert-trans/lognode/entry"
	"github.com/cert-trans/lognode/schedule"
	"github.com/cert-trans/lognode/submission"
	"github.com/cert-trans/lognode/util/workerpool"
)

// LogLookup serves Merkle tree reads from the local replica.
type LogLookup interface {
	// GetSTH returns the latest signed tree head known to this node.
	GetSTH() *ct.SignedTreeHead
	// AuditProof returns the leaf index of the entry with the given
	// Merkle leaf hash and its inclusion proof in the tree of the given
	// size. An absent leaf yields a NotFound error.
	AuditProof(leafHash []byte, treeSize uint64) (int64, [][]byte, error)
	// ConsistencyProof proves the tree of size first is a prefix of the
	// tree of size second.
	ConsistencyProof(first, second uint64) ([][]byte, error)
}

// Scanner iterates sequenced entries in ascending sequence order.
type Scanner interface {
	// Next returns the next entry, or io.EOF when the scan is done.
	Next() (*entry.LoggedEntry, error)
	Close() error
}

// ReadOnlyDatabase reads sequenced entries from the local replica.
type ReadOnlyDatabase interface {
	// ScanEntries opens a cursor over entries with sequence >= start.
	ScanEntries(ctx context.Context, start int64) (Scanner, error)
}

// ClusterStateController answers whether this node's replica lags the
// cluster's committed view. NodeIsStale may block on internal locks, so
// the node only ever calls it from the worker pool.
type ClusterStateController interface {
	NodeIsStale() bool
}

// Frontend queues accepted submissions for sequencing and returns the SCT
// issued for them. A duplicate submission yields an AlreadyExists error
// carrying the previously issued SCT; queue backpressure yields
// ResourceExhausted.
type Frontend interface {
	QueueX509Entry(ctx context.Context, chain []*x509.Certificate) (*ct.SignedCertificateTimestamp, error)
	QueuePreCertEntry(ctx context.Context, chain []*x509.Certificate) (*ct.SignedCertificateTimestamp, error)
	QueueSignedDataEntry(ctx context.Context, sd *submission.SignedData) (*ct.SignedCertificateTimestamp, error)
}

// Proxy forwards a request to a peer node and writes the peer's response.
type Proxy interface {
	ProxyRequest(w http.ResponseWriter, r *http.Request)
}

// Node wires the handlers to their collaborators. Checker and Frontend
// may be nil: a node without a Frontend is a mirror and mounts no write
// endpoints, a node without a Checker does not mount get-roots.
type Node struct {
	cfg      config.Config
	lookup   LogLookup
	db       ReadOnlyDatabase
	cluster  ClusterStateController
	checker  submission.CertChecker
	frontend Frontend
	proxy    Proxy
	pool     *workerpool.Pool
	reqLog   RequestLog
	cache    *entryCache

	mu    sync.RWMutex
	stale bool
}

// Options collects the collaborators of a Node.
type Options struct {
	Config   config.Config
	Lookup   LogLookup
	DB       ReadOnlyDatabase
	Cluster  ClusterStateController
	Checker  submission.CertChecker
	Frontend Frontend
	Proxy    Proxy
	Pool     *workerpool.Pool
	// RequestLog defaults to a klog-backed implementation.
	RequestLog RequestLog
}

// New creates a Node. The staleness flag starts false and is refreshed by
// PollStaleness.
func New(opts Options) (*Node, error) {
	setupMetrics()
	cache, err := newEntryCache(entryCacheSize)
	if err != nil {
		return nil, err
	}
	reqLog := opts.RequestLog
	if reqLog == nil {
		reqLog = new(DefaultRequestLog)
	}
	return &Node{
		cfg:      opts.Config,
		lookup:   opts.Lookup,
		db:       opts.DB,
		cluster:  opts.Cluster,
		checker:  opts.Checker,
		frontend: opts.Frontend,
		proxy:    opts.Proxy,
		pool:     opts.Pool,
		reqLog:   reqLog,
		cache:    cache,
	}, nil
}

// IsMirror reports whether this node accepts no submissions.
func (n *Node) IsMirror() bool {
	return n.frontend == nil
}

// PollStaleness refreshes the staleness flag every
// Config.StalenessCheckDelay until ctx is cancelled. It blocks; callers
// run it on its own goroutine. The cluster controller may take locks, so
// the actual check runs on the worker pool.
func (n *Node) PollStaleness(ctx context.Context) {
	schedule.Every(ctx, n.cfg.StalenessCheckDelay, n.refreshStaleness)
}

func (n *Node) refreshStaleness(ctx context.Context) {
	result := make(chan bool, 1)
	if err := n.pool.Submit(ctx, func() {
		result <- n.cluster.NodeIsStale()
	}); err != nil {
		klog.V(1).Infof("staleness check not submitted: %v", err)
		return
	}
	select {
	case stale := <-result:
		n.mu.Lock()
		changed := n.stale != stale
		n.stale = stale
		n.mu.Unlock()
		stalenessChecks.WithLabelValues(boolLabel(stale)).Inc()
		if changed {
			klog.Infof("node staleness changed to %v", stale)
		}
	case <-ctx.Done():
	}
}

func (n *Node) isStale() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stale
}

// offload runs f on the worker pool and waits for it to finish. It
// returns without running f if the pool is stopped or ctx is done.
func (n *Node) offload(ctx context.Context, f func()) error {
	done := make(chan struct{})
	if err := n.pool.Submit(ctx, func() {
		defer close(done)
		f()
	}); err != nil {
		return err
	}
	<-done
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
