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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce     sync.Once
	requestLatency  *prometheus.HistogramVec
	proxiedRequests prometheus.Counter
	stalenessChecks *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
)

func setupMetrics() {
	metricsOnce.Do(func() {
		requestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lognode_http_request_duration_seconds",
				Help:    "Latency of HTTP requests by endpoint and status code.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "status"},
		)
		proxiedRequests = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lognode_proxied_requests_total",
				Help: "Number of requests forwarded to the peer while stale.",
			},
		)
		stalenessChecks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lognode_staleness_checks_total",
				Help: "Number of staleness poll results by outcome.",
			},
			[]string{"stale"},
		)
		cacheHits = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lognode_entry_cache_hits_total",
				Help: "Number of serialized entries served from the cache.",
			},
		)
		cacheMisses = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lognode_entry_cache_misses_total",
				Help: "Number of serialized entries rendered on demand.",
			},
		)
		prometheus.MustRegister(requestLatency, proxiedRequests, stalenessChecks, cacheHits, cacheMisses)
	})
}
