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

// The lognode binary runs the request-handling plane of a CT log node:
// it serves the RFC 6962 read endpoints from the local replica and
// proxies requests to a peer while the replica lags the cluster.
package main

import (
	"context"
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"k8s.io/klog/v2"

	"github.com/cert-trans/lognode/backend"
	"github.com/cert-trans/lognode/config"
	"github.com/cert-trans/lognode/node"
	"github.com/cert-trans/lognode/schedule"
	"github.com/cert-trans/lognode/storage/sqlite"
	"github.com/cert-trans/lognode/trust"
	"github.com/cert-trans/lognode/util/workerpool"
)

// Flags override values from --config when both are given.
var (
	configFile          = flag.String("config", "", "Path to a YAML configuration file")
	httpEndpoint        = flag.String("http_endpoint", "", "Endpoint for the public HTTP API (host:port)")
	metricsEndpoint     = flag.String("metrics_endpoint", "", "Endpoint for serving metrics; if empty, metrics are served on --http_endpoint")
	peerURL             = flag.String("peer_url", "", "Base URL of the peer to proxy to while this node is stale")
	rootsPEMFile        = flag.String("roots_pem_file", "", "PEM bundle of accepted trust anchors")
	databasePath        = flag.String("database_path", "", "Path to the local replica database")
	maxLeafEntries      = flag.Int64("max_leaf_entries_per_response", 0, "Maximum number of entries per get-entries response")
	stalenessCheckDelay = flag.Duration("staleness_check_delay", 0, "Period of the staleness poll")
	handlerPrefix       = flag.String("handler_prefix", "/ct/v1", "Prefix for the API endpoints")
	shutdownTimeout     = flag.Duration("shutdown_timeout", 10*time.Second, "How long to wait for in-flight requests on shutdown")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg := loadConfig()

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		klog.Exitf("Failed to open replica database: %v", err)
	}
	defer func() { _ = db.Close() }()

	log := backend.NewLog(db)
	if err := log.Sync(context.Background()); err != nil {
		klog.Exitf("Failed to load replica: %v", err)
	}

	pool, err := workerpool.New(cfg.NumWorkers, cfg.WorkerQueueDepth)
	if err != nil {
		klog.Exitf("Failed to create worker pool: %v", err)
	}

	var checker *trust.Checker
	if cfg.RootsPEMFile != "" {
		checker = trust.New()
		if err := checker.AddRootsFromPEMFile(cfg.RootsPEMFile); err != nil {
			klog.Exitf("Failed to load trust anchors: %v", err)
		}
	}

	opts := node.Options{
		Config:  cfg,
		Lookup:  log,
		DB:      replicaDB{db},
		Cluster: log,
		Pool:    pool,
	}
	if checker != nil {
		opts.Checker = checker
	}
	if cfg.PeerURL != "" {
		peer, err := url.Parse(cfg.PeerURL)
		if err != nil {
			klog.Exitf("Invalid peer URL %q: %v", cfg.PeerURL, err)
		}
		opts.Proxy = node.NewReverseProxy(peer)
	} else {
		// Without a peer there is nowhere to route stale requests, so
		// the node always answers locally.
		opts.Cluster = standalone{}
	}

	n, err := node.New(opts)
	if err != nil {
		klog.Exitf("Failed to create node: %v", err)
	}

	router := mux.NewRouter()
	for path, handler := range n.Handlers(*handlerPrefix) {
		router.Handle(path, handler)
	}
	if cfg.MetricsEndpoint != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			klog.Infof("Serving metrics on %s", cfg.MetricsEndpoint)
			if err := http.ListenAndServe(cfg.MetricsEndpoint, mux); err != nil {
				klog.Exitf("Metrics server failed: %v", err)
			}
		}()
	} else {
		router.Handle("/metrics", promhttp.Handler())
	}

	pollCtx, stopPolls := context.WithCancel(context.Background())
	go n.PollStaleness(pollCtx)
	go schedule.Every(pollCtx, cfg.StalenessCheckDelay, func(ctx context.Context) {
		if err := log.Sync(ctx); err != nil {
			klog.Warningf("Replica sync failed: %v", err)
		}
	})

	server := &http.Server{Addr: cfg.HTTPEndpoint, Handler: cors.AllowAll().Handler(router)}
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		klog.Infof("Caught %v, shutting down", sig)

		// No new polls, then drain HTTP, then drain the pool.
		stopPolls()
		ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			klog.Warningf("HTTP shutdown: %v", err)
		}
		pool.Stop()
	}()

	klog.Infof("Serving %s API on %s", *handlerPrefix, cfg.HTTPEndpoint)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		klog.Exitf("Server failed: %v", err)
	}
	<-shutdownDone
	klog.Info("Shutdown complete")
}

// loadConfig resolves the configuration: defaults, then the config file,
// then any flags the operator set explicitly.
func loadConfig() config.Config {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.FromFile(*configFile); err != nil {
			klog.Exitf("Failed to load config: %v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http_endpoint":
			cfg.HTTPEndpoint = *httpEndpoint
		case "metrics_endpoint":
			cfg.MetricsEndpoint = *metricsEndpoint
		case "peer_url":
			cfg.PeerURL = *peerURL
		case "roots_pem_file":
			cfg.RootsPEMFile = *rootsPEMFile
		case "database_path":
			cfg.DatabasePath = *databasePath
		case "max_leaf_entries_per_response":
			cfg.MaxLeafEntriesPerResponse = *maxLeafEntries
		case "staleness_check_delay":
			cfg.StalenessCheckDelay = *stalenessCheckDelay
		}
	})
	if cfg.DatabasePath == "" {
		klog.Exit("Need to specify --database_path")
	}
	if err := cfg.Validate(); err != nil {
		klog.Exitf("Invalid configuration: %v", err)
	}
	return cfg
}

// replicaDB adapts the concrete replica handle to the scanner interface
// the node consumes.
type replicaDB struct {
	db *sqlite.DB
}

func (r replicaDB) ScanEntries(ctx context.Context, start int64) (node.Scanner, error) {
	return r.db.ScanEntries(ctx, start)
}

// standalone is the cluster oracle for a node with no peer: never stale.
type standalone struct{}

func (standalone) NodeIsStale() bool { return false }
