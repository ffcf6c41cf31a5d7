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
	"net/http"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// PathHandlers maps from URL path (with prefix) to AppHandler instance.
type PathHandlers map[string]AppHandler

// AppHandler binds one endpoint to its handler function and wraps it with
// the stats and proxy interceptors. The stats interceptor is outermost so
// that proxied requests are measured too.
type AppHandler struct {
	Node    *Node
	Handler func(context.Context, *Node, http.ResponseWriter, *http.Request) (int, error)
	Name    string
	Method  string
}

// ServeHTTP dispatches a request: records latency, forwards to the peer
// while the node is stale, guards the HTTP method, and otherwise runs the
// local handler. Errors returned by the handler are mapped to HTTP by
// sendError.
func (a AppHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := a.Node
	start := time.Now()
	statusCode := http.StatusOK
	defer func() {
		requestLatency.WithLabelValues(a.Name, strconv.Itoa(statusCode)).Observe(time.Since(start).Seconds())
	}()

	ctx := n.reqLog.Start(r.Context(), a.Name, r)

	if n.isStale() {
		// Proxying blocks on outbound I/O, so it runs on the pool.
		proxiedRequests.Inc()
		if err := n.offload(ctx, func() { n.proxy.ProxyRequest(w, r) }); err != nil {
			statusCode = http.StatusServiceUnavailable
			sendErrorMessage(w, statusCode, "node overloaded")
		}
		n.reqLog.Status(ctx, statusCode)
		return
	}

	if r.Method != a.Method {
		statusCode = http.StatusMethodNotAllowed
		sendErrorMessage(w, statusCode, "Method Not Allowed")
		n.reqLog.Status(ctx, statusCode)
		return
	}

	var err error
	statusCode, err = a.Handler(ctx, n, w, r)
	if err != nil {
		klog.V(2).Infof("%s: request failed with %d: %v", a.Name, statusCode, err)
		sendError(w, statusCode, err)
	}
	n.reqLog.Status(ctx, statusCode)
}

// Handlers returns the mounting table for this node under prefix
// (typically "/ct/v1"). Write endpoints appear only when the node has a
// sequencing frontend; get-roots only when it has a cert checker.
func (n *Node) Handlers(prefix string) PathHandlers {
	prefix = strings.TrimRight(prefix, "/")
	ph := PathHandlers{
		prefix + "/get-sth":             AppHandler{Node: n, Handler: getSTH, Name: "get-sth", Method: http.MethodGet},
		prefix + "/get-entries":         AppHandler{Node: n, Handler: getEntries, Name: "get-entries", Method: http.MethodGet},
		prefix + "/get-proof-by-hash":   AppHandler{Node: n, Handler: getProofByHash, Name: "get-proof-by-hash", Method: http.MethodGet},
		prefix + "/get-sth-consistency": AppHandler{Node: n, Handler: getSTHConsistency, Name: "get-sth-consistency", Method: http.MethodGet},
	}
	if n.checker != nil {
		ph[prefix+"/get-roots"] = AppHandler{Node: n, Handler: getRoots, Name: "get-roots", Method: http.MethodGet}
	}
	if n.frontend != nil && n.cfg.AcceptCertificates {
		ph[prefix+"/add-chain"] = AppHandler{Node: n, Handler: addChain, Name: "add-chain", Method: http.MethodPost}
		ph[prefix+"/add-pre-chain"] = AppHandler{Node: n, Handler: addPreChain, Name: "add-pre-chain", Method: http.MethodPost}
	}
	if n.frontend != nil && n.cfg.AcceptSignedData {
		ph[prefix+"/add-signed-data"] = AppHandler{Node: n, Handler: addSignedData, Name: "add-signed-data", Method: http.MethodPost}
	}
	return ph
}
