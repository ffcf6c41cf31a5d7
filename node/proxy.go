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
	"net/http"
	"net/http/httputil"
	"net/url"

	"k8s.io/klog/v2"
)

// ReverseProxy forwards requests to a peer node that is believed to hold
// the cluster's committed view.
type ReverseProxy struct {
	peer    *url.URL
	backend *httputil.ReverseProxy
}

// NewReverseProxy returns a Proxy targeting peer.
func NewReverseProxy(peer *url.URL) *ReverseProxy {
	rp := httputil.NewSingleHostReverseProxy(peer)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		klog.Warningf("proxying %s to %s failed: %v", r.URL.Path, peer, err)
		sendErrorMessage(w, http.StatusBadGateway, "peer unavailable")
	}
	return &ReverseProxy{peer: peer, backend: rp}
}

// ProxyRequest implements Proxy. It blocks on the outbound exchange and
// is therefore always invoked from the worker pool.
func (p *ReverseProxy) ProxyRequest(w http.ResponseWriter, r *http.Request) {
	klog.V(2).Infof("proxying %s to %s", r.URL.Path, p.peer)
	p.backend.ServeHTTP(w, r)
}
