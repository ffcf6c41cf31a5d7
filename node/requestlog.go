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

	"github.com/tomasen/realip"
	"k8s.io/klog/v2"
)

// RequestLog records per-request details for audit purposes. Start is
// called as soon as a request is dispatched and returns the context the
// handler runs under; Status is called once the response code is known.
type RequestLog interface {
	Start(ctx context.Context, endpoint string, r *http.Request) context.Context
	Status(ctx context.Context, statusCode int)
}

type logContextKey string

const requestLogKey = logContextKey("lognode/requestlog")

type requestLogEntry struct {
	endpoint string
	origin   string
}

// DefaultRequestLog writes request summaries to klog at high verbosity,
// with the client address recovered from forwarding headers.
type DefaultRequestLog struct{}

// Start implements RequestLog.
func (l *DefaultRequestLog) Start(ctx context.Context, endpoint string, r *http.Request) context.Context {
	e := &requestLogEntry{endpoint: endpoint, origin: realip.FromRequest(r)}
	klog.V(3).Infof("request: %s from %s", e.endpoint, e.origin)
	return context.WithValue(ctx, requestLogKey, e)
}

// Status implements RequestLog.
func (l *DefaultRequestLog) Status(ctx context.Context, statusCode int) {
	e, ok := ctx.Value(requestLogKey).(*requestLogEntry)
	if !ok {
		return
	}
	klog.V(3).Infof("request: %s from %s = %d", e.endpoint, e.origin, statusCode)
}
