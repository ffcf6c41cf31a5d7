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
	"encoding/json"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

const contentTypeJSON = "application/json"

type errorResponse struct {
	ErrorMessage string `json:"error_message"`
	Success      bool   `json:"success"`
}

// sendJSONReply writes v as the JSON response body with the given status
// code.
func sendJSONReply(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("failed to write response body: %v", err)
	}
}

// sendError writes the uniform error envelope for err with the given HTTP
// status. The message is the gRPC status message, which carries the
// user-visible phrasing decided by the handler.
func sendError(w http.ResponseWriter, statusCode int, err error) {
	sendErrorMessage(w, statusCode, status.Convert(err).Message())
}

func sendErrorMessage(w http.ResponseWriter, statusCode int, msg string) {
	sendJSONReply(w, statusCode, errorResponse{ErrorMessage: msg, Success: false})
}

// httpStatusForError maps the error taxonomy used at the core boundary to
// HTTP status codes. AlreadyExists never reaches here: the write handlers
// turn it into a 200 carrying the original SCT.
func httpStatusForError(err error) int {
	switch status.Code(err) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.NotFound:
		return http.StatusBadRequest
	case codes.ResourceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
