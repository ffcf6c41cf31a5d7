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
	"encoding/json"
	"net/http"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
	"github.com/google/certificate-transparency-go/x509"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cert-trans/lognode/submission"
)

func addChain(ctx context.Context, n *Node, w http.ResponseWriter, r *http.Request) (int, error) {
	return addChainInternal(ctx, n, w, r, false)
}

func addPreChain(ctx context.Context, n *Node, w http.ResponseWriter, r *http.Request) (int, error) {
	return addChainInternal(ctx, n, w, r, true)
}

func addChainInternal(ctx context.Context, n *Node, w http.ResponseWriter, r *http.Request, isPrecert bool) (int, error) {
	chain, err := parseBodyAsChain(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	// Queueing blocks on the sequencer, so it runs on the pool.
	var sct *ct.SignedCertificateTimestamp
	var queueErr error
	if err := n.offload(ctx, func() {
		if isPrecert {
			sct, queueErr = n.frontend.QueuePreCertEntry(ctx, chain)
		} else {
			sct, queueErr = n.frontend.QueueX509Entry(ctx, chain)
		}
	}); err != nil {
		return http.StatusServiceUnavailable, status.Errorf(codes.ResourceExhausted, "node overloaded: %v", err)
	}
	return sendAddReply(w, sct, queueErr)
}

func addSignedData(ctx context.Context, n *Node, w http.ResponseWriter, r *http.Request) (int, error) {
	sd, err := parseBodyAsSignedData(r)
	if err != nil {
		return http.StatusBadRequest, err
	}

	var sct *ct.SignedCertificateTimestamp
	var queueErr error
	if err := n.offload(ctx, func() {
		sct, queueErr = n.frontend.QueueSignedDataEntry(ctx, sd)
	}); err != nil {
		return http.StatusServiceUnavailable, status.Errorf(codes.ResourceExhausted, "node overloaded: %v", err)
	}
	return sendAddReply(w, sct, queueErr)
}

// sendAddReply translates the sequencer's verdict into the add-* response.
// A duplicate submission still succeeds: the sequencer reports
// AlreadyExists and hands back the SCT issued for the first copy.
func sendAddReply(w http.ResponseWriter, sct *ct.SignedCertificateTimestamp, queueErr error) (int, error) {
	if queueErr != nil && status.Code(queueErr) != codes.AlreadyExists {
		return httpStatusForError(queueErr), queueErr
	}
	if sct == nil {
		return http.StatusInternalServerError, status.Error(codes.Internal, "sequencer returned no SCT")
	}
	sig, err := tls.Marshal(sct.Signature)
	if err != nil {
		return http.StatusInternalServerError, status.Errorf(codes.Internal, "failed to serialize SCT signature: %v", err)
	}
	sendJSONReply(w, http.StatusOK, ct.AddChainResponse{
		SCTVersion: sct.SCTVersion,
		ID:         sct.LogID.KeyID[:],
		Timestamp:  sct.Timestamp,
		Extensions: base64.StdEncoding.EncodeToString(sct.Extensions),
		Signature:  sig,
	})
	return http.StatusOK, nil
}

// parseBodyAsChain decodes an add-chain or add-pre-chain body into parsed
// certificates. Every element must parse; precert poison extensions are
// tolerated by the CT X.509 fork.
func parseBodyAsChain(r *http.Request) ([]*x509.Certificate, error) {
	var req ct.AddChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to parse request body: %v", err)
	}
	if len(req.Chain) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty submission")
	}
	chain := make([]*x509.Certificate, 0, len(req.Chain))
	for i, der := range req.Chain {
		cert, err := x509.ParseCertificate(der)
		if x509.IsFatal(err) {
			return nil, status.Errorf(codes.InvalidArgument, "failed to parse certificate %d in chain: %v", i, err)
		}
		chain = append(chain, cert)
	}
	return chain, nil
}

type addSignedDataRequest struct {
	KeyID     []byte `json:"keyid"`
	Data      []byte `json:"data"`
	Signature []byte `json:"signature"`
}

// parseBodyAsSignedData decodes an add-signed-data body. The signature
// field carries a TLS DigitallySigned structure.
func parseBodyAsSignedData(r *http.Request) (*submission.SignedData, error) {
	var req addSignedDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to parse request body: %v", err)
	}
	var sig tls.DigitallySigned
	rest, err := tls.Unmarshal(req.Signature, &sig)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to parse signature: %v", err)
	}
	if len(rest) > 0 {
		return nil, status.Errorf(codes.InvalidArgument, "trailing data after signature: %d bytes", len(rest))
	}
	return &submission.SignedData{
		KeyID:     req.KeyID,
		Data:      req.Data,
		Signature: sig,
	}, nil
}
