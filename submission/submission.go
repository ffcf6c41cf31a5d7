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

// Package submission turns raw submissions (certificate chains,
// precertificate chains, signed blobs) into canonical log entry records.
//
// Trust decisions are delegated to a CertChecker; this package owns the
// byte-level canonicalization, in particular reconstructing the TBS form
// of a certificate carrying an embedded SCT list.
package submission

import (
	"crypto/sha256"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
	"github.com/google/certificate-transparency-go/x509"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cert-trans/lognode/entry"
)

// SignedData is a signed blob submission: an opaque payload, the identifier
// of the key that signed it (the SHA-256 of the key's SubjectPublicKeyInfo),
// and a TLS DigitallySigned signature over the payload.
type SignedData struct {
	KeyID     []byte
	Data      []byte
	Signature tls.DigitallySigned
}

// PreCertData is the canonical precertificate material a CertChecker
// computes while validating a precert chain.
type PreCertData struct {
	// Chain is the validated chain, possibly extended with the trust
	// store issuer.
	Chain []*x509.Certificate
	// IssuerKeyHash is the SHA-256 of the SubjectPublicKeyInfo of the
	// final certificate issuer.
	IssuerKeyHash [sha256.Size]byte
	// TBSCertificate is the DER TBSCertificate of the leaf with the
	// poison removed and, for pre-issued precerts, the issuer rewritten.
	TBSCertificate []byte
}

// CertChecker validates submissions against a trust anchor set. Checkers
// own the trust roots; callers borrow them read-only via
// GetTrustedCertificates.
type CertChecker interface {
	// CheckCertChain validates an ordered leaf-first chain and returns
	// it, possibly extended with the issuing root from the trust store.
	// The caller must not retain the argument slice.
	CheckCertChain(chain []*x509.Certificate) ([]*x509.Certificate, error)

	// CheckPreCertChain validates a precertificate chain and computes
	// its canonical issuer key hash and TBS bytes.
	CheckPreCertChain(chain []*x509.Certificate) (*PreCertData, error)

	// CheckSignedData verifies sd.Signature over sd.Data with the
	// configured key named by sd.KeyID.
	CheckSignedData(sd *SignedData) error

	// GetTrustedCertificates returns the accepted trust anchors.
	GetTrustedCertificates() []*x509.Certificate
}

// ProcessX509Submission validates chain with checker and renders it as an
// X.509 log entry. The DER of every submitted certificate is preserved
// verbatim, order preserved.
func ProcessX509Submission(checker CertChecker, chain []*x509.Certificate) (*entry.LogEntry, error) {
	if len(chain) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty submission")
	}
	chain, err := checker.CheckCertChain(chain)
	if err != nil {
		return nil, err
	}
	e := &entry.LogEntry{
		Type: ct.X509LogEntryType,
		X509: &entry.X509ChainEntry{},
	}
	leaf, err := derBytes(chain[0])
	if err != nil {
		return nil, err
	}
	e.X509.LeafCertificate = ct.ASN1Cert{Data: leaf}
	for _, c := range chain[1:] {
		der, err := derBytes(c)
		if err != nil {
			return nil, err
		}
		e.X509.CertificateChain = append(e.X509.CertificateChain, ct.ASN1Cert{Data: der})
	}
	return e, nil
}

// ProcessPreCertSubmission validates a precertificate chain with checker
// and renders it as a precert log entry carrying the canonical issuer key
// hash and TBS bytes alongside the leaf as submitted.
func ProcessPreCertSubmission(checker CertChecker, chain []*x509.Certificate) (*entry.LogEntry, error) {
	if len(chain) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty submission")
	}
	pre, err := checker.CheckPreCertChain(chain)
	if err != nil {
		return nil, err
	}
	leaf, err := derBytes(pre.Chain[0])
	if err != nil {
		return nil, err
	}
	e := &entry.LogEntry{
		Type: ct.PrecertLogEntryType,
		Precert: &entry.PrecertChainEntry{
			PreCert: ct.PreCert{
				IssuerKeyHash:  pre.IssuerKeyHash,
				TBSCertificate: pre.TBSCertificate,
			},
			PreCertificate: ct.ASN1Cert{Data: leaf},
		},
	}
	for _, c := range pre.Chain[1:] {
		der, err := derBytes(c)
		if err != nil {
			return nil, err
		}
		e.Precert.PrecertificateChain = append(e.Precert.PrecertificateChain, ct.ASN1Cert{Data: der})
	}
	return e, nil
}

// ProcessSignedDataSubmission verifies sd with checker and renders it as a
// signed-data log entry. KeyID, data and signature are copied verbatim.
func ProcessSignedDataSubmission(checker CertChecker, sd *SignedData) (*entry.LogEntry, error) {
	if sd == nil || len(sd.Data) == 0 && len(sd.KeyID) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty submission")
	}
	if err := checker.CheckSignedData(sd); err != nil {
		return nil, err
	}
	return &entry.LogEntry{
		Type: entry.SignedDataLogEntryType,
		SignedData: &entry.SignedDataEntry{
			KeyID:     append([]byte(nil), sd.KeyID...),
			Data:      append([]byte(nil), sd.Data...),
			Signature: sd.Signature,
		},
	}, nil
}

// X509ChainToEntry converts an observed chain to the log entry its SCT was
// issued over, without any trust check. A leaf carrying the embedded SCT
// list is treated as the final certificate of a precert submission: the
// entry becomes a precert entry whose TBS has that extension stripped and
// whose issuer key hash names chain position 1.
func X509ChainToEntry(chain []*x509.Certificate) (*entry.LogEntry, error) {
	if len(chain) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty chain")
	}
	leaf := chain[0]
	embedded, err := hasEmbeddedSCTList(leaf)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	if !embedded {
		der, err := derBytes(leaf)
		if err != nil {
			return nil, err
		}
		return &entry.LogEntry{
			Type: ct.X509LogEntryType,
			X509: &entry.X509ChainEntry{LeafCertificate: ct.ASN1Cert{Data: der}},
		}, nil
	}
	if len(chain) < 2 {
		return nil, status.Error(codes.InvalidArgument, "chain with embedded SCTs lacks an issuer")
	}
	tbs, err := serializedTBS(leaf)
	if err != nil {
		return nil, err
	}
	return &entry.LogEntry{
		Type: ct.PrecertLogEntryType,
		Precert: &entry.PrecertChainEntry{
			PreCert: ct.PreCert{
				IssuerKeyHash:  sha256.Sum256(chain[1].RawSubjectPublicKeyInfo),
				TBSCertificate: tbs,
			},
		},
	}, nil
}

// serializedTBS returns the DER TBSCertificate of cert with the embedded
// SCT list extension removed if present. All other fields are preserved
// bit-for-bit, so a certificate without the extension round-trips
// unchanged.
func serializedTBS(cert *x509.Certificate) ([]byte, error) {
	embedded, err := hasEmbeddedSCTList(cert)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	if !embedded {
		if len(cert.RawTBSCertificate) == 0 {
			return nil, status.Error(codes.Internal, "certificate has no TBS bytes")
		}
		return cert.RawTBSCertificate, nil
	}
	tbs, err := x509.RemoveSCTList(cert.RawTBSCertificate)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to strip SCT list: %v", err)
	}
	return tbs, nil
}

// hasEmbeddedSCTList reports whether cert carries the embedded SCT list
// extension. A certificate with no DER bytes is rejected rather than
// guessed about.
func hasEmbeddedSCTList(cert *x509.Certificate) (bool, error) {
	if cert == nil || len(cert.Raw) == 0 {
		return false, status.Error(codes.InvalidArgument, "certificate has no DER bytes")
	}
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(x509.OIDExtensionCTSCT) {
			return true, nil
		}
	}
	return false, nil
}

// derBytes returns the DER encoding of an already-validated certificate.
// A missing encoding at this point is an internal error, not a caller
// mistake.
func derBytes(cert *x509.Certificate) ([]byte, error) {
	if cert == nil || len(cert.Raw) == 0 {
		return nil, status.Error(codes.Internal, "certificate has no DER encoding")
	}
	return cert.Raw, nil
}
