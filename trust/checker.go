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

// Package trust implements a reference CertChecker backed by a PEM root
// pool and a registry of signed-data verification keys.
package trust

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	stdx509 "crypto/x509"
	"sync"

	"github.com/google/certificate-transparency-go/tls"
	"github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509util"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"github.com/cert-trans/lognode/submission"
)

// asn1Null is the DER encoding of the mandatory NULL value of the precert
// poison extension.
var asn1Null = []byte{0x05, 0x00}

// Checker validates submissions against a configured set of trust anchors
// and signed-data keys. All mutation happens during startup; once serving
// begins the Checker is read-only and safe for concurrent use.
type Checker struct {
	mu    sync.RWMutex
	roots *x509util.PEMCertPool
	keys  map[[sha256.Size]byte]crypto.PublicKey
}

// New returns an empty Checker. Roots and keys are added before serving
// via AddRootsFromPEMFile and AddSignedDataKey.
func New() *Checker {
	return &Checker{
		roots: x509util.NewPEMCertPool(),
		keys:  make(map[[sha256.Size]byte]crypto.PublicKey),
	}
}

// AddRootsFromPEMFile loads every certificate in the named PEM file into
// the trust anchor set.
func (c *Checker) AddRootsFromPEMFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.roots.AppendCertsFromPEMFile(path); err != nil {
		return err
	}
	klog.V(1).Infof("loaded trust anchors from %s, pool now has %d roots", path, len(c.roots.RawCertificates()))
	return nil
}

// AddSignedDataKey registers pub for signed-data verification. The key is
// addressed by the SHA-256 of its DER SubjectPublicKeyInfo.
func (c *Checker) AddSignedDataKey(pub crypto.PublicKey) error {
	spki, err := stdx509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[sha256.Sum256(spki)] = pub
	return nil
}

// CheckCertChain validates that chain is an ordered leaf-first path ending
// at or just below a trust anchor. When the submitted chain stops one
// certificate short of a root, the issuing root is appended from the pool
// and the extended chain is returned.
func (c *Checker) CheckCertChain(chain []*x509.Certificate) ([]*x509.Certificate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buildPathToRoot(chain)
}

// CheckPreCertChain validates a precertificate chain and computes the
// canonical issuer key hash and TBS bytes per RFC 6962 s3.2. The leaf must
// carry the critical poison extension with a NULL value. A precert signing
// CA at position 1 (marked by the CT extended key usage) shifts the issuer
// to position 2 and triggers issuer and AKID rewriting in the TBS.
func (c *Checker) CheckPreCertChain(chain []*x509.Certificate) (*submission.PreCertData, error) {
	if len(chain) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty submission")
	}
	leaf := chain[0]
	isPre, err := isPrecertificate(leaf)
	if err != nil {
		return nil, err
	}
	if !isPre {
		return nil, status.Error(codes.InvalidArgument, "submission is not a precertificate")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	chain, err = c.buildPathToRoot(chain)
	if err != nil {
		return nil, err
	}
	if len(chain) < 2 {
		return nil, status.Error(codes.InvalidArgument, "precertificate lacks an issuer")
	}

	issuerIdx := 1
	var preIssuer *x509.Certificate
	if isPrecertSigningCA(chain[1]) {
		if len(chain) < 3 {
			return nil, status.Error(codes.InvalidArgument, "precert signing CA lacks its own issuer")
		}
		preIssuer = chain[1]
		issuerIdx = 2
	}

	var tbs []byte
	if preIssuer != nil {
		tbs, err = x509.BuildPrecertTBS(leaf.RawTBSCertificate, preIssuer)
	} else {
		tbs, err = x509.RemoveCTPoison(leaf.RawTBSCertificate)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to reconstruct TBS: %v", err)
	}
	return &submission.PreCertData{
		Chain:          chain,
		IssuerKeyHash:  sha256.Sum256(chain[issuerIdx].RawSubjectPublicKeyInfo),
		TBSCertificate: tbs,
	}, nil
}

// CheckSignedData verifies sd.Signature over sd.Data with the registered
// key named by sd.KeyID.
func (c *Checker) CheckSignedData(sd *submission.SignedData) error {
	if len(sd.KeyID) != sha256.Size {
		return status.Errorf(codes.InvalidArgument, "keyid has %d bytes, want %d", len(sd.KeyID), sha256.Size)
	}
	var id [sha256.Size]byte
	copy(id[:], sd.KeyID)

	c.mu.RLock()
	pub, ok := c.keys[id]
	c.mu.RUnlock()
	if !ok {
		return status.Error(codes.InvalidArgument, "unknown keyid")
	}
	if err := tls.VerifySignature(pub, sd.Data, sd.Signature); err != nil {
		return status.Errorf(codes.InvalidArgument, "signature verification failed: %v", err)
	}
	return nil
}

// GetTrustedCertificates returns the trust anchors.
func (c *Checker) GetTrustedCertificates() []*x509.Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roots.RawCertificates()
}

// buildPathToRoot checks the leaf-first signature ordering of chain and
// anchors it in the root pool, appending the issuing root when the
// submission stops one short of it. Callers hold c.mu.
func (c *Checker) buildPathToRoot(chain []*x509.Certificate) ([]*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty submission")
	}
	for i := 0; i+1 < len(chain); i++ {
		if err := chain[i].CheckSignatureFrom(chain[i+1]); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "certificate %d is not signed by certificate %d: %v", i, i+1, err)
		}
	}
	last := chain[len(chain)-1]
	if c.roots.Included(last) {
		return chain, nil
	}
	if root := c.findIssuingRoot(last); root != nil {
		return append(chain, root), nil
	}
	return nil, status.Error(codes.InvalidArgument, "chain does not end at a trusted root")
}

// findIssuingRoot returns a pool certificate that issued cert, or nil.
func (c *Checker) findIssuingRoot(cert *x509.Certificate) *x509.Certificate {
	for _, root := range c.roots.RawCertificates() {
		if !bytes.Equal(cert.RawIssuer, root.RawSubject) {
			continue
		}
		if err := cert.CheckSignatureFrom(root); err == nil {
			return root
		}
	}
	return nil
}

// isPrecertificate reports whether cert carries a well-formed poison
// extension: present, critical, value exactly an ASN.1 NULL. A malformed
// poison is an error, never a guess.
func isPrecertificate(cert *x509.Certificate) (bool, error) {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(x509.OIDExtensionCTPoison) {
			continue
		}
		if !ext.Critical {
			return false, status.Error(codes.InvalidArgument, "poison extension is not critical")
		}
		if !bytes.Equal(ext.Value, asn1Null) {
			return false, status.Error(codes.InvalidArgument, "poison extension is not NULL")
		}
		return true, nil
	}
	return false, nil
}

// isPrecertSigningCA reports whether cert is a CA certificate holding the
// Certificate Transparency extended key usage.
func isPrecertSigningCA(cert *x509.Certificate) bool {
	if !cert.IsCA {
		return false
	}
	for _, eku := range cert.ExtKeyUsage {
		if eku == x509.ExtKeyUsageCertificateTransparency {
			return true
		}
	}
	return false
}
