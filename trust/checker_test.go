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

package trust

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	stdx509 "crypto/x509"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/certificate-transparency-go/tls"
	"github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509/pkix"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cert-trans/lognode/submission"
)

// certAuthority bundles a certificate with its signing key so tests can
// issue further certificates from it.
type certAuthority struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func newSerial() *big.Int {
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		panic(err)
	}
	return serial
}

func issue(t *testing.T, tmpl *x509.Certificate, parent *certAuthority) *certAuthority {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	signer := &certAuthority{cert: tmpl, key: key}
	if parent != nil {
		signer = parent
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, signer.cert, key.Public(), signer.key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if x509.IsFatal(err) {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	return &certAuthority{cert: cert, key: key}
}

func caTemplate(cn string) *x509.Certificate {
	return &x509.Certificate{
		SerialNumber:          newSerial(),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2036, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
}

func leafTemplate(cn string, extraExts ...pkix.Extension) *x509.Certificate {
	return &x509.Certificate{
		SerialNumber:    newSerial(),
		Subject:         pkix.Name{CommonName: cn},
		NotBefore:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:        time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:        x509.KeyUsageDigitalSignature,
		ExtraExtensions: extraExts,
	}
}

func poisonExtension(critical bool, value []byte) pkix.Extension {
	return pkix.Extension{Id: x509.OIDExtensionCTPoison, Critical: critical, Value: value}
}

// newChecker returns a Checker trusting the given roots, loaded through a
// PEM file the way production configuration does.
func newChecker(t *testing.T, roots ...*x509.Certificate) *Checker {
	t.Helper()
	var buf bytes.Buffer
	for _, root := range roots {
		if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: root.Raw}); err != nil {
			t.Fatalf("failed to encode root: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "roots.pem")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write roots file: %v", err)
	}
	c := New()
	if err := c.AddRootsFromPEMFile(path); err != nil {
		t.Fatalf("AddRootsFromPEMFile()=%v", err)
	}
	return c
}

func TestAddRootsFromPEMFile(t *testing.T) {
	root := issue(t, caTemplate("Root"), nil)
	c := newChecker(t, root.cert)
	if got := c.GetTrustedCertificates(); len(got) != 1 || !bytes.Equal(got[0].Raw, root.cert.Raw) {
		t.Errorf("GetTrustedCertificates()=%d certs, want the loaded root", len(got))
	}
	if err := New().AddRootsFromPEMFile(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("AddRootsFromPEMFile(missing)=nil, want error")
	}
}

func TestCheckCertChain(t *testing.T) {
	root := issue(t, caTemplate("Root"), nil)
	intermediate := issue(t, caTemplate("Intermediate"), root)
	leaf := issue(t, leafTemplate("leaf.example.com"), intermediate)
	otherRoot := issue(t, caTemplate("Other Root"), nil)
	otherLeaf := issue(t, leafTemplate("other.example.com"), otherRoot)
	c := newChecker(t, root.cert)

	for _, test := range []struct {
		name     string
		chain    []*x509.Certificate
		wantLen  int
		wantCode codes.Code
	}{
		{
			name:    "full chain",
			chain:   []*x509.Certificate{leaf.cert, intermediate.cert, root.cert},
			wantLen: 3,
		},
		{
			name:    "root appended",
			chain:   []*x509.Certificate{leaf.cert, intermediate.cert},
			wantLen: 3,
		},
		{
			name:    "leaf under root directly",
			chain:   []*x509.Certificate{issue(t, leafTemplate("direct.example.com"), root).cert},
			wantLen: 2,
		},
		{
			name:     "empty chain",
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "wrong order",
			chain:    []*x509.Certificate{intermediate.cert, leaf.cert},
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "untrusted root",
			chain:    []*x509.Certificate{otherLeaf.cert, otherRoot.cert},
			wantCode: codes.InvalidArgument,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := c.CheckCertChain(test.chain)
			if status.Code(err) != test.wantCode {
				t.Fatalf("CheckCertChain()=%v, want code %v", err, test.wantCode)
			}
			if err != nil {
				return
			}
			if len(got) != test.wantLen {
				t.Fatalf("CheckCertChain() returned %d certs, want %d", len(got), test.wantLen)
			}
			if !bytes.Equal(got[len(got)-1].Raw, root.cert.Raw) {
				t.Error("returned chain does not end at the trusted root")
			}
		})
	}
}

func TestCheckPreCertChain(t *testing.T) {
	root := issue(t, caTemplate("Root"), nil)
	intermediate := issue(t, caTemplate("Intermediate"), root)
	precert := issue(t, leafTemplate("precert.example.com", poisonExtension(true, []byte{0x05, 0x00})), intermediate)
	c := newChecker(t, root.cert)

	t.Run("valid precert", func(t *testing.T) {
		pre, err := c.CheckPreCertChain([]*x509.Certificate{precert.cert, intermediate.cert})
		if err != nil {
			t.Fatalf("CheckPreCertChain()=%v", err)
		}
		if len(pre.Chain) != 3 || !bytes.Equal(pre.Chain[2].Raw, root.cert.Raw) {
			t.Errorf("chain has %d certs, want 3 ending at the root", len(pre.Chain))
		}
		if want := sha256.Sum256(intermediate.cert.RawSubjectPublicKeyInfo); pre.IssuerKeyHash != want {
			t.Errorf("issuer key hash=%x, want hash of the intermediate key", pre.IssuerKeyHash)
		}
		parsed, err := x509.ParseTBSCertificate(pre.TBSCertificate)
		if x509.IsFatal(err) {
			t.Fatalf("failed to parse reconstructed TBS: %v", err)
		}
		for _, ext := range parsed.Extensions {
			if ext.Id.Equal(x509.OIDExtensionCTPoison) {
				t.Error("reconstructed TBS still carries the poison extension")
			}
		}
	})
	t.Run("not a precert", func(t *testing.T) {
		leaf := issue(t, leafTemplate("leaf.example.com"), intermediate)
		_, err := c.CheckPreCertChain([]*x509.Certificate{leaf.cert, intermediate.cert})
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("CheckPreCertChain(plain leaf)=%v, want InvalidArgument", err)
		}
	})
	t.Run("poison not critical", func(t *testing.T) {
		bad := issue(t, leafTemplate("bad.example.com", poisonExtension(false, []byte{0x05, 0x00})), intermediate)
		_, err := c.CheckPreCertChain([]*x509.Certificate{bad.cert, intermediate.cert})
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("CheckPreCertChain(non-critical poison)=%v, want InvalidArgument", err)
		}
	})
	t.Run("poison not NULL", func(t *testing.T) {
		bad := issue(t, leafTemplate("bad.example.com", poisonExtension(true, []byte{0x04, 0x00})), intermediate)
		_, err := c.CheckPreCertChain([]*x509.Certificate{bad.cert, intermediate.cert})
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("CheckPreCertChain(non-NULL poison)=%v, want InvalidArgument", err)
		}
	})
	t.Run("untrusted chain", func(t *testing.T) {
		_, err := c.CheckPreCertChain([]*x509.Certificate{precert.cert})
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("CheckPreCertChain(no issuer)=%v, want InvalidArgument", err)
		}
	})
}

func TestCheckPreCertChainWithSigningCA(t *testing.T) {
	root := issue(t, caTemplate("Root"), nil)
	signingTmpl := caTemplate("Precert Signing CA")
	signingTmpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageCertificateTransparency}
	signingCA := issue(t, signingTmpl, root)
	precert := issue(t, leafTemplate("precert.example.com", poisonExtension(true, []byte{0x05, 0x00})), signingCA)

	t.Run("issuer shifts past the signing CA", func(t *testing.T) {
		c := newChecker(t, root.cert)
		pre, err := c.CheckPreCertChain([]*x509.Certificate{precert.cert, signingCA.cert})
		if err != nil {
			t.Fatalf("CheckPreCertChain()=%v", err)
		}
		if want := sha256.Sum256(root.cert.RawSubjectPublicKeyInfo); pre.IssuerKeyHash != want {
			t.Errorf("issuer key hash=%x, want hash of the root key", pre.IssuerKeyHash)
		}
		parsed, err := x509.ParseTBSCertificate(pre.TBSCertificate)
		if x509.IsFatal(err) {
			t.Fatalf("failed to parse reconstructed TBS: %v", err)
		}
		// The TBS must read as issued by the signing CA's own issuer.
		if !bytes.Equal(parsed.RawIssuer, root.cert.RawSubject) {
			t.Error("reconstructed TBS issuer was not rewritten to the root")
		}
	})
	t.Run("signing CA without its own issuer", func(t *testing.T) {
		c := newChecker(t, signingCA.cert)
		_, err := c.CheckPreCertChain([]*x509.Certificate{precert.cert, signingCA.cert})
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("CheckPreCertChain()=%v, want InvalidArgument", err)
		}
	})
}

func TestCheckSignedData(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	spki, err := stdx509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		t.Fatalf("failed to serialize public key: %v", err)
	}
	keyID := sha256.Sum256(spki)

	c := New()
	if err := c.AddSignedDataKey(key.Public()); err != nil {
		t.Fatalf("AddSignedDataKey()=%v", err)
	}

	data := []byte("signed payload")
	sig, err := tls.CreateSignature(*key, tls.SHA256, data)
	if err != nil {
		t.Fatalf("failed to sign payload: %v", err)
	}

	for _, test := range []struct {
		name     string
		sd       *submission.SignedData
		wantCode codes.Code
	}{
		{
			name: "valid",
			sd:   &submission.SignedData{KeyID: keyID[:], Data: data, Signature: sig},
		},
		{
			name:     "short keyid",
			sd:       &submission.SignedData{KeyID: keyID[:8], Data: data, Signature: sig},
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "unknown keyid",
			sd:       &submission.SignedData{KeyID: bytes.Repeat([]byte{0xee}, sha256.Size), Data: data, Signature: sig},
			wantCode: codes.InvalidArgument,
		},
		{
			name:     "tampered payload",
			sd:       &submission.SignedData{KeyID: keyID[:], Data: []byte("tampered payload"), Signature: sig},
			wantCode: codes.InvalidArgument,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := c.CheckSignedData(test.sd)
			if status.Code(err) != test.wantCode {
				t.Errorf("CheckSignedData()=%v, want code %v", err, test.wantCode)
			}
		})
	}
}
