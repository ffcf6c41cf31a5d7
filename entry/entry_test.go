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

package entry

import (
	"bytes"
	"crypto/sha256"
	"testing"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
	"github.com/google/go-cmp/cmp"
)

func x509Entry(leaf string, chain ...string) *LogEntry {
	e := &LogEntry{
		Type: ct.X509LogEntryType,
		X509: &X509ChainEntry{LeafCertificate: ct.ASN1Cert{Data: []byte(leaf)}},
	}
	for _, c := range chain {
		e.X509.CertificateChain = append(e.X509.CertificateChain, ct.ASN1Cert{Data: []byte(c)})
	}
	return e
}

func precertEntry() *LogEntry {
	return &LogEntry{
		Type: ct.PrecertLogEntryType,
		Precert: &PrecertChainEntry{
			PreCert: ct.PreCert{
				IssuerKeyHash:  sha256.Sum256([]byte("issuer spki")),
				TBSCertificate: []byte("tbs bytes"),
			},
			PreCertificate:      ct.ASN1Cert{Data: []byte("precert der")},
			PrecertificateChain: []ct.ASN1Cert{{Data: []byte("issuer der")}},
		},
	}
}

func signedDataEntry() *LogEntry {
	return &LogEntry{
		Type: SignedDataLogEntryType,
		SignedData: &SignedDataEntry{
			KeyID: bytes.Repeat([]byte{0x42}, sha256.Size),
			Data:  []byte("signed payload"),
			Signature: tls.DigitallySigned{
				Algorithm: tls.SignatureAndHashAlgorithm{Hash: tls.SHA256, Signature: tls.ECDSA},
				Signature: []byte("sig bytes"),
			},
		},
	}
}

func TestCheck(t *testing.T) {
	for _, test := range []struct {
		name    string
		entry   *LogEntry
		wantErr bool
	}{
		{name: "x509 ok", entry: x509Entry("leaf")},
		{name: "precert ok", entry: precertEntry()},
		{name: "signed data ok", entry: signedDataEntry()},
		{
			name:    "type mismatch",
			entry:   &LogEntry{Type: ct.PrecertLogEntryType, X509: &X509ChainEntry{}},
			wantErr: true,
		},
		{
			name: "two payloads",
			entry: &LogEntry{
				Type:    ct.X509LogEntryType,
				X509:    &X509ChainEntry{},
				Precert: &PrecertChainEntry{},
			},
			wantErr: true,
		},
		{name: "no payload", entry: &LogEntry{Type: ct.X509LogEntryType}, wantErr: true},
		{name: "unknown type", entry: &LogEntry{Type: 99}, wantErr: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := test.entry.Check()
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Errorf("Check()=%v, wantErr %v", err, test.wantErr)
			}
		})
	}
}

func TestSerializeForLeafX509(t *testing.T) {
	e := x509Entry("leaf der", "issuer der")
	got, err := SerializeForLeaf(e, 1469185273000, nil)
	if err != nil {
		t.Fatalf("SerializeForLeaf()=%v", err)
	}
	// The X.509 arm of the leaf matches RFC 6962 exactly, so the stock
	// MerkleTreeLeaf type must parse it.
	var leaf ct.MerkleTreeLeaf
	rest, err := tls.Unmarshal(got, &leaf)
	if err != nil {
		t.Fatalf("failed to parse leaf input: %v", err)
	}
	if len(rest) > 0 {
		t.Errorf("leaf input has %d trailing bytes", len(rest))
	}
	if leaf.Version != ct.V1 || leaf.LeafType != ct.TimestampedEntryLeafType {
		t.Errorf("leaf header=(%v, %v), want (%v, %v)", leaf.Version, leaf.LeafType, ct.V1, ct.TimestampedEntryLeafType)
	}
	te := leaf.TimestampedEntry
	if te == nil {
		t.Fatal("leaf has no timestamped entry")
	}
	if te.Timestamp != 1469185273000 {
		t.Errorf("timestamp=%d, want 1469185273000", te.Timestamp)
	}
	if te.EntryType != ct.X509LogEntryType {
		t.Errorf("entry type=%v, want %v", te.EntryType, ct.X509LogEntryType)
	}
	if te.X509Entry == nil || !bytes.Equal(te.X509Entry.Data, []byte("leaf der")) {
		t.Errorf("leaf certificate=%v, want %q", te.X509Entry, "leaf der")
	}
}

func TestSerializeForLeafPrecert(t *testing.T) {
	e := precertEntry()
	got, err := SerializeForLeaf(e, 42, ct.CTExtensions("ext"))
	if err != nil {
		t.Fatalf("SerializeForLeaf()=%v", err)
	}
	var leaf ct.MerkleTreeLeaf
	if _, err := tls.Unmarshal(got, &leaf); err != nil {
		t.Fatalf("failed to parse leaf input: %v", err)
	}
	te := leaf.TimestampedEntry
	if te == nil || te.PrecertEntry == nil {
		t.Fatal("leaf has no precert entry")
	}
	if diff := cmp.Diff(e.Precert.PreCert, *te.PrecertEntry); diff != "" {
		t.Errorf("precert entry diff (-want +got):\n%s", diff)
	}
	if !bytes.Equal(te.Extensions, []byte("ext")) {
		t.Errorf("extensions=%q, want %q", te.Extensions, "ext")
	}
}

func TestSerializeForLeafSignedDataOmitsSignature(t *testing.T) {
	e := signedDataEntry()
	got, err := SerializeForLeaf(e, 42, nil)
	if err != nil {
		t.Fatalf("SerializeForLeaf()=%v", err)
	}
	var leaf merkleTreeLeaf
	rest, err := tls.Unmarshal(got, &leaf)
	if err != nil {
		t.Fatalf("failed to parse leaf input: %v", err)
	}
	if len(rest) > 0 {
		t.Errorf("leaf input has %d trailing bytes", len(rest))
	}
	sd := leaf.TimestampedEntry.SignedDataEntry
	if sd == nil {
		t.Fatal("leaf has no signed data entry")
	}
	if !bytes.Equal(sd.KeyID, e.SignedData.KeyID) || !bytes.Equal(sd.Data, e.SignedData.Data) {
		t.Errorf("signed data=(%x, %q), want (%x, %q)", sd.KeyID, sd.Data, e.SignedData.KeyID, e.SignedData.Data)
	}
	// The leaf commits to what was signed, never to the signature.
	if bytes.Contains(got, e.SignedData.Signature.Signature) {
		t.Error("leaf input contains the signature bytes")
	}
}

func TestSerializeForLeafRejectsBadEntry(t *testing.T) {
	e := &LogEntry{Type: ct.X509LogEntryType}
	if _, err := SerializeForLeaf(e, 1, nil); err == nil {
		t.Error("SerializeForLeaf() on inconsistent entry=nil, want error")
	}
}

func TestSerializeExtraData(t *testing.T) {
	t.Run("x509 chain only", func(t *testing.T) {
		e := x509Entry("leaf der", "issuer der", "root der")
		got, err := SerializeExtraData(e)
		if err != nil {
			t.Fatalf("SerializeExtraData()=%v", err)
		}
		var chain ct.CertificateChain
		if _, err := tls.Unmarshal(got, &chain); err != nil {
			t.Fatalf("failed to parse extra data: %v", err)
		}
		if diff := cmp.Diff(e.X509.CertificateChain, chain.Entries); diff != "" {
			t.Errorf("chain diff (-want +got):\n%s", diff)
		}
		// The leaf is already committed to by the leaf input.
		for _, c := range chain.Entries {
			if bytes.Equal(c.Data, []byte("leaf der")) {
				t.Error("extra data repeats the leaf certificate")
			}
		}
	})
	t.Run("precert includes submitted leaf", func(t *testing.T) {
		e := precertEntry()
		got, err := SerializeExtraData(e)
		if err != nil {
			t.Fatalf("SerializeExtraData()=%v", err)
		}
		var pce ct.PrecertChainEntry
		if _, err := tls.Unmarshal(got, &pce); err != nil {
			t.Fatalf("failed to parse extra data: %v", err)
		}
		if !bytes.Equal(pce.PreCertificate.Data, e.Precert.PreCertificate.Data) {
			t.Errorf("pre certificate=%q, want %q", pce.PreCertificate.Data, e.Precert.PreCertificate.Data)
		}
		if diff := cmp.Diff(e.Precert.PrecertificateChain, pce.CertificateChain); diff != "" {
			t.Errorf("chain diff (-want +got):\n%s", diff)
		}
	})
	t.Run("signed data carries signature", func(t *testing.T) {
		e := signedDataEntry()
		got, err := SerializeExtraData(e)
		if err != nil {
			t.Fatalf("SerializeExtraData()=%v", err)
		}
		var sig tls.DigitallySigned
		if _, err := tls.Unmarshal(got, &sig); err != nil {
			t.Fatalf("failed to parse extra data: %v", err)
		}
		if diff := cmp.Diff(e.SignedData.Signature, sig); diff != "" {
			t.Errorf("signature diff (-want +got):\n%s", diff)
		}
	})
}

func TestLeafHash(t *testing.T) {
	leafInput := []byte("some leaf input")
	want := sha256.Sum256(append([]byte{0x00}, leafInput...))
	if got := LeafHash(leafInput); !bytes.Equal(got, want[:]) {
		t.Errorf("LeafHash()=%x, want %x", got, want)
	}
}
