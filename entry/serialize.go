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
	"fmt"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
	"github.com/transparency-dev/merkle/rfc6962"
)

// signedData is the timestamped-entry payload for a signed blob. The
// signature is deliberately absent: it is served as extra data so that the
// leaf commits only to what was signed.
type signedData struct {
	KeyID []byte `tls:"minlen:0,maxlen:255"`
	Data  []byte `tls:"minlen:0,maxlen:16777215"`
}

// timestampedEntry extends the RFC 6962 TimestampedEntry union with the
// signed-data arm.
type timestampedEntry struct {
	Timestamp  uint64
	EntryType  ct.LogEntryType `tls:"maxval:65535"`
	X509Entry  *ct.ASN1Cert    `tls:"selector:EntryType,val:0"`
	PrecertEntry *ct.PreCert   `tls:"selector:EntryType,val:1"`
	SignedDataEntry *signedData `tls:"selector:EntryType,val:32769"`
	Extensions ct.CTExtensions `tls:"minlen:0,maxlen:65535"`
}

// merkleTreeLeaf is the RFC 6962 MerkleTreeLeaf structure over the extended
// timestampedEntry union.
type merkleTreeLeaf struct {
	Version          ct.Version        `tls:"maxval:255"`
	LeafType         ct.MerkleLeafType `tls:"maxval:255"`
	TimestampedEntry *timestampedEntry `tls:"selector:LeafType,val:0"`
}

// SerializeForLeaf renders the Merkle leaf input for e: the MerkleTreeLeaf
// structure carrying a v1 timestamped entry with the given timestamp and
// extensions. The output must be byte-exact; any verifier recomputes it
// independently.
func SerializeForLeaf(e *LogEntry, timestamp uint64, extensions ct.CTExtensions) ([]byte, error) {
	if err := e.Check(); err != nil {
		return nil, err
	}
	te := timestampedEntry{
		Timestamp:  timestamp,
		EntryType:  e.Type,
		Extensions: extensions,
	}
	switch e.Type {
	case ct.X509LogEntryType:
		te.X509Entry = &e.X509.LeafCertificate
	case ct.PrecertLogEntryType:
		te.PrecertEntry = &e.Precert.PreCert
	case SignedDataLogEntryType:
		te.SignedDataEntry = &signedData{KeyID: e.SignedData.KeyID, Data: e.SignedData.Data}
	}
	leaf := merkleTreeLeaf{
		Version:          ct.V1,
		LeafType:         ct.TimestampedEntryLeafType,
		TimestampedEntry: &te,
	}
	b, err := tls.Marshal(leaf)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize leaf: %v", err)
	}
	return b, nil
}

// SerializeExtraData renders the out-of-band bytes for e: the issuer chain
// for an X.509 entry, the submitted precertificate plus its chain for a
// precert entry, and the signature for a signed-data entry.
func SerializeExtraData(e *LogEntry) ([]byte, error) {
	if err := e.Check(); err != nil {
		return nil, err
	}
	var v interface{}
	switch e.Type {
	case ct.X509LogEntryType:
		v = ct.CertificateChain{Entries: e.X509.CertificateChain}
	case ct.PrecertLogEntryType:
		v = ct.PrecertChainEntry{
			PreCertificate:   e.Precert.PreCertificate,
			CertificateChain: e.Precert.PrecertificateChain,
		}
	case SignedDataLogEntryType:
		v = e.SignedData.Signature
	}
	b, err := tls.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize extra data: %v", err)
	}
	return b, nil
}

// SerializeSCT renders the wire form of sct.
func SerializeSCT(sct ct.SignedCertificateTimestamp) ([]byte, error) {
	return tls.Marshal(sct)
}

// LeafHash returns the RFC 6962 Merkle leaf hash of a serialized leaf
// input.
func LeafHash(leafInput []byte) []byte {
	return rfc6962.DefaultHasher.HashLeaf(leafInput)
}
