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

// Package entry defines the canonical log entry record and its RFC 6962
// wire serializations.
package entry

import (
	"fmt"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/tls"
)

// SignedDataLogEntryType marks entries carrying an arbitrary signed blob
// rather than a certificate. The value sits in the same experimental range
// RFC 6962 implementations use for non-X.509 payloads.
const SignedDataLogEntryType ct.LogEntryType = 0x8001

// X509ChainEntry holds an accepted certificate submission: the leaf followed
// by its issuers, in submission order, up to (not necessarily including) a
// trusted root.
type X509ChainEntry struct {
	LeafCertificate  ct.ASN1Cert   `tls:"minlen:1,maxlen:16777215"`
	CertificateChain []ct.ASN1Cert `tls:"minlen:0,maxlen:16777215"`
}

// PrecertChainEntry holds an accepted precertificate submission. PreCert
// carries the canonical material committed to by the log (issuer key hash
// and reconstructed TBSCertificate); PreCertificate is the leaf exactly as
// submitted, poison extension included.
type PrecertChainEntry struct {
	PreCert             ct.PreCert
	PreCertificate      ct.ASN1Cert   `tls:"minlen:1,maxlen:16777215"`
	PrecertificateChain []ct.ASN1Cert `tls:"minlen:0,maxlen:16777215"`
}

// SignedDataEntry holds an accepted signed blob: the identifier of the key
// that signed it, the data itself, and the signature. Only the keyid and
// data are committed to by the Merkle leaf; the signature travels as extra
// data.
type SignedDataEntry struct {
	KeyID     []byte `tls:"minlen:0,maxlen:255"`
	Data      []byte `tls:"minlen:0,maxlen:16777215"`
	Signature tls.DigitallySigned
}

// LogEntry is the canonical record for a single accepted submission, a
// tagged union keyed by Type. Exactly one of the payload fields matching
// Type is populated.
type LogEntry struct {
	Type       ct.LogEntryType    `tls:"maxval:65535"`
	X509       *X509ChainEntry    `tls:"selector:Type,val:0"`
	Precert    *PrecertChainEntry `tls:"selector:Type,val:1"`
	SignedData *SignedDataEntry   `tls:"selector:Type,val:32769"`
}

// Check verifies that exactly the payload selected by Type is populated.
func (e *LogEntry) Check() error {
	x, p, s := e.X509 != nil, e.Precert != nil, e.SignedData != nil
	switch e.Type {
	case ct.X509LogEntryType:
		if !x || p || s {
			return fmt.Errorf("entry type %v does not match populated payload", e.Type)
		}
	case ct.PrecertLogEntryType:
		if x || !p || s {
			return fmt.Errorf("entry type %v does not match populated payload", e.Type)
		}
	case SignedDataLogEntryType:
		if x || p || !s {
			return fmt.Errorf("entry type %v does not match populated payload", e.Type)
		}
	default:
		return fmt.Errorf("unknown entry type %v", e.Type)
	}
	return nil
}

// LoggedEntry is a sequenced entry as read back from a local replica,
// together with the SCT issued for it.
type LoggedEntry struct {
	Sequence int64
	Entry    LogEntry
	SCT      ct.SignedCertificateTimestamp
}
