// Package signature verifies externally produced signatures over a record's
// canonical payload and reports whether they still describe the live record.
//
// A verification outcome is data: STALE and INVALID are ordinary results, not
// errors. Errors are reserved for defects such as a record projection that
// cannot be canonicalized.
package signature

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/digest"
	"github.com/dmitrijs2005/gophqms/internal/records"
)

// Status is the outcome of verifying an artifact against the live record.
type Status string

const (
	StatusVerified Status = "VERIFIED"
	StatusInvalid  Status = "INVALID"
	StatusStale    Status = "STALE"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusVerified, StatusInvalid, StatusStale:
		return st, true
	}
	return "", false
}

var ErrInvalidEncoding = errors.New("invalid encoding")

// Reasons attached to non-VERIFIED results.
const (
	ReasonHashMismatch   = "record changed after signing"
	ReasonNoKey          = "verification key not configured"
	ReasonNoSignature    = "signature missing"
	ReasonBadSignature   = "signature does not verify"
	ReasonMalformedHash  = "artifact hash is not a hex sha-256 digest"
	ReasonUnsupportedKey = "unsupported verification key"
)

// Artifact is the part of a submitted signature artifact verification reads.
type Artifact struct {
	QMSHash   string
	Signature []byte
}

// Result is a freshly derived verification outcome.
type Result struct {
	Status      Status
	VerifiedAt  time.Time
	Reason      string
	CurrentHash string
}

// Verifier checks artifacts with a key fixed at construction. It keeps no
// mutable state, so concurrent and repeated calls are safe.
type Verifier struct {
	keys KeyConfig
	now  func() time.Time
}

type Option func(*Verifier)

// WithClock overrides the time source used for VerifiedAt.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(keys KeyConfig, opts ...Option) *Verifier {
	v := &Verifier{keys: keys, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// KeyConfigured reports whether signatures can ever verify.
func (v *Verifier) KeyConfigured() bool { return v.keys.Configured() }

// Verify recomputes the canonical hash of rec and compares it with the hash
// recorded on the artifact. A mismatch is STALE. Otherwise the signature is
// checked against the canonical bytes. Nothing is mutated.
func (v *Verifier) Verify(a Artifact, rec records.SignableRecord) (Result, error) {
	hash, payload, err := records.Sum(rec)
	if err != nil {
		return Result{}, err
	}
	res := Result{VerifiedAt: v.now().UTC(), CurrentHash: hash}

	claimed := strings.ToLower(strings.TrimSpace(a.QMSHash))
	if len(claimed) != 2*digest.Size {
		res.Status, res.Reason = StatusInvalid, ReasonMalformedHash
		return res, nil
	}
	if !digest.Equal(claimed, hash) {
		res.Status, res.Reason = StatusStale, ReasonHashMismatch
		return res, nil
	}

	res.Status, res.Reason = v.check(payload, a.Signature)
	return res, nil
}

func (v *Verifier) check(message, sig []byte) (Status, string) {
	if !v.keys.Configured() {
		return StatusInvalid, ReasonNoKey
	}
	if len(sig) == 0 {
		return StatusInvalid, ReasonNoSignature
	}
	switch v.keys.alg {
	case AlgorithmEd25519:
		if len(sig) == ed25519.SignatureSize && ed25519.Verify(v.keys.ed, message, sig) {
			return StatusVerified, ""
		}
	case AlgorithmES256:
		sum := sha256.Sum256(message)
		if verifyES256(v.keys.ec, sum[:], sig) {
			return StatusVerified, ""
		}
	default:
		return StatusInvalid, ReasonUnsupportedKey
	}
	return StatusInvalid, ReasonBadSignature
}

// verifyES256 accepts DER or raw 64-byte r||s signatures.
func verifyES256(pub *ecdsa.PublicKey, hash, sig []byte) bool {
	if ecdsa.VerifyASN1(pub, hash, sig) {
		return true
	}
	if len(sig) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	return ecdsa.Verify(pub, hash, r, s)
}
