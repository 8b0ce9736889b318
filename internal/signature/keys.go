package signature

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// Algorithm names the signature scheme of a configured key.
type Algorithm string

const (
	AlgorithmNone    Algorithm = ""
	AlgorithmEd25519 Algorithm = "ed25519"
	AlgorithmES256   Algorithm = "es256"
)

var (
	ErrInvalidKey         = errors.New("invalid key")
	ErrUnsupportedKeyType = errors.New("unsupported key type")
)

// KeyConfig is the immutable verification key material. The zero value holds
// no key, and a verifier built from it rejects every signature.
type KeyConfig struct {
	alg     Algorithm
	ed      ed25519.PublicKey
	ec      *ecdsa.PublicKey
	keyHash string
}

// NoKey returns a KeyConfig without a key.
func NoKey() KeyConfig { return KeyConfig{} }

// Configured reports whether a key is present.
func (k KeyConfig) Configured() bool { return k.alg != AlgorithmNone }

func (k KeyConfig) Algorithm() Algorithm { return k.alg }

// Fingerprint is the hex SHA-256 of the key's DER encoding, empty without a key.
func (k KeyConfig) Fingerprint() string { return k.keyHash }

// ParsePublicKeyPEM parses a PKIX "PUBLIC KEY" block holding an Ed25519 or
// P-256 ECDSA key. Blank input yields NoKey and no error.
func ParsePublicKeyPEM(data []byte) (KeyConfig, error) {
	if strings.TrimSpace(string(data)) == "" {
		return NoKey(), nil
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return KeyConfig{}, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}
	if block.Type != "PUBLIC KEY" {
		return KeyConfig{}, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidKey, block.Type)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return KeyConfig{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return newKeyConfig(pub, block.Bytes)
}

func newKeyConfig(pub crypto.PublicKey, der []byte) (KeyConfig, error) {
	fp := fingerprint(der)
	switch k := pub.(type) {
	case ed25519.PublicKey:
		return KeyConfig{alg: AlgorithmEd25519, ed: k, keyHash: fp}, nil
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return KeyConfig{}, fmt.Errorf("%w: ecdsa curve %s", ErrUnsupportedKeyType, k.Curve.Params().Name)
		}
		return KeyConfig{alg: AlgorithmES256, ec: k, keyHash: fp}, nil
	}
	return KeyConfig{}, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, pub)
}

// KeyConfigFromPublicKey wraps an already parsed key.
func KeyConfigFromPublicKey(pub crypto.PublicKey) (KeyConfig, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return KeyConfig{}, fmt.Errorf("%w: %v", ErrUnsupportedKeyType, err)
	}
	return newKeyConfig(pub, der)
}

// GenerateEd25519 creates a new key pair and returns both halves PEM encoded.
func GenerateEd25519() (publicPEM, privatePEM []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), nil
}

// ParsePrivateKeyPEM parses a PKCS#8 Ed25519 or P-256 private key.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	switch k := key.(type) {
	case ed25519.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return nil, fmt.Errorf("%w: ecdsa curve %s", ErrUnsupportedKeyType, k.Curve.Params().Name)
		}
		return k, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, key)
}
