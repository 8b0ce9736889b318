// Package cryptox derives and checks actor credentials used to re-authenticate
// an e-signature.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Scheme names how a credential was stored.
type Scheme string

const (
	SchemeArgon2id Scheme = "argon2id"
	// SchemeBcrypt covers actors imported with bcrypt password hashes.
	SchemeBcrypt Scheme = "bcrypt"
)

const saltSize = 16

var ErrUnknownScheme = errors.New("unknown credential scheme")

// Credential is the stored, non-secret half of an actor's password.
type Credential struct {
	Scheme   Scheme
	Salt     []byte
	Verifier []byte
}

func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// NewCredential stores password under scheme with a fresh salt.
func NewCredential(scheme Scheme, password []byte) (Credential, error) {
	switch scheme {
	case SchemeArgon2id:
		salt := common.GenerateRandByteArray(saltSize)
		key := DeriveKey(password, salt)
		defer common.WipeByteArray(key)
		return Credential{Scheme: scheme, Salt: salt, Verifier: MakeVerifier(key)}, nil
	case SchemeBcrypt:
		hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
		if err != nil {
			return Credential{}, err
		}
		return Credential{Scheme: scheme, Verifier: hash}, nil
	}
	return Credential{}, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}

// Check reports whether password matches c. Anything that prevents the
// comparison (unknown scheme, corrupt hash, missing salt) is an error, never
// a match.
func Check(c Credential, password []byte) (bool, error) {
	switch c.Scheme {
	case SchemeArgon2id:
		if len(c.Salt) == 0 || len(c.Verifier) != sha256.Size {
			return false, fmt.Errorf("corrupt %s credential", c.Scheme)
		}
		key := DeriveKey(password, c.Salt)
		defer common.WipeByteArray(key)
		return subtle.ConstantTimeCompare(MakeVerifier(key), c.Verifier) == 1, nil
	case SchemeBcrypt:
		err := bcrypt.CompareHashAndPassword(c.Verifier, password)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("corrupt %s credential: %w", c.Scheme, err)
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownScheme, c.Scheme)
}
