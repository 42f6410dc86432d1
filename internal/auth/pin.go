package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// PINVerifier checks the shared access PIN. A bcrypt hash, when configured,
// takes precedence over the plain PIN.
type PINVerifier struct {
	pin  []byte
	hash []byte
}

func NewPINVerifier(pin, hash string) *PINVerifier {
	v := &PINVerifier{}
	if hash != "" {
		v.hash = []byte(hash)
	} else {
		v.pin = []byte(pin)
	}
	return v
}

func (v *PINVerifier) Verify(pin string) bool {
	if v.hash != nil {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(pin)) == nil
	}
	if len(v.pin) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(v.pin, []byte(pin)) == 1
}

// HashPIN produces a value suitable for access.pin_hash.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
