package tenant

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// RotateSecret generates a fresh random API secret, bcrypt-hashes it for
// storage, and returns the plaintext once (SPEC_FULL.md section 4.2/6) —
// the caller is responsible for returning it to the admin caller and never
// logging or persisting it in plaintext.
func RotateSecret() (plaintext, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("tenant: generate secret: %w", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("tenant: hash secret: %w", err)
	}
	return plaintext, string(hashed), nil
}
