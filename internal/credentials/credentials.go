// Package credentials hashes and verifies passwords. Hashes are bcrypt and
// opaque to the rest of the system.
package credentials

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is enforced when creating users.
const MinPasswordLength = 8

// ErrPasswordTooShort rejects passwords under MinPasswordLength.
var ErrPasswordTooShort = errors.New("password too short")

// Hash returns the bcrypt hash of password.
func Hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored hash.
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
