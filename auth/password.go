package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/warp/book-rental/rental"
)

// MinPasswordLength is enforced on register and password change.
const MinPasswordLength = 8

// MaxPasswordBytes is the most bcrypt accepts. Multibyte characters count
// by their encoded length.
const MaxPasswordBytes = 72

// HashPassword hashes plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", &rental.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		}
	}
	if len(password) > MaxPasswordBytes {
		return "", &rental.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes),
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares plaintext password with stored hash.
// A mismatch is rental.ErrUnauthorized.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return rental.ErrUnauthorized
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return rental.ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("verify password: %w: %w", rental.ErrUnauthorized, err)
	}
	return nil
}
