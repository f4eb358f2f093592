package secrets

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	dErrors "custodia/pkg/domain-errors"
)

// TempSecretLength is the fixed policy length for temporary account secrets.
const TempSecretLength = 12

const (
	letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
	symbols = "!@#$%&*-_+="
)

// GenerateTemp creates a temporary secret of TempSecretLength characters drawn
// from letters, digits, and symbols using a cryptographically secure source.
// At least one digit and one symbol are guaranteed so the result always
// satisfies the mixed-charset policy.
func GenerateTemp() (string, error) {
	charset := letters + digits + symbols
	buf := make([]byte, TempSecretLength)
	for i := range buf {
		c, err := randomFrom(charset)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}

	// Overwrite two distinct positions to guarantee charset mix.
	digitPos, err := randomIndex(TempSecretLength)
	if err != nil {
		return "", err
	}
	symbolPos, err := randomIndex(TempSecretLength - 1)
	if err != nil {
		return "", err
	}
	if symbolPos >= digitPos {
		symbolPos++
	}
	if buf[digitPos], err = randomFrom(digits); err != nil {
		return "", err
	}
	if buf[symbolPos], err = randomFrom(symbols); err != nil {
		return "", err
	}

	return string(buf), nil
}

func randomFrom(charset string) (byte, error) {
	idx, err := randomIndex(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[idx], nil
}

func randomIndex(n int) (int, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("could not draw random index: %w", err)
	}
	return int(idx.Int64()), nil
}

// Hash creates a bcrypt hash of the provided secret. Only the hash is ever
// persisted; the plaintext lives exactly as long as the approval response.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks if a plaintext secret matches a bcrypt hash.
func Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}
