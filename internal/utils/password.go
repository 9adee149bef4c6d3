package utils

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

// bcrypt ignores everything past 72 bytes
const maxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// BurnPasswordCheck spends one bcrypt comparison so that a lookup miss costs
// the same as a password mismatch.
func BurnPasswordCheck(password string) {
	dummyOnce.Do(func() {
		b, _ := bcrypt.GenerateFromPassword([]byte("convopilot-timing"), bcrypt.DefaultCost)
		dummyHash = string(b)
	})
	_ = CheckPassword(dummyHash, password)
}
