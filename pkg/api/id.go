package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	uploadIDPrefix = "up_"
)

var uploadIDPattern = regexp.MustCompile(`^up_[a-zA-Z0-9]{24}$`)

// NewUploadID generates a new upload ID with the "up_" prefix followed
// by 24 cryptographically random alphanumeric characters.
func NewUploadID() string {
	return uploadIDPrefix + randomAlphanumeric(idLength)
}

// ValidateUploadID checks whether the given string is a valid upload ID
// (matches "up_" + 24 alphanumeric characters).
func ValidateUploadID(id string) bool {
	return uploadIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
