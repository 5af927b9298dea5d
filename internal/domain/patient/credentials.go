package patient

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	loginIDPrefix  = "PAT"
	passwordLength = 8
	passwordChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// HashCost is the bcrypt work factor for every issued password and for
	// the decoy compared against unknown login ids. A single cost keeps a
	// wrong password as slow as an unknown login id.
	HashCost = 12
)

// GenerateLoginID returns PAT followed by the last six digits of the
// millisecond clock and three random digits.
func GenerateLoginID(now time.Time, rnd io.Reader) (string, error) {
	n, err := rand.Int(rnd, big.NewInt(1000))
	if err != nil {
		return "", fmt.Errorf("generate login id: %w", err)
	}
	return fmt.Sprintf("%s%06d%03d", loginIDPrefix, now.UnixMilli()%1_000_000, n.Int64()), nil
}

// GeneratePassword returns eight characters drawn uniformly from [A-Z0-9].
func GeneratePassword(rnd io.Reader) (string, error) {
	alphabet := big.NewInt(int64(len(passwordChars)))
	buf := make([]byte, passwordLength)
	for i := range buf {
		n, err := rand.Int(rnd, alphabet)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		buf[i] = passwordChars[n.Int64()]
	}
	return string(buf), nil
}

// PasswordHasher hashes and verifies patient passwords.
type PasswordHasher interface {
	Hash(password string, cost int) (string, error)
	Compare(hash, password string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	// MaxCost caps the requested cost when non-zero. Tests set it to
	// bcrypt.MinCost to stay fast.
	MaxCost int
}

func (h BcryptHasher) Hash(password string, cost int) (string, error) {
	if h.MaxCost > 0 && cost > h.MaxCost {
		cost = h.MaxCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare reports whether password matches hash. bcrypt compares in
// constant time.
func (h BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
