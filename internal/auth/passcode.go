package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadPasscode = errors.New("bad_passcode")

// HashPasscode produces the value expected in CONSOLE_PASSCODE_HASH.
func HashPasscode(passcode string) (string, error) {
	if strings.TrimSpace(passcode) == "" {
		return "", errors.New("empty passcode")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPasscode accepts anything when no hash is configured.
func VerifyPasscode(hash, passcode string) error {
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)); err != nil {
		return ErrBadPasscode
	}
	return nil
}
