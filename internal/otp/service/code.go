package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const codeLength = 6

var codeSpace = big.NewInt(1_000_000)

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// hashCode binds the code to the phone, so a hash leaked for one number
// cannot be replayed against another.
func hashCode(secret, phone, code string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(phone))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func codeMatches(secret, phone, code, stored string) bool {
	expected, err := hex.DecodeString(stored)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(hashCode(secret, phone, code))
	return hmac.Equal(got, expected)
}

func validCodeFormat(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
