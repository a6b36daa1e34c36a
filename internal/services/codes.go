package services

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"regexp"
)

const (
	inviteCodeLength   = 8
	inviteCodeAttempts = 5
	inviteTokenBytes   = 32
)

// No 0/O or 1/I: codes are read out and typed by hand.
var inviteCodeAlphabet = []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func generateInviteCode() (string, error) {
	b := make([]rune, inviteCodeLength)
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	for i := 0; i < inviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// generateInviteToken returns the opaque token mailed to off-platform invitees.
func generateInviteToken() (string, error) {
	b := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
