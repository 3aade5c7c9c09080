package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	sessionTokenBytes = 32
	inviteNonceBytes  = 16
)

// NewSessionToken returns an opaque token: 32 random bytes plus the issue time in base36.
func NewSessionToken(now time.Time) (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf) + "." + strconv.FormatInt(now.UnixMilli(), 36), nil
}

// NewInviteNonce returns the per-account secret an invite token must carry.
func NewInviteNonce() (string, error) {
	buf := make([]byte, inviteNonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the form a session token is stored and looked up under.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// TokenIssuedAt decodes the timestamp component of a session token.
func TokenIssuedAt(token string) (time.Time, error) {
	idx := strings.LastIndexByte(token, '.')
	if idx <= 0 || idx == len(token)-1 {
		return time.Time{}, errors.New("malformed session token")
	}
	ms, err := strconv.ParseInt(token[idx+1:], 36, 64)
	if err != nil {
		return time.Time{}, errors.New("malformed session token")
	}
	return time.UnixMilli(ms), nil
}
