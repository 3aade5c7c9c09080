package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	AvatarCategory = "avatars"
	MaxAvatarBytes = 2 << 20
)

var (
	ErrAvatarTooLarge    = errors.New("avatar exceeds 2 MiB")
	ErrAvatarUnsupported = errors.New("avatar must be a PNG, JPEG, GIF or WebP image")
	allowedAvatarMimes   = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}
)

// AvatarOptions sniffs the image type from its bytes and names the object after the user.
func AvatarOptions(userID uint, data []byte, now time.Time) (SaveOptions, error) {
	if len(data) == 0 {
		return SaveOptions{}, ErrEmptyPayload
	}
	if len(data) > MaxAvatarBytes {
		return SaveOptions{}, ErrAvatarTooLarge
	}
	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), allowedAvatarMimes...) {
		return SaveOptions{}, ErrAvatarUnsupported
	}
	return SaveOptions{
		Category:    AvatarCategory,
		Extension:   strings.TrimPrefix(detected.Extension(), "."),
		BaseName:    fmt.Sprintf("user-%d-%d", userID, now.UnixNano()),
		ContentType: detected.String(),
	}, nil
}
