package eventive

import "strings"

// AvatarMaxSize is the upload ceiling for avatar images.
const AvatarMaxSize = 5 << 20 // 5 MiB

var avatarAllowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AvatarValidation is the structured outcome of the upload gate. It is
// returned, never raised.
type AvatarValidation struct {
	Valid  bool
	Reason string
}

// ValidateAvatar checks an avatar payload before any upload happens:
// image MIME types only, an explicit subtype allow-list, and a fixed size
// ceiling. Stateless.
func ValidateAvatar(contentType string, size int64) AvatarValidation {
	if !strings.HasPrefix(contentType, "image/") {
		return AvatarValidation{Reason: "please upload an image file (PNG, JPG, GIF or WebP)"}
	}
	if size > AvatarMaxSize {
		return AvatarValidation{Reason: "image must be less than 5MB"}
	}
	if !avatarAllowedTypes[contentType] {
		return AvatarValidation{Reason: "only PNG, JPG, GIF and WebP images are supported"}
	}
	return AvatarValidation{Valid: true}
}
