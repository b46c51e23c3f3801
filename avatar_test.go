package eventive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAvatar(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		name        string
		contentType string
		size        int64
		valid       bool
	}{
		{"png under limit", "image/png", 2 << 20, true},
		{"png over limit", "image/png", 6 << 20, false},
		{"png exactly at limit", "image/png", AvatarMaxSize, true},
		{"webp under limit", "image/webp", 1 << 20, true},
		{"gif under limit", "image/gif", 100, true},
		{"text renamed to png", "text/plain", 100, false},
		{"svg not allow-listed", "image/svg+xml", 100, false},
		{"empty content type", "", 100, false},
	}
	for _, tc := range cases {
		result := ValidateAvatar(tc.contentType, tc.size)
		assert.Equal(tc.valid, result.Valid, tc.name)
		if !tc.valid {
			assert.NotEmpty(result.Reason, tc.name)
		}
	}
}
