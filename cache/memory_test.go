package cache

import (
	"testing"
	"time"

	"github.com/eventive/eventive"
	"github.com/stretchr/testify/assert"
)

func TestMemoryRoundtrip(t *testing.T) {
	assert := assert.New(t)
	tier := NewMemory()

	_, ok := tier.Get("u1")
	assert.False(ok)

	entry := eventive.CacheEntry{
		Profile:   eventive.Profile{Id: "u1", DisplayName: "Ada L"},
		Timestamp: time.Now(),
	}
	assert.NoError(tier.Set("u1", entry))

	got, ok := tier.Get("u1")
	assert.True(ok)
	assert.Equal(entry.Profile, got.Profile)

	assert.NoError(tier.Invalidate("u1"))
	_, ok = tier.Get("u1")
	assert.False(ok)
}

func TestMemoryInvalidateMissingEntry(t *testing.T) {
	tier := NewMemory()
	assert.NoError(t, tier.Invalidate("ghost"))
}
