package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/eventive/eventive"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/buntdb"
)

func openTestBunt(t *testing.T) *Bunt {
	t.Helper()
	db, err := buntdb.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &Bunt{DB: db}
}

func TestBuntRoundtrip(t *testing.T) {
	assert := assert.New(t)
	tier := openTestBunt(t)

	_, ok := tier.Get("u1")
	assert.False(ok)

	stamp := time.Now().Truncate(time.Millisecond)
	entry := eventive.CacheEntry{
		Profile: eventive.Profile{
			Id:          "u1",
			Username:    "ada",
			DisplayName: "Ada L",
			Role:        eventive.RoleUser,
			Settings:    eventive.Settings{"theme": "dark"},
		},
		Timestamp: stamp,
	}
	assert.NoError(tier.Set("u1", entry))

	got, ok := tier.Get("u1")
	assert.True(ok)
	assert.Equal(entry.Profile.Id, got.Profile.Id)
	assert.Equal("ada", got.Profile.Username)
	assert.Equal("Ada L", got.Profile.DisplayName)
	assert.Equal(eventive.RoleUser, got.Profile.Role)
	assert.Equal("dark", got.Profile.Settings["theme"])
	assert.Equal(stamp.UnixMilli(), got.Timestamp.UnixMilli())

	assert.NoError(tier.Invalidate("u1"))
	_, ok = tier.Get("u1")
	assert.False(ok)
}

func TestBuntEntryFormat(t *testing.T) {
	assert := assert.New(t)
	tier := openTestBunt(t)

	err := tier.Set("u1", eventive.CacheEntry{
		Profile:   eventive.Profile{Id: "u1", Role: eventive.RoleUser},
		Timestamp: time.UnixMilli(1700000000000),
	})
	assert.NoError(err)

	var raw string
	err = tier.DB.View(func(tx *buntdb.Tx) error {
		var err error
		raw, err = tx.Get("profile:u1")
		return err
	})
	assert.NoError(err)

	var doc map[string]json.RawMessage
	assert.NoError(json.Unmarshal([]byte(raw), &doc))
	assert.Contains(doc, "profile")
	assert.Equal("1700000000000", string(doc["timestamp"]))
}

func TestBuntMalformedEntryIsMiss(t *testing.T) {
	assert := assert.New(t)
	tier := openTestBunt(t)

	err := tier.DB.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("profile:u1", "{not json", nil)
		return err
	})
	assert.NoError(err)

	_, ok := tier.Get("u1")
	assert.False(ok)
}

func TestBuntInvalidateMissingEntry(t *testing.T) {
	tier := openTestBunt(t)
	assert.NoError(t, tier.Invalidate("ghost"))
}
