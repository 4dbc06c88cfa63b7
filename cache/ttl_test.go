package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryLivesStrictlyBeforeExpiry(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	base := time.Now()
	now := base
	c.SetClock(func() time.Time { return now })

	c.Put("k", 42)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	now = base.Add(time.Minute - time.Nanosecond)
	_, ok = c.Get("k")
	assert.True(t, ok, "live strictly before the expiry instant")

	now = base.Add(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok, "dead at the expiry instant")
}

func TestPutForOverridesDefault(t *testing.T) {
	c := NewTTL[string, string](time.Minute)
	base := time.Now()
	now := base
	c.SetClock(func() time.Time { return now })

	c.PutFor("short", "x", time.Second)
	c.PutFor("forever", "y", 0)

	now = base.Add(2 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("forever")
	assert.True(t, ok, "zero TTL never expires")

	now = base.Add(1000 * time.Hour)
	_, ok = c.Get("forever")
	assert.True(t, ok)
}

func TestEvictExpiredSweeps(t *testing.T) {
	c := NewTTL[int, int](time.Minute)
	base := time.Now()
	c.SetClock(func() time.Time { return base })

	for n := 0; n < 5; n++ {
		c.Put(n, n)
	}
	c.PutFor(99, 99, time.Hour)
	assert.Equal(t, 6, c.Len())

	c.EvictExpired(base.Add(time.Minute))
	assert.Equal(t, 1, c.Len(), "only the long-lived entry survives")

	_, ok := c.Get(99)
	assert.True(t, ok)
}

func TestDeleteAndPurge(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}
