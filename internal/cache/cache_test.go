package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Hour)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("b", 2, -time.Second)
	_, ok = c.Get("b")
	assert.False(t, ok)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestServiceLookupCacheSkipsDeletedRows(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	c := NewServiceLookupCache()

	live := &catalogdomain.TransitService{ID: node.Generate(), Name: "Airport to City Center"}
	c.SetService(live)
	got, ok := c.GetService(live.ID)
	require.True(t, ok)
	assert.Equal(t, live.Name, got.Name)

	deletedAt := time.Now().UTC()
	gone := &catalogdomain.TransitService{ID: node.Generate(), DeletedAt: &deletedAt}
	c.SetService(gone)
	_, ok = c.GetService(gone.ID)
	assert.False(t, ok)
}
