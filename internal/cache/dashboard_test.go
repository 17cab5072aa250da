package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// No miniredis-style in-memory Redis double appears anywhere in the
// example pack, so coverage here is limited to the nil-client degrade
// path every call is guarded by; a live Redis is required to exercise
// the Get/Set/Invalidate round trip itself.

func TestDashboardCache_NilClientGetIsCleanMiss(t *testing.T) {
	c := NewDashboardCache(nil)

	var out map[string]any
	hit, err := c.Get(context.Background(), "sess1", "processing", &out)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestDashboardCache_NilClientSetIsNoop(t *testing.T) {
	c := NewDashboardCache(nil)
	require.NoError(t, c.Set(context.Background(), "sess1", "processing", map[string]string{"a": "b"}))
}

func TestDashboardCache_NilClientInvalidateIsNoop(t *testing.T) {
	c := NewDashboardCache(nil)
	require.NoError(t, c.Invalidate(context.Background(), "sess1"))
}

func TestDashboardCache_NilReceiverIsSafe(t *testing.T) {
	var c *DashboardCache

	var out map[string]any
	hit, err := c.Get(context.Background(), "sess1", "processing", &out)
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, c.Set(context.Background(), "sess1", "processing", 1))
	require.NoError(t, c.Invalidate(context.Background(), "sess1"))
}
