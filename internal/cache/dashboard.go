// Package cache memoizes the computed dashboard() view behind Redis, keyed
// by (session_id, current_step) so repeated polling of a session that
// hasn't advanced doesn't recompute the coverage/score rollup on every
// request. Invalidation is eager: the session layer clears a session's
// entries the moment any stage publishes a new processing status.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// invalidateScript atomically deletes every cache key belonging to one
// session, mirroring the teacher's Lua-script approach to atomic
// multi-key Redis operations (internal/ratelimit's lock release script).
const invalidateScript = `
local keys = redis.call('KEYS', ARGV[1])
for _, k in ipairs(keys) do
  redis.call('DEL', k)
end
return #keys
`

// DashboardCache is a thin read-through cache over one Redis client. A nil
// client (Redis unavailable or disabled) degrades every call to a cache
// miss rather than failing the request.
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
	script *redis.Script
}

func NewDashboardCache(client *redis.Client) *DashboardCache {
	return &DashboardCache{
		client: client,
		ttl:    30 * time.Second,
		script: redis.NewScript(invalidateScript),
	}
}

func key(sessionID, currentStep string) string {
	return fmt.Sprintf("dashboard:%s:%s", sessionID, currentStep)
}

// Get unmarshals the cached payload for (sessionID, currentStep) into out.
// It reports (false, nil) on a clean miss.
func (c *DashboardCache) Get(ctx context.Context, sessionID, currentStep string, out any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key(sessionID, currentStep)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under (sessionID, currentStep) with the cache's TTL.
func (c *DashboardCache) Set(ctx context.Context, sessionID, currentStep string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(sessionID, currentStep), raw, c.ttl).Err()
}

// Invalidate drops every cached entry for sessionID — called whenever the
// session's processing status advances to a new stage.
func (c *DashboardCache) Invalidate(ctx context.Context, sessionID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	pattern := fmt.Sprintf("dashboard:%s:*", sessionID)
	return c.script.Run(ctx, c.client, []string{}, pattern).Err()
}
