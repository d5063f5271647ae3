package runstate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownGuard is a short per-task write lease. While one replica holds it,
// another cannot start a write on the same task; once it expires the
// comment thread itself carries the cooldown.
type CooldownGuard struct {
	client   redis.Cmdable
	prefix   string
	instance string
}

func NewCooldownGuard(client redis.Cmdable, prefix, instance string) *CooldownGuard {
	return &CooldownGuard{client: client, prefix: prefix, instance: instance}
}

func (g *CooldownGuard) key(taskID string) string {
	return g.prefix + ":cooldown:" + taskID
}

func (g *CooldownGuard) Acquire(ctx context.Context, taskID string, ttl time.Duration) (bool, error) {
	// SET NX with no expiry would hold the task forever.
	if ttl <= 0 {
		return false, fmt.Errorf("acquiring cooldown lease for %s: ttl must be positive, got %s", taskID, ttl)
	}
	ok, err := g.client.SetNX(ctx, g.key(taskID), g.instance, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring cooldown lease for %s: %w", taskID, err)
	}
	return ok, nil
}

// releaseScript deletes the lease only while this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (g *CooldownGuard) Release(ctx context.Context, taskID string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.key(taskID)}, g.instance).Err(); err != nil {
		return fmt.Errorf("releasing cooldown lease for %s: %w", taskID, err)
	}
	return nil
}
