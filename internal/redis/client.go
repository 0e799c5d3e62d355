package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client holds the request quota counters. Connections are opened lazily,
// so a Client can be built while Redis is still down.
type Client struct {
	rdb    *goredis.Client
	prefix string
}

// NewClient parses redisURL. Keys written by the client are namespaced
// under "huddle:".
func NewClient(redisURL string) (*Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	return &Client{rdb: goredis.NewClient(opts), prefix: "huddle:"}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Quota is the state of one fixed-window counter after a hit.
type Quota struct {
	Limit   int
	Used    int64
	ResetIn time.Duration
}

// Allowed reports whether the hit that produced q fits in the window.
func (q Quota) Allowed() bool { return q.Used <= int64(q.Limit) }

// Remaining is the number of hits left in the window, never negative.
func (q Quota) Remaining() int64 {
	return max(int64(q.Limit)-q.Used, 0)
}

// The first INCR of a window starts its expiry. Returns {count, pttl}.
var hitScript = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// Hit counts one request against key in a window of the given length.
func (c *Client) Hit(ctx context.Context, key string, limit int, window time.Duration) (Quota, error) {
	reply, err := hitScript.Run(ctx, c.rdb, []string{c.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Quota{}, fmt.Errorf("counting hit on %s: %w", key, err)
	}
	if len(reply) != 2 {
		return Quota{}, fmt.Errorf("counting hit on %s: unexpected reply %v", key, reply)
	}

	q := Quota{Limit: limit, Used: reply[0], ResetIn: time.Duration(reply[1]) * time.Millisecond}
	if reply[1] < 0 {
		q.ResetIn = window
	}
	return q, nil
}
