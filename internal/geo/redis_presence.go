package geo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence is the driver last-seen projection. Drivers ping periodically;
// any replica can then answer "is this driver still around" without a shared
// in-process singleton. Liveness is last_seen within TTL.
type Presence struct {
	client *redis.Client
	geoKey string
	ttl    time.Duration
}

func NewPresence(addr, password, geoKey string, ttl time.Duration) *Presence {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Presence{client: c, geoKey: geoKey, ttl: ttl}
}

// Touch records a presence ping: position via GEOADD, last-seen via HSET.
func (p *Presence) Touch(ctx context.Context, driverID string, lat, lng float64) error {
	if _, err := p.client.GeoAdd(ctx, p.geoKey, &redis.GeoLocation{
		Longitude: lng,
		Latitude:  lat,
		Name:      driverID,
	}).Result(); err != nil {
		return err
	}
	return p.client.HSet(ctx, metaKey(driverID), map[string]interface{}{
		"last_seen": time.Now().UTC().Format(time.RFC3339),
	}).Err()
}

// Alive reports whether the driver pinged within the TTL.
func (p *Presence) Alive(ctx context.Context, driverID string, now time.Time) bool {
	v, err := p.client.HGet(ctx, metaKey(driverID), "last_seen").Result()
	if err != nil {
		return false
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return false
	}
	return now.Sub(ts) <= p.ttl
}

// FilterAlive returns the subset of ids with a fresh last-seen. A redis
// outage degrades to "nobody filtered out" rather than an empty match list;
// matching stays usable, just less strict.
func (p *Presence) FilterAlive(ctx context.Context, ids []string, now time.Time) map[string]bool {
	alive := make(map[string]bool, len(ids))
	pipe := p.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, metaKey(id), "last_seen")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		for _, id := range ids {
			alive[id] = true
		}
		return alive
	}
	for i, id := range ids {
		v, err := cmds[i].Result()
		if err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			continue
		}
		if now.Sub(ts) <= p.ttl {
			alive[id] = true
		}
	}
	return alive
}

func (p *Presence) Close() error { return p.client.Close() }

func (p *Presence) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func metaKey(id string) string { return "driver:presence:" + id }
