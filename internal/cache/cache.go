// Package cache keeps the latest queue snapshot in Redis so status polls
// from the dashboard never enter the manager's critical section.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"kiosk-system/internal/config"
	"kiosk-system/internal/kiosk"
)

const snapshotKey = "kiosk:queue:snapshot"

// Connect opens a Redis client and verifies the connection.
func Connect(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

type orderEntry struct {
	OrderID             string     `json:"order_id"`
	Status              string     `json:"status"`
	Position            int        `json:"position"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

type snapshot struct {
	Paused         bool         `json:"paused"`
	Processing     bool         `json:"processing"`
	CurrentOrderID string       `json:"current_order_id,omitempty"`
	QueueLength    int          `json:"queue_length"`
	Orders         []orderEntry `json:"orders"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// SnapshotCache implements kiosk.SnapshotSink. Writes are best effort: a
// Redis outage degrades status reads to the manager, nothing more.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logrus.Entry
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration, log *logrus.Entry) *SnapshotCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &SnapshotCache{rdb: rdb, ttl: ttl, log: log}
}

// Encode renders a queue snapshot in the wire shape served to dashboards.
// The cached bytes and a freshly computed response are interchangeable.
func Encode(s kiosk.StatusSnapshot) ([]byte, error) {
	snap := snapshot{
		Paused:         s.Paused,
		Processing:     s.Processing,
		CurrentOrderID: s.CurrentOrderID,
		QueueLength:    s.QueueLength,
		Orders:         make([]orderEntry, 0, len(s.Orders)),
		UpdatedAt:      s.UpdatedAt,
	}
	for i, o := range s.Orders {
		pos := i
		if s.CurrentOrderID == "" {
			pos = i + 1
		}
		snap.Orders = append(snap.Orders, orderEntry{
			OrderID:             o.ID,
			Status:              string(o.Status),
			Position:            pos,
			EstimatedCompletion: o.EstimatedCompletion,
		})
	}
	return json.Marshal(snap)
}

func (c *SnapshotCache) Store(ctx context.Context, s kiosk.StatusSnapshot) {
	body, err := Encode(s)
	if err != nil {
		c.log.WithError(err).WithField("action", "snapshot_marshal_failed").Error("snapshot not cached")
		return
	}
	if err := c.rdb.Set(ctx, snapshotKey, body, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("action", "snapshot_cache_failed").Error("snapshot not cached")
	}
}

// Get returns the cached snapshot JSON, or ok=false on miss.
func (c *SnapshotCache) Get(ctx context.Context) ([]byte, bool, error) {
	body, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}
