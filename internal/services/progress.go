package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"yt-dataset-harvester/internal/models"
)

const ProgressChannelPattern = "harvest_updates:*"

func ProgressChannel(runID uuid.UUID) string {
	return "harvest_updates:" + runID.String()
}

// ProgressPublisher sends harvest progress events via Redis pub/sub.
type ProgressPublisher struct {
	redis *redis.Client
}

func NewProgressPublisher(redisClient *redis.Client) *ProgressPublisher {
	return &ProgressPublisher{redis: redisClient}
}

func (p *ProgressPublisher) Report(ctx context.Context, ev models.ProgressEvent) {
	data, err := json.Marshal(models.WSMessage{Type: ev.Type, Payload: ev})
	if err != nil {
		return
	}
	if err := p.redis.Publish(ctx, ProgressChannel(ev.RunID), string(data)).Err(); err != nil {
		log.Printf("failed to publish %s event for run %s: %v", ev.Type, ev.RunID, err)
	}
}

// BatchLock enforces a single writer per (run directory, batch number) across processes.
type BatchLock struct {
	redis *redis.Client
	owner string
	ttl   time.Duration
}

func NewBatchLock(redisClient *redis.Client, owner uuid.UUID, ttl time.Duration) *BatchLock {
	return &BatchLock{redis: redisClient, owner: owner.String(), ttl: ttl}
}

func BatchLockKey(runDir string, batchNumber int) string {
	return fmt.Sprintf("harvest_lock:%s:%d", runDir, batchNumber)
}

// Acquire takes the lock or fails with ErrLockHeld. The returned func releases it.
func (l *BatchLock) Acquire(ctx context.Context, runDir string, batchNumber int) (func(), error) {
	key := BatchLockKey(runDir, batchNumber)
	locked, err := l.redis.SetNX(ctx, key, l.owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire batch lock %s: %w", key, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", key, ErrLockHeld)
	}

	return func() {
		// only the owner may delete
		val, err := l.redis.Get(context.Background(), key).Result()
		if err == nil && val == l.owner {
			l.redis.Del(context.Background(), key)
		}
	}, nil
}
