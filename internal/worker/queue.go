package worker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// TaskQueue is an optional distributed next-package queue backing the
// worker-pull model spec.md §2 describes for multi-host execution: one
// Redis list per experiment, workers BLPOP their next package id.
//
// In-process single-host deployments don't need this — the Runner Pool
// (C7) can call next_package() directly against the Experiment's package
// selection — but a server fronting remote workers over the HTTP surface
// needs a shared queue so two workers never pull the same package twice.
type TaskQueue struct {
	rdb *redis.Client
}

func NewTaskQueue(rdb *redis.Client) *TaskQueue { return &TaskQueue{rdb: rdb} }

func queueKey(experiment string) string { return "crater:queue:" + experiment }

// Push enqueues packageID as available work for experiment.
func (q *TaskQueue) Push(ctx context.Context, experiment, packageID string) error {
	if err := q.rdb.RPush(ctx, queueKey(experiment), packageID).Err(); err != nil {
		return fmt.Errorf("worker: push %s/%s: %w", experiment, packageID, err)
	}
	return nil
}

// Pop blocks until a package id is available or ctx is cancelled,
// returning ("", nil) on cancellation (the caller's next_package()
// contract treats that as "exhausted for now").
func (q *TaskQueue) Pop(ctx context.Context, experiment string) (string, error) {
	res, err := q.rdb.BLPop(ctx, 0, queueKey(experiment)).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return "", nil
		}
		return "", fmt.Errorf("worker: pop %s: %w", experiment, err)
	}
	// BLPop returns [key, value]; we only ever block on one key.
	if len(res) != 2 {
		return "", fmt.Errorf("worker: unexpected BLPOP reply for %s", experiment)
	}
	return res[1], nil
}

// Len reports the number of packages still queued for experiment.
func (q *TaskQueue) Len(ctx context.Context, experiment string) (int64, error) {
	n, err := q.rdb.LLen(ctx, queueKey(experiment)).Result()
	if err != nil {
		return 0, fmt.Errorf("worker: len %s: %w", experiment, err)
	}
	return n, nil
}

// Clear removes the queue for experiment entirely (e.g. on abort).
func (q *TaskQueue) Clear(ctx context.Context, experiment string) error {
	if err := q.rdb.Del(ctx, queueKey(experiment)).Err(); err != nil {
		return fmt.Errorf("worker: clear %s: %w", experiment, err)
	}
	return nil
}
