// Package queue implements the task queue between the write path and the
// feed workers, backed by Redis sorted sets scored by enqueue time.
package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const keyPrefix = "queue:"

// Manager handles queue operations. Tasks are delivered at least once:
// Dequeue returns tasks without removing them, and only Remove after a
// successful run takes a task off the queue.
type Manager struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewManager creates a Manager with the given Redis client.
func NewManager(client rueidis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		client: client,
		logger: logger.Named("queue"),
	}
}

func queueKey(name string) string {
	return keyPrefix + name
}

// Enqueue adds a task to the named queue.
func (m *Manager) Enqueue(ctx context.Context, name string, args any) error {
	raw, err := sonic.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal task args: %w", err)
	}

	task := &Task{
		ID:         uuid.New().String(),
		Name:       name,
		Args:       raw,
		EnqueuedAt: time.Now(),
	}

	payload, err := sonic.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	err = m.client.Do(ctx,
		m.client.B().Zadd().Key(queueKey(name)).ScoreMember().
			ScoreMember(float64(task.EnqueuedAt.UnixNano()), string(payload)).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	m.logger.Debug("Enqueued task",
		zap.String("name", name),
		zap.String("taskID", task.ID))

	return nil
}

// Dequeue returns up to batchSize tasks in enqueue order without removing
// them. Malformed payloads are discarded so they cannot wedge the queue.
func (m *Manager) Dequeue(ctx context.Context, name string, batchSize int) ([]*Task, error) {
	items, err := m.client.Do(ctx,
		m.client.B().Zrange().Key(queueKey(name)).Min("0").Max(strconv.Itoa(batchSize-1)).Build(),
	).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(items))
	for _, item := range items {
		task := new(Task)
		if err := sonic.Unmarshal([]byte(item), task); err != nil {
			m.logger.Error("Discarding malformed task payload", zap.Error(err))
			m.removeRaw(ctx, name, item)
			continue
		}

		task.raw = item
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// Remove acknowledges a completed task, taking it off the queue.
func (m *Manager) Remove(ctx context.Context, task *Task) error {
	payload := task.raw
	if payload == "" {
		data, err := sonic.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task: %w", err)
		}
		payload = string(data)
	}

	err := m.client.Do(ctx,
		m.client.B().Zrem().Key(queueKey(task.Name)).Member(payload).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("failed to remove task: %w", err)
	}

	return nil
}

// Len returns the number of tasks waiting on the named queue.
func (m *Manager) Len(ctx context.Context, name string) (int64, error) {
	count, err := m.client.Do(ctx, m.client.B().Zcard().Key(queueKey(name)).Build()).ToInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}

	return count, nil
}

func (m *Manager) removeRaw(ctx context.Context, name, payload string) {
	err := m.client.Do(ctx,
		m.client.B().Zrem().Key(queueKey(name)).Member(payload).Build(),
	).Error()
	if err != nil {
		m.logger.Error("Failed to remove task payload", zap.Error(err))
	}
}
