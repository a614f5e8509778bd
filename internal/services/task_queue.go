package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeNotify = "complaint:notify"
)

// NotifyTask asks for staff to be alerted about a new complaint.
type NotifyTask struct {
	ComplaintID string `json:"complaint_id"`
	Priority    string `json:"priority"`
}

// TaskProcessor handles one notification task.
type TaskProcessor func(context.Context, *NotifyTask) error

// TaskQueue hands background work off the request path.
type TaskQueue interface {
	Enqueue(task *NotifyTask) error
	// IsAsync reports whether tasks go through Redis.
	IsAsync() bool
	Close() error
}

// NewTaskQueue returns a Redis-backed queue when enabled and reachable,
// otherwise an in-process one.
func NewTaskQueue(cfg *config.RedisConfig) TaskQueue {
	if cfg != nil && cfg.Enabled {
		queue, err := NewAsyncQueue(cfg)
		if err == nil {
			logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Addr)
			return queue
		}
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
	} else {
		logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
	}
	return NewSyncQueue()
}

// AsyncQueue implements TaskQueue using asynq.
type AsyncQueue struct {
	client *asynq.Client
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)
	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *NotifyTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeNotify, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("complaint_id", task.ComplaintID).Msg("[AsyncQueue] task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs each task in its own goroutine in this process.
type SyncQueue struct {
	mu        sync.RWMutex
	processor TaskProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *NotifyTask) error {
	q.mu.RLock()
	processor := q.processor
	q.mu.RUnlock()

	if processor == nil {
		logger.Warnf("[SyncQueue] no processor set, task dropped: %s", task.ComplaintID)
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := processor(ctx, task); err != nil {
			logger.Errorf("[SyncQueue] task failed for complaint %s: %v", task.ComplaintID, err)
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool { return false }

// Wait blocks until in-flight tasks finish.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

// Close waits for in-flight tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
