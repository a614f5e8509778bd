package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/hibiken/asynq"
)

// Worker consumes notification tasks from Redis. It is only created when
// Redis is enabled.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor TaskProcessor
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisClientOpt(cfg),
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Errorf("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

func (w *Worker) SetProcessor(processor TaskProcessor) {
	w.processor = processor
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeNotify, w.handleNotifyTask)
	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting async worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Errorf("[Worker] Server error: %v", err)
		}
	}()
	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Infof("[Worker] Shutdown complete")
}

func (w *Worker) handleNotifyTask(ctx context.Context, t *asynq.Task) error {
	task, err := decodeNotifyTask(t.Payload())
	if err != nil {
		// malformed payloads will never succeed
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if w.processor == nil {
		logger.Warnf("[Worker] no processor set, dropping task for %s", task.ComplaintID)
		return nil
	}
	return w.processor(ctx, task)
}

func decodeNotifyTask(payload []byte) (*NotifyTask, error) {
	var task NotifyTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, fmt.Errorf("decode notify task: %w", err)
	}
	if task.ComplaintID == "" {
		return nil, fmt.Errorf("notify task without complaint_id")
	}
	return &task, nil
}
