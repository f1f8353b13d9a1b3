package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/studyhub/internal/config"
	"github.com/huangang/studyhub/pkg/logger"
	"github.com/rs/zerolog"
)

const (
	mailQueue      = "mail"
	emailMaxRetry  = 5
	emailTimeout   = 30 * time.Second
	emailBaseDelay = 10 * time.Second
	emailMaxDelay  = 10 * time.Minute
)

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// emailRetryDelay doubles from 10s per attempt, capped at 10 minutes.
func emailRetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := emailBaseDelay
	for i := 0; i < n && d < emailMaxDelay; i++ {
		d *= 2
	}
	if d > emailMaxDelay {
		d = emailMaxDelay
	}
	return d
}

// Worker consumes the mail queue that AsyncQueue fills.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	log       zerolog.Logger
	processor func(context.Context, *EmailTask) error

	mu      sync.Mutex
	running bool
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}
	w := &Worker{
		mux: asynq.NewServeMux(),
		log: logger.Component("email-worker"),
	}
	w.server = asynq.NewServer(redisClientOpt(cfg), asynq.Config{
		Concurrency:    2,
		Queues:         map[string]int{mailQueue: 1},
		RetryDelayFunc: emailRetryDelay,
		Logger:         asynqLogger{w.log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			w.log.Warn().Err(err).Str("task", task.Type()).Int("retried", retried).Msg("email task failed")
		}),
	})
	w.mux.HandleFunc(TaskTypeEmail, w.handleEmailTask)
	return w
}

func (w *Worker) SetProcessor(processor func(context.Context, *EmailTask) error) {
	w.processor = processor
}

// Start runs the asynq server in the background. Calling it twice is a no-op.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start email worker: %w", err)
	}
	w.running = true
	w.log.Info().Str("queue", mailQueue).Msg("email worker started")
	return nil
}

// Stop waits for in-flight deliveries and disconnects from Redis.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
	w.log.Info().Msg("email worker stopped")
}

func (w *Worker) handleEmailTask(ctx context.Context, t *asynq.Task) error {
	var task EmailTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.log.Error().Err(err).Msg("malformed email task")
		return fmt.Errorf("decode email task: %v: %w", err, asynq.SkipRetry)
	}
	if task.To == "" {
		return fmt.Errorf("email task %s has no recipient: %w", task.Kind, asynq.SkipRetry)
	}
	if w.processor == nil {
		w.log.Warn().Str("kind", task.Kind).Msg("no processor set, email dropped")
		return nil
	}
	return w.processor(ctx, &task)
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
