package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/studyhub/internal/config"
	"github.com/huangang/studyhub/internal/metrics"
	"github.com/huangang/studyhub/pkg/logger"
)

const TaskTypeEmail = "email:send"

const (
	EmailKindVerify = "verify_email"
	EmailKindReset  = "password_reset"
)

// EmailTask is an email waiting to be delivered. Link is the action URL embedded in Body.
type EmailTask struct {
	Kind    string `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Link    string `json:"link,omitempty"`
}

// TaskQueue hands outgoing email to whatever delivers it.
type TaskQueue interface {
	Enqueue(task *EmailTask) error
	// IsAsync reports whether delivery happens in another process.
	IsAsync() bool
	Close() error
}

// EmailProcessor delivers a queued email with mailer. Both queue flavours use it.
func EmailProcessor(mailer Mailer) func(context.Context, *EmailTask) error {
	deliveries := metrics.Default().EmailDeliveries
	return func(ctx context.Context, task *EmailTask) error {
		err := mailer.Send(ctx, &EmailMessage{To: task.To, Subject: task.Subject, Text: task.Body})
		if err != nil {
			deliveries.WithLabelValues(mailer.Name(), "error").Inc()
			logger.Error().Err(err).Str("kind", task.Kind).Str("mailer", mailer.Name()).Msg("email delivery failed")
			return err
		}
		deliveries.WithLabelValues(mailer.Name(), "ok").Inc()
		logger.Debug().Str("kind", task.Kind).Str("mailer", mailer.Name()).Msg("email delivered")
		return nil
	}
}

// InitTaskQueue picks the Redis queue when it is enabled and reachable. Otherwise
// emails are sent from an in-process goroutine.
func InitTaskQueue(cfg *config.Config) TaskQueue {
	if !cfg.Redis.Enabled {
		logger.Info().Str("mode", "inline").Msg("email queue ready")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, sending email inline")
		return NewSyncQueue()
	}
	logger.Info().Str("mode", "redis").Str("addr", cfg.Redis.Addr).Msg("email queue ready")
	return queue
}

// AsyncQueue pushes email tasks onto the asynq mail queue for Worker.
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisClientOpt(cfg)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		return nil, fmt.Errorf("probe redis at %s: %w", cfg.Addr, err)
	}
	return &AsyncQueue{client: asynq.NewClient(opt)}, nil
}

func (q *AsyncQueue) Enqueue(task *EmailTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode email task: %w", err)
	}
	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeEmail, payload),
		asynq.Queue(mailQueue),
		asynq.MaxRetry(emailMaxRetry),
		asynq.Timeout(emailTimeout),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s email: %w", task.Kind, err)
	}
	logger.Debug().Str("task_id", info.ID).Str("kind", task.Kind).Msg("email queued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error { return q.client.Close() }

// SyncQueue sends each email on its own goroutine so request handlers never wait
// on the mail server. Close drains in-flight sends.
type SyncQueue struct {
	mu        sync.RWMutex
	processor func(context.Context, *EmailTask) error
	inflight  sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor func(context.Context, *EmailTask) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *EmailTask) error {
	q.mu.RLock()
	process := q.processor
	q.mu.RUnlock()
	if process == nil {
		logger.Warn().Str("kind", task.Kind).Msg("no email processor set, email dropped")
		return nil
	}

	q.inflight.Add(1)
	go func() {
		defer q.inflight.Done()
		if err := process(context.Background(), task); err != nil {
			logger.Warn().Err(err).Str("kind", task.Kind).Msg("inline email send failed")
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool { return false }

func (q *SyncQueue) Close() error {
	q.inflight.Wait()
	return nil
}
