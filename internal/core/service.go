package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orrn/todoprint/internal/config"
	"github.com/orrn/todoprint/internal/db"
)

var ErrEmptyText = errors.New("task text must not be empty")

const (
	defaultPriority = 3
	minPriority     = 1
	maxPriority     = 5
)

// Service is the single entry point external callers use to submit tasks
// and inspect the queue.
type Service struct {
	store     *db.Store
	gateway   *Gateway
	scheduler *Scheduler
	cfg       config.QueueConfig
	log       zerolog.Logger
}

func NewService(store *db.Store, gateway *Gateway, scheduler *Scheduler, cfg config.QueueConfig, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		gateway:   gateway,
		scheduler: scheduler,
		cfg:       cfg,
		log:       log.With().Str("component", "service").Logger(),
	}
}

type SubmitResult struct {
	Delivered bool
	Message   string
	ID        int64
}

// Submit persists the task, then tries to deliver it immediately. A failed
// delivery is not an error to the caller: the task is durable and the retry
// scheduler picks it up. Only validation and storage failures surface.
func (s *Service) Submit(ctx context.Context, text string, priority int, meta db.Metadata) (SubmitResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SubmitResult{}, ErrEmptyText
	}
	priority = ClampPriority(priority)

	id, err := s.store.Insert(ctx, text, priority, meta)
	if err != nil {
		return SubmitResult{}, err
	}

	if err := s.gateway.Deliver(ctx, text, priority, meta.Language, false); err != nil {
		if markErr := s.store.MarkFailed(ctx, id, err.Error()); markErr != nil {
			s.log.Error().Err(markErr).Int64("task_id", id).Msg("failed to record delivery failure")
		}
		return SubmitResult{
			Delivered: false,
			Message:   fmt.Sprintf("queued for retry: %v", err),
			ID:        id,
		}, nil
	}

	if err := s.store.MarkPrinted(ctx, id); err != nil {
		s.log.Error().Err(err).Int64("task_id", id).Msg("failed to mark task printed")
	}
	return SubmitResult{
		Delivered: true,
		Message:   "task printed",
		ID:        id,
	}, nil
}

// ClampPriority forces priority into [1,5]; out-of-range values become the
// default of 3.
func ClampPriority(priority int) int {
	if priority < minPriority || priority > maxPriority {
		return defaultPriority
	}
	return priority
}

// ParsePriority parses a priority string, defaulting to 3 when it does not
// parse or falls outside [1,5].
func ParsePriority(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultPriority
	}
	return ClampPriority(n)
}

type QueueStatus struct {
	db.Stats
	QueueRunning  bool          `json:"queue_running"`
	RetryInterval time.Duration `json:"retry_interval"`
	MaxAttempts   int           `json:"max_attempts"`
}

func (s *Service) QueueStatus(ctx context.Context) (QueueStatus, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return QueueStatus{}, err
	}
	return QueueStatus{
		Stats:         stats,
		QueueRunning:  s.scheduler.Running(),
		RetryInterval: s.cfg.RetryInterval,
		MaxAttempts:   s.cfg.MaxAttempts,
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (db.Task, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]db.Task, error) {
	return s.store.ListRecent(ctx, limit)
}

func (s *Service) ListPending(ctx context.Context, limit int) ([]db.Task, error) {
	return s.store.ListPending(ctx, limit)
}

// RetryAllFailed resets every failed task back to pending for the scheduler
// to pick up, and returns how many were reset.
func (s *Service) RetryAllFailed(ctx context.Context) (int64, error) {
	return s.store.ResetFailed(ctx)
}

// ClearQueue drops every pending and failed task and returns how many were
// removed. Printed history is untouched.
func (s *Service) ClearQueue(ctx context.Context) (int64, error) {
	return s.store.ClearQueue(ctx)
}

// PurgePrinted deletes printed tasks older than the given age and returns
// the number removed.
func (s *Service) PurgePrinted(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.store.PurgePrinted(ctx, olderThan)
}

func (s *Service) Start() {
	s.scheduler.Start()
}

func (s *Service) Stop() {
	s.scheduler.Stop()
}

// Cleanup stops the scheduler, cancels pending idle timers and releases the
// printer connection. Called on process exit.
func (s *Service) Cleanup() {
	s.scheduler.Stop()
	s.gateway.Cleanup()
}
