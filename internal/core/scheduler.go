package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orrn/todoprint/internal/config"
	"github.com/orrn/todoprint/internal/db"
)

// Scheduler is the background retry loop. It polls the store for retryable
// tasks and feeds them through the gateway, one at a time, with pacing so a
// slow printer is not hammered.
type Scheduler struct {
	store   *db.Store
	gateway *Gateway
	cfg     config.QueueConfig
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewScheduler(store *db.Store, gateway *Gateway, cfg config.QueueConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		gateway: gateway,
		cfg:     cfg,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(s.stopCh)

	s.log.Info().Dur("interval", s.cfg.RetryInterval).Msg("retry scheduler started")
}

// Stop signals the loop and waits for any in-flight delivery to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("retry scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()

	s.processBatch(stopCh)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.processBatch(stopCh)
		}
	}
}

// processBatch handles one poll cycle. A failure on one task never aborts
// the cycle; every task is isolated.
func (s *Scheduler) processBatch(stopCh chan struct{}) {
	ctx := context.Background()

	tasks, err := s.store.FetchRetryable(ctx, s.cfg.FetchLimit, s.cfg.MaxAttempts)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch retryable tasks")
		return
	}

	for i, task := range tasks {
		select {
		case <-stopCh:
			return
		default:
		}

		if task.Attempts >= s.cfg.MaxAttempts {
			s.log.Warn().Int64("task_id", task.ID).Int("attempts", task.Attempts).Msg("task exceeded max attempts, skipping")
			continue
		}

		s.log.Debug().Int64("task_id", task.ID).Int("attempt", task.Attempts+1).Msg("retrying task")

		err := s.gateway.Deliver(ctx, task.Text, task.Priority, task.Metadata.Language, true)
		if err != nil {
			if markErr := s.store.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
				s.log.Error().Err(markErr).Int64("task_id", task.ID).Msg("failed to record delivery failure")
			}
			s.log.Warn().Err(err).Int64("task_id", task.ID).Msg("retry delivery failed")
		} else {
			if markErr := s.store.MarkPrinted(ctx, task.ID); markErr != nil {
				s.log.Error().Err(markErr).Int64("task_id", task.ID).Msg("failed to mark task printed")
			}
			s.log.Info().Int64("task_id", task.ID).Msg("retry delivery succeeded")
		}

		if i < len(tasks)-1 && s.cfg.JobDelay > 0 {
			select {
			case <-stopCh:
				return
			case <-time.After(s.cfg.JobDelay):
			}
		}
	}
}
