package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/orrn/todoprint/internal/config"
	"github.com/orrn/todoprint/internal/db"
)

func newSchedulerFixture(t *testing.T, transport *fakeTransport, cfg config.QueueConfig) (*Scheduler, *db.Store) {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	g := newTestGateway(transport, nil, time.Minute)
	return NewScheduler(store, g, cfg, zerolog.Nop()), store
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v", timeout)
}

func TestSchedulerPrintsPendingTasks(t *testing.T) {
	transport := &fakeTransport{}
	s, store := newSchedulerFixture(t, transport, config.QueueConfig{
		MaxAttempts:   10,
		RetryInterval: 20 * time.Millisecond,
		FetchLimit:    5,
	})
	ctx := context.Background()

	var ids []int64
	for _, text := range []string{"one", "two", "three"} {
		id, err := store.Insert(ctx, text, 3, db.Metadata{})
		if err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
		ids = append(ids, id)
	}

	s.Start()
	defer s.Stop()

	waitFor(t, 5*time.Second, func() bool {
		stats, err := store.Stats(ctx)
		return err == nil && stats.Printed == 3
	})

	for _, id := range ids {
		task, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if task.Status != db.StatusPrinted {
			t.Fatalf("task %d Status = %q, want %q", id, task.Status, db.StatusPrinted)
		}
	}
}

func TestSchedulerSaturatesAttemptsAtCap(t *testing.T) {
	transport := &fakeTransport{connectErr: errors.New("printer unreachable")}
	maxAttempts := 3
	s, store := newSchedulerFixture(t, transport, config.QueueConfig{
		MaxAttempts:   maxAttempts,
		RetryInterval: 15 * time.Millisecond,
		FetchLimit:    20,
	})
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 4; i++ {
		id, err := store.Insert(ctx, "doomed", 3, db.Metadata{})
		if err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
		ids = append(ids, id)
	}

	s.Start()
	defer s.Stop()

	waitFor(t, 5*time.Second, func() bool {
		tasks, err := store.FetchRetryable(ctx, 20, maxAttempts)
		return err == nil && len(tasks) == 0
	})

	// Give the loop a few more cycles: attempts must not pass the cap.
	time.Sleep(100 * time.Millisecond)

	for _, id := range ids {
		task, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if task.Attempts != maxAttempts {
			t.Fatalf("task %d Attempts = %d, want exactly %d", id, task.Attempts, maxAttempts)
		}
		if task.Status != db.StatusFailed {
			t.Fatalf("task %d Status = %q, want %q", id, task.Status, db.StatusFailed)
		}
	}
}

func TestSchedulerStopIsIdempotentAndPrompt(t *testing.T) {
	transport := &fakeTransport{}
	s, _ := newSchedulerFixture(t, transport, config.QueueConfig{
		MaxAttempts:   10,
		RetryInterval: 20 * time.Millisecond,
		FetchLimit:    5,
	})

	s.Start()
	s.Start() // second start is a no-op
	if !s.Running() {
		t.Fatalf("Running = false after Start")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop() // second stop is a no-op
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return promptly")
	}
	if s.Running() {
		t.Fatalf("Running = true after Stop")
	}
}
