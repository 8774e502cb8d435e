package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/orrn/todoprint/internal/config"
	"github.com/orrn/todoprint/internal/db"
)

func newTestService(t *testing.T, transport *fakeTransport) (*Service, *db.Store) {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	g := newTestGateway(transport, nil, time.Minute)
	cfg := config.QueueConfig{
		MaxAttempts:   10,
		RetryInterval: time.Minute,
		FetchLimit:    5,
	}
	scheduler := NewScheduler(store, g, cfg, zerolog.Nop())
	return NewService(store, g, scheduler, cfg, zerolog.Nop()), store
}

func TestSubmitDeliversImmediately(t *testing.T) {
	transport := &fakeTransport{}
	service, store := newTestService(t, transport)
	ctx := context.Background()

	result, err := service.Submit(ctx, "Buy milk", 3, db.Metadata{})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !result.Delivered {
		t.Fatalf("Delivered = false, want true")
	}

	task, err := store.Get(ctx, result.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if task.Status != db.StatusPrinted {
		t.Fatalf("Status = %q, want %q", task.Status, db.StatusPrinted)
	}
	if task.PrintedAt == nil {
		t.Fatalf("PrintedAt not set after delivery")
	}
}

func TestSubmitQueuesOnDeliveryFailure(t *testing.T) {
	transport := &fakeTransport{connectErr: errors.New("dial refused")}
	service, store := newTestService(t, transport)
	ctx := context.Background()

	result, err := service.Submit(ctx, "Call bank", 1, db.Metadata{})
	if err != nil {
		t.Fatalf("Submit returned error: %v (delivery failure must not surface)", err)
	}
	if result.Delivered {
		t.Fatalf("Delivered = true, want false")
	}
	if !strings.Contains(result.Message, "queued") {
		t.Fatalf("Message = %q, want it to mention queued", result.Message)
	}

	task, err := store.Get(ctx, result.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if task.Status != db.StatusFailed {
		t.Fatalf("Status = %q, want %q", task.Status, db.StatusFailed)
	}
	if task.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", task.Attempts)
	}
	if task.LastError == "" {
		t.Fatalf("LastError should record the delivery failure")
	}
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	transport := &fakeTransport{}
	service, store := newTestService(t, transport)
	ctx := context.Background()

	_, err := service.Submit(ctx, "   ", 3, db.Metadata{})
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}

	// Nothing may be persisted for rejected input.
	stats, _ := store.Stats(ctx)
	if stats.Total != 0 {
		t.Fatalf("Total = %d, want 0 after rejected submit", stats.Total)
	}
}

func TestClampPriority(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 3},
		{1, 1},
		{3, 3},
		{5, 5},
		{6, 3},
		{-2, 3},
	}
	for _, c := range cases {
		if got := ClampPriority(c.in); got != c.want {
			t.Fatalf("ClampPriority(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"1", 1},
		{"5", 5},
		{"abc", 3},
		{"0", 3},
		{"7", 3},
		{"", 3},
		{" 4 ", 4},
	}
	for _, c := range cases {
		if got := ParsePriority(c.in); got != c.want {
			t.Fatalf("ParsePriority(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestQueueStatus(t *testing.T) {
	transport := &fakeTransport{}
	service, _ := newTestService(t, transport)
	ctx := context.Background()

	if _, err := service.Submit(ctx, "task", 3, db.Metadata{}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	status, err := service.QueueStatus(ctx)
	if err != nil {
		t.Fatalf("QueueStatus returned error: %v", err)
	}
	if status.Total != 1 {
		t.Fatalf("Total = %d, want 1", status.Total)
	}
	if status.QueueRunning {
		t.Fatalf("QueueRunning = true, scheduler was never started")
	}
	if status.MaxAttempts != 10 {
		t.Fatalf("MaxAttempts = %d, want 10", status.MaxAttempts)
	}
	if status.RetryInterval != time.Minute {
		t.Fatalf("RetryInterval = %v, want 1m", status.RetryInterval)
	}
}

func TestRetryAllFailed(t *testing.T) {
	transport := &fakeTransport{connectErr: errors.New("down")}
	service, store := newTestService(t, transport)
	ctx := context.Background()

	result, _ := service.Submit(ctx, "task", 3, db.Metadata{})

	count, err := service.RetryAllFailed(ctx)
	if err != nil {
		t.Fatalf("RetryAllFailed returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	task, _ := store.Get(ctx, result.ID)
	if task.Status != db.StatusPending {
		t.Fatalf("Status = %q, want %q", task.Status, db.StatusPending)
	}
	if task.Attempts != 0 {
		t.Fatalf("Attempts = %d, want 0 after reset", task.Attempts)
	}
}
