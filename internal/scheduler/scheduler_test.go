package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartRunsInitialSync(t *testing.T) {
	var syncs atomic.Int32
	s := New("0 8 * * *", "30 3 * * 0",
		func(context.Context) { syncs.Add(1) },
		func(context.Context) {},
		discardLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for syncs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial sync never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New("not a cron spec", "30 3 * * 0",
		func(context.Context) {}, func(context.Context) {}, discardLogger())

	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for invalid sync spec")
	}
}
