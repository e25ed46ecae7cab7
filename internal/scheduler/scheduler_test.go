package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

type recordingComputer struct {
	mu    sync.Mutex
	dates []string
	block chan struct{}
}

func (r *recordingComputer) ComputeDailyStats(ctx context.Context, date string) (ports.DailyStats, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ports.DailyStats{}, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates = append(r.dates, date)
	return ports.DailyStats{Date: date}, nil
}

func (r *recordingComputer) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dates...)
}

func TestRunOnceComputesYesterdayAndToday(t *testing.T) {
	computer := &recordingComputer{}
	s := New(computer, time.Hour)
	s.now = func() time.Time {
		return time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC)
	}

	s.runOnce(context.Background())

	got := computer.recorded()
	if len(got) != 2 || got[0] != "2026-03-10" || got[1] != "2026-03-11" {
		t.Fatalf("dates = %v, want yesterday then today", got)
	}
}

func TestRunCatchesUpImmediately(t *testing.T) {
	computer := &recordingComputer{}
	s := New(computer, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(computer.recorded()) < 2 {
		select {
		case <-deadline:
			t.Fatal("no catch-up run before the first tick")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	computer := &recordingComputer{block: make(chan struct{})}
	s := New(computer, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		s.runOnce(ctx)
	}()
	<-started
	// Give the first run time to take the lock and block inside compute.
	time.Sleep(20 * time.Millisecond)

	// The overlapping tick must return immediately without computing.
	doneSecond := make(chan struct{})
	go func() {
		s.runOnce(ctx)
		close(doneSecond)
	}()
	select {
	case <-doneSecond:
	case <-time.After(time.Second):
		t.Fatal("overlapping run did not skip")
	}
	if len(computer.recorded()) != 0 {
		t.Fatalf("overlapping run computed: %v", computer.recorded())
	}

	close(computer.block)
}
