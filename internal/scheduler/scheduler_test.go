package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestScheduler_RefreshesCatalog(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, time.Second)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for r.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if r.calls.Load() == 0 {
		t.Error("catalog never refreshed")
	}
}

func TestScheduler_DisabledInterval(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, 0)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if r.calls.Load() != 0 {
		t.Errorf("refreshed %d times with refresh disabled", r.calls.Load())
	}
}

func TestScheduler_RefreshErrorIsSwallowed(t *testing.T) {
	r := &countingRefresher{err: errors.New("db down")}
	s := New(r, time.Minute)
	s.refreshCatalog()
	if r.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", r.calls.Load())
	}
}
