package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRunLog struct {
	mu       sync.Mutex
	started  []string
	statuses map[string]string
	details  map[string][]byte
}

func (f *fakeRunLog) Start(_ context.Context, jobType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, jobType)
	return jobType + "-run", nil
}

func (f *fakeRunLog) Finish(_ context.Context, runID, status string, details []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = map[string]string{}
		f.details = map[string][]byte{}
	}
	f.statuses[runID] = status
	f.details[runID] = details
	return nil
}

func (f *fakeRunLog) status(runID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[runID]
}

type fakeCycles struct {
	at  time.Time
	ids []string
}

func (f *fakeCycles) CloseExpired(_ context.Context, now time.Time) ([]string, error) {
	f.at = now
	return f.ids, nil
}

type fakePurger struct {
	retention time.Duration
	err       error
}

func (f *fakePurger) Purge(_ context.Context, retention time.Duration, _ time.Time) (int, error) {
	f.retention = retention
	return 3, f.err
}

func TestRunNowRecordsCompletedRun(t *testing.T) {
	runs := &fakeRunLog{}
	cycles := &fakeCycles{ids: []string{"c1"}}
	svc := New(runs, cycles, nil, Schedule{})
	fixed := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	details, err := svc.RunNow(context.Background(), JobCycleClose, svc.CloseExpiredCycles)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !cycles.at.Equal(fixed) {
		t.Fatalf("expected clock passed through, got %v", cycles.at)
	}
	if got := runs.status("cycle_close_expired-run"); got != "completed" {
		t.Fatalf("expected completed run, got %q", got)
	}
	var payload map[string]any
	if err := json.Unmarshal(runs.details["cycle_close_expired-run"], &payload); err != nil {
		t.Fatalf("details json: %v", err)
	}
	if payload["completed"].(float64) != 1 {
		t.Fatalf("unexpected details: %v", payload)
	}
	if details.(map[string]any)["completed"] != 1 {
		t.Fatalf("unexpected returned details: %v", details)
	}
}

func TestRunNowRecordsFailure(t *testing.T) {
	runs := &fakeRunLog{}
	purger := &fakePurger{err: errors.New("db down")}
	svc := New(runs, nil, purger, Schedule{NotificationRetention: 48 * time.Hour})

	if _, err := svc.RunNow(context.Background(), JobNotificationPurge, svc.PurgeNotifications); err == nil {
		t.Fatal("expected error")
	}
	if got := runs.status("notification_purge-run"); got != "failed" {
		t.Fatalf("expected failed run, got %q", got)
	}
	if purger.retention != 48*time.Hour {
		t.Fatalf("expected retention passed through, got %v", purger.retention)
	}
}

func TestWorkerDrainsQueue(t *testing.T) {
	runs := &fakeRunLog{}
	svc := New(runs, nil, nil, Schedule{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	done := make(chan struct{})
	if !svc.Enqueue("custom", func(context.Context) (any, error) {
		close(done)
		return nil, nil
	}) {
		t.Fatal("expected job to be queued")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}
