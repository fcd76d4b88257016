package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	JobCycleClose        = "cycle_close_expired"
	JobNotificationPurge = "notification_purge"
)

// RunLog persists one row per job execution.
type RunLog interface {
	Start(ctx context.Context, jobType string) (string, error)
	Finish(ctx context.Context, runID, status string, details []byte) error
}

type CycleCloser interface {
	CloseExpired(ctx context.Context, now time.Time) ([]string, error)
}

type NotificationPurger interface {
	Purge(ctx context.Context, retention time.Duration, now time.Time) (int, error)
}

type Schedule struct {
	CycleCloseInterval        time.Duration
	NotificationPurgeInterval time.Duration
	NotificationRetention     time.Duration
}

type Service struct {
	Runs          RunLog
	Cycles        CycleCloser
	Notifications NotificationPurger
	Schedule      Schedule
	now           func() time.Time
	queue         chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(runs RunLog, cycles CycleCloser, notifications NotificationPurger, schedule Schedule) *Service {
	return &Service{
		Runs:          runs,
		Cycles:        cycles,
		Notifications: notifications,
		Schedule:      schedule,
		now:           time.Now,
		queue:         make(chan job, 128),
	}
}

// Start runs the worker and the tickers until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Schedule.CycleCloseInterval > 0 && s.Cycles != nil {
		go s.every(ctx, s.Schedule.CycleCloseInterval, JobCycleClose, s.CloseExpiredCycles)
	}
	if s.Schedule.NotificationPurgeInterval > 0 && s.Notifications != nil {
		go s.every(ctx, s.Schedule.NotificationPurgeInterval, JobNotificationPurge, s.PurgeNotifications)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) CloseExpiredCycles(ctx context.Context) (any, error) {
	ids, err := s.Cycles.CloseExpired(ctx, s.now())
	return map[string]any{"completedCycleIds": ids, "completed": len(ids)}, err
}

func (s *Service) PurgeNotifications(ctx context.Context) (any, error) {
	deleted, err := s.Notifications.Purge(ctx, s.Schedule.NotificationRetention, s.now())
	return map[string]any{"deleted": deleted, "retention": s.Schedule.NotificationRetention.String()}, err
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) every(ctx context.Context, interval time.Duration, jobType string, run func(context.Context) (any, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(jobType, run)
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.Runs != nil {
		id, err := s.Runs.Start(ctx, j.Type)
		if err != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
		}
		runID = id
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.Runs.Finish(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	slog.Info("job run finished", "jobType", j.Type, "status", status)
	return details, err
}
