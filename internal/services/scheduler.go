package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-site/internal/domain"
	"auction-site/internal/metrics"
	"auction-site/pkg/logger"
	"auction-site/pkg/utils"
)

const closeJobPrefix = "close-item-"

// CloseJobKey is the runner key of an item's closing job.
func CloseJobKey(itemID string) string {
	return closeJobPrefix + itemID
}

type SchedulerConfig struct {
	// CloseDelay is added to closes_at so the job runs after the last
	// acceptable bid instant.
	CloseDelay time.Duration
	// SweepSchedule is a cron spec for the overdue sweep. Empty disables it.
	SweepSchedule string
	InstanceID    string
}

// ClosingScheduler keeps exactly one pending closing job per open item.
type ClosingScheduler struct {
	runner  domain.JobRunner
	engine  *ClosingEngine
	items   domain.ItemRepository
	jobs    domain.SchedulerRepository
	leader  domain.LeaderElection
	clock   domain.Clock
	cfg     SchedulerConfig
	metrics *metrics.Metrics
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClosingScheduler(
	runner domain.JobRunner,
	engine *ClosingEngine,
	items domain.ItemRepository,
	jobs domain.SchedulerRepository,
	leader domain.LeaderElection,
	clock domain.Clock,
	cfg SchedulerConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *ClosingScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &ClosingScheduler{
		runner:  runner,
		engine:  engine,
		items:   items,
		jobs:    jobs,
		leader:  leader,
		clock:   clock,
		cfg:     cfg,
		metrics: m,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *ClosingScheduler) Start() error {
	s.log.Info("Starting closing scheduler", "close_delay", s.cfg.CloseDelay, "sweep", s.cfg.SweepSchedule)

	if s.cfg.SweepSchedule != "" {
		err := s.runner.AddRecurring(s.cfg.SweepSchedule, func() {
			if _, err := s.SweepOverdue(s.ctx); err != nil {
				s.log.Error("Overdue sweep failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("register sweep: %w", err)
		}
	}

	s.runner.Start()
	return nil
}

// Stop waits for running jobs, then cancels the context they were given.
func (s *ClosingScheduler) Stop() {
	s.log.Info("Stopping closing scheduler")
	s.runner.Stop()
	s.cancel()
}

// RescheduleClosing derives the closing job from the item's current state.
// It must be called after every persisted item write.
func (s *ClosingScheduler) RescheduleClosing(ctx context.Context, item *domain.Item) error {
	if item.ClosesAt == nil {
		return nil
	}

	if item.Closed {
		s.CancelClosing(ctx, item.ID)
		return nil
	}

	runAt := item.ClosesAt.Add(s.cfg.CloseDelay)
	jobID := s.recordJob(ctx, item.ID, runAt)

	itemID := item.ID
	err := s.runner.Schedule(CloseJobKey(itemID), runAt, func() {
		s.runClosingJob(itemID, jobID)
	})
	if err != nil {
		return fmt.Errorf("schedule closing for item %s: %w", itemID, err)
	}

	s.metrics.ClosingJobsScheduled.Inc()
	s.metrics.ClosingJobsPending.Set(float64(s.runner.Len()))
	s.log.Debug("Closing scheduled", "item_id", itemID, "run_at", runAt)
	return nil
}

// CancelClosing drops the item's pending job, if any.
func (s *ClosingScheduler) CancelClosing(ctx context.Context, itemID string) {
	if s.runner.Cancel(CloseJobKey(itemID)) {
		s.log.Debug("Closing cancelled", "item_id", itemID)
	}
	if err := s.jobs.CancelJobsForItem(ctx, itemID); err != nil {
		s.log.Warn("Failed to cancel job records", "item_id", itemID, "error", err)
	}
	s.metrics.ClosingJobsPending.Set(float64(s.runner.Len()))
}

func (s *ClosingScheduler) PendingClosing(itemID string) (time.Time, bool) {
	return s.runner.Pending(CloseJobKey(itemID))
}

// recordJob writes the audit row for a new job. Failures are logged only;
// the runner is what fires the job.
func (s *ClosingScheduler) recordJob(ctx context.Context, itemID string, runAt time.Time) string {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		ItemID:    itemID,
		JobType:   domain.JobCloseItem,
		RunAt:     runAt,
		Status:    domain.JobPending,
		CreatedAt: s.clock.Now(),
	}

	if err := s.jobs.CancelJobsForItem(ctx, itemID); err != nil {
		s.log.Warn("Failed to cancel job records", "item_id", itemID, "error", err)
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		s.log.Warn("Failed to record job", "item_id", itemID, "error", err)
	}
	return job.ID
}

func (s *ClosingScheduler) runClosingJob(itemID, jobID string) {
	ctx := s.ctx
	s.metrics.ClosingJobsFired.Inc()
	s.metrics.ClosingJobsPending.Set(float64(s.runner.Len()))

	s.log.Info("Processing job", "job_id", jobID, "type", domain.JobCloseItem, "item_id", itemID)

	// Reload: the item may have changed since the job was scheduled.
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("Closing job for missing item", "item_id", itemID)
		} else {
			s.log.Error("Failed to load item for closing", "item_id", itemID, "error", err)
		}
		return
	}

	if _, err := s.engine.CloseItem(ctx, item); err != nil {
		s.log.Error("Failed to execute job", "job_id", jobID, "error", err)
		return
	}

	if err := s.jobs.UpdateJobStatus(ctx, jobID, domain.JobExecuted); err != nil {
		s.log.Warn("Failed to update job status", "job_id", jobID, "error", err)
	}
}

// Restore schedules every unclosed item. Jobs live in memory, so this runs
// once at startup.
func (s *ClosingScheduler) Restore(ctx context.Context) (int, error) {
	items, err := s.items.ListUnclosed(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unclosed items: %w", err)
	}

	restored := 0
	for _, item := range items {
		if err := s.RescheduleClosing(ctx, item); err != nil {
			s.log.Error("Failed to restore closing", "item_id", item.ID, "error", err)
			continue
		}
		restored++
	}

	s.log.Info("Closing jobs restored", "count", restored)
	return restored, nil
}

// SweepOverdue closes items whose close time has passed but which are still
// open in storage. Only the elected leader sweeps.
func (s *ClosingScheduler) SweepOverdue(ctx context.Context) (int, error) {
	isLeader, err := s.leader.IsLeader(ctx, s.cfg.InstanceID)
	if err != nil || !isLeader {
		return 0, err
	}

	items, err := s.items.ListOverdue(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("list overdue items: %w", err)
	}

	closed := 0
	for _, item := range items {
		ok, err := s.engine.CloseItem(ctx, item)
		if err != nil {
			s.log.Error("Sweep failed to close item", "item_id", item.ID, "error", err)
			continue
		}
		if ok {
			closed++
			s.runner.Cancel(CloseJobKey(item.ID))
		}
	}

	if closed > 0 {
		s.metrics.SweepClosedTotal.Add(float64(closed))
		s.log.Info("Overdue items closed", "count", closed)
	}
	return closed, nil
}
