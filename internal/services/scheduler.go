package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	JobLogCleanup   = "log_cleanup"
	JobOverdueCheck = "overdue_check"

	logCleanupSpec   = "30 3 * * *"
	overdueCheckSpec = "*/15 * * * *"
)

// Scheduler runs periodic maintenance. Each job takes a row in
// scheduler_locks per period so only one replica runs it.
type Scheduler struct {
	db            *gorm.DB
	logs          *SystemLogService
	dashboard     *DashboardService
	retentionDays int
	instance      string
	cron          *cron.Cron
	now           func() time.Time
}

func NewScheduler(db *gorm.DB, logs *SystemLogService, dashboard *DashboardService, retentionDays int) *Scheduler {
	host, _ := os.Hostname()
	return &Scheduler{
		db:            db,
		logs:          logs,
		dashboard:     dashboard,
		retentionDays: retentionDays,
		instance:      fmt.Sprintf("%s-%d", host, os.Getpid()),
		now:           time.Now,
	}
}

func (s *Scheduler) Start() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc(logCleanupSpec, func() { s.RunLogCleanup(context.Background()) }); err != nil {
		return fmt.Errorf("schedule %s: %w", JobLogCleanup, err)
	}
	if _, err := s.cron.AddFunc(overdueCheckSpec, func() { s.RunOverdueCheck(context.Background()) }); err != nil {
		return fmt.Errorf("schedule %s: %w", JobOverdueCheck, err)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] started (log retention %d days)", s.retentionDays)
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	logger.Infof("[Scheduler] stopped")
}

// TryLock claims (name, key) for ttl. It reports false when another
// instance holds an unexpired claim.
func (s *Scheduler) TryLock(ctx context.Context, name, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	lock := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  s.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	var acquired bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.SchedulerLock
		err := tx.Where("lock_name = ? AND lock_key = ?", name, key).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// a concurrent insert from another instance is a lost race, not an error
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "lock_name"}, {Name: "lock_key"}},
				DoNothing: true,
			}).Create(&lock)
			if res.Error != nil {
				return res.Error
			}
			acquired = res.RowsAffected == 1
			return nil
		}
		if err != nil {
			return err
		}
		if existing.ExpiresAt.After(now) {
			return nil
		}
		res := tx.Model(&models.SchedulerLock{}).
			Where("id = ? AND locked_by = ?", existing.ID, existing.LockedBy).
			Updates(map[string]interface{}{"locked_by": s.instance, "locked_at": now, "expires_at": lock.ExpiresAt})
		if res.Error != nil {
			return res.Error
		}
		acquired = res.RowsAffected == 1
		return nil
	})
	return acquired, err
}

// RunLogCleanup deletes system logs past retention, at most once per day
// across replicas.
func (s *Scheduler) RunLogCleanup(ctx context.Context) {
	key := s.now().Format("2006-01-02")
	ok, err := s.TryLock(ctx, JobLogCleanup, key, 23*time.Hour)
	if err != nil {
		SchedulerRuns.WithLabelValues(JobLogCleanup, "error").Inc()
		logger.Error().Err(err).Msg("[Scheduler] failed to take log cleanup lock")
		return
	}
	if !ok {
		SchedulerRuns.WithLabelValues(JobLogCleanup, "skipped").Inc()
		return
	}

	removed, err := s.logs.CleanupOldLogs(s.retentionDays)
	if err != nil {
		SchedulerRuns.WithLabelValues(JobLogCleanup, "error").Inc()
		logger.Error().Err(err).Msg("[Scheduler] log cleanup failed")
		return
	}

	SchedulerRuns.WithLabelValues(JobLogCleanup, "success").Inc()
	logger.Info().Int64("removed", removed).Int("retention_days", s.retentionDays).Msg("[Scheduler] old system logs removed")
	if removed > 0 {
		s.logs.Info(AuditEntry{
			Module:  "system",
			Action:  JobLogCleanup,
			Message: fmt.Sprintf("removed %d system logs older than %d days", removed, s.retentionDays),
		})
	}
}

// RunOverdueCheck refreshes the overdue gauge. Every replica runs it since
// the gauge is per process.
func (s *Scheduler) RunOverdueCheck(ctx context.Context) {
	n, err := s.dashboard.CountOverdue(ctx)
	if err != nil {
		SchedulerRuns.WithLabelValues(JobOverdueCheck, "error").Inc()
		logger.Warn().Err(err).Msg("[Scheduler] overdue check failed")
		return
	}
	ComplaintsOverdue.Set(float64(n))
	SchedulerRuns.WithLabelValues(JobOverdueCheck, "success").Inc()
	if n > 0 {
		logger.Warn().Int64("overdue", n).Msg("[Scheduler] complaints past their response due date")
	}
}
