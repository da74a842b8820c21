package maintenance

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Default schedules: nightly backup at 02:00, weekly maintenance Sunday 03:00
const (
	DefaultBackupSchedule      = "0 2 * * *"
	DefaultMaintenanceSchedule = "0 3 * * 0"
)

// Tables flagged in the maintenance report once this share of tuples is dead
const deadTupleWarnRatio = 0.2

// Backupper is the part of BackupService the scheduler drives
type Backupper interface {
	CreateBackup(ctx context.Context) (string, error)
}

// TableStatsSource is the part of Monitor the maintenance job reads
type TableStatsSource interface {
	TableStats(ctx context.Context) ([]TableStats, error)
}

// Scheduler runs backups and the maintenance report on cron schedules. Job failures
// are logged and never stop the scheduler.
type Scheduler struct {
	cron    *cron.Cron
	backup  Backupper
	monitor TableStatsSource
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. monitor may be nil, in which case the maintenance job
// is not registered.
func NewScheduler(backup Backupper, monitor TableStatsSource, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		backup:  backup,
		monitor: monitor,
		logger:  logger,
	}
}

// Start registers both jobs and starts the cron loop
func (s *Scheduler) Start(ctx context.Context, backupSpec, maintenanceSpec string) error {
	if backupSpec == "" {
		backupSpec = DefaultBackupSchedule
	}
	if maintenanceSpec == "" {
		maintenanceSpec = DefaultMaintenanceSchedule
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(backupSpec, func() { s.RunBackup(s.ctx) }); err != nil {
		return errors.Wrapf(err, "invalid backup schedule %q", backupSpec)
	}
	if s.monitor != nil {
		if _, err := s.cron.AddFunc(maintenanceSpec, func() { s.RunMaintenance(s.ctx) }); err != nil {
			return errors.Wrapf(err, "invalid maintenance schedule %q", maintenanceSpec)
		}
	}

	s.cron.Start()
	s.logger.Info("maintenance scheduler started", "backup", backupSpec, "maintenance", maintenanceSpec)
	return nil
}

// Stop halts scheduling and waits for running jobs
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.logger.Info("maintenance scheduler stopped")
}

// RunBackup takes one backup and logs the outcome
func (s *Scheduler) RunBackup(ctx context.Context) {
	path, err := s.backup.CreateBackup(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled backup failed", "error", err)
		return
	}
	s.logger.InfoContext(ctx, "scheduled backup completed", "file", path)
}

// RunMaintenance logs table statistics. It performs no VACUUM or ANALYZE.
func (s *Scheduler) RunMaintenance(ctx context.Context) {
	tables, err := s.monitor.TableStats(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "maintenance report failed", "error", err)
		return
	}

	for _, t := range tables {
		attrs := []any{
			"table", t.Schema + "." + t.Table,
			"live_tuples", t.LiveTuples,
			"dead_tuples", t.DeadTuples,
			"seq_scan", t.SeqScan,
			"idx_scan", t.IdxScan,
		}
		if t.DeadTupleRatio() >= deadTupleWarnRatio {
			s.logger.WarnContext(ctx, "table has many dead tuples", attrs...)
			continue
		}
		s.logger.InfoContext(ctx, "table statistics", attrs...)
	}
	s.logger.InfoContext(ctx, "maintenance report completed", "tables", len(tables))
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
