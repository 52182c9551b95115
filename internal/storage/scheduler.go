package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SchedulerConfig holds configuration for periodic backups.
type SchedulerConfig struct {
	// Interval between backups. Must be positive.
	Interval time.Duration

	// Keep is how many backups survive pruning. Zero keeps all.
	Keep int

	// Password encrypts each backup when set.
	Password string

	// StartImmediately takes a backup as soon as Run starts.
	StartImmediately bool
}

// SchedulerStatus is a snapshot of scheduler activity.
type SchedulerStatus struct {
	LastBackup   time.Time
	LastPath     string
	LastError    error
	BackupCount  int
	FailureCount int
}

// BackupScheduler takes backups on a fixed interval and prunes old ones.
type BackupScheduler struct {
	manager *BackupManager
	config  SchedulerConfig
	logger  *zap.Logger

	// OnBackup is called after each attempt.
	OnBackup func(path string, err error)

	mu     sync.RWMutex
	status SchedulerStatus
}

// NewBackupScheduler creates a scheduler for manager.
func NewBackupScheduler(manager *BackupManager, config SchedulerConfig, logger *zap.Logger) (*BackupScheduler, error) {
	if manager == nil {
		return nil, fmt.Errorf("backup manager cannot be nil")
	}
	if config.Interval <= 0 {
		return nil, fmt.Errorf("backup interval must be positive: %v", config.Interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupScheduler{
		manager: manager,
		config:  config,
		logger:  logger,
	}, nil
}

// Run takes backups until ctx is cancelled. Backup failures are logged and
// counted, not returned.
func (s *BackupScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info("Backup scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.String("dir", s.manager.Dir()))

	if s.config.StartImmediately {
		s.RunOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Backup scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce takes one backup and prunes.
func (s *BackupScheduler) RunOnce(ctx context.Context) (string, error) {
	path, err := s.manager.Backup(ctx, BackupOptions{Password: s.config.Password})
	if err == nil {
		var removed []string
		removed, err = s.manager.Prune(s.config.Keep)
		if len(removed) > 0 {
			s.logger.Debug("Pruned old backups", zap.Strings("paths", removed))
		}
	}

	s.mu.Lock()
	s.status.LastBackup = time.Now()
	s.status.LastError = err
	if err != nil {
		s.status.FailureCount++
	} else {
		s.status.BackupCount++
		s.status.LastPath = path
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled backup failed", zap.Error(err))
	} else {
		s.logger.Info("Scheduled backup complete", zap.String("path", path))
	}

	if s.OnBackup != nil {
		s.OnBackup(path, err)
	}
	return path, err
}

// Status returns a snapshot of scheduler activity.
func (s *BackupScheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
