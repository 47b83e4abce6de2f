package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/taxsync/pkg/db"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

const LogCleanupJobName = "tax-log-cleanup"

type LogCleanupJobParams struct {
	Logger     *logger.Logger
	DB         dbpkg.TxRunner
	Repository logCleanupRepo
	// RetentionDays of zero keeps every entry.
	RetentionDays int
}

type logCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

func NewLogCleanupJob(params LogCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("sync log repository required")
	}
	if params.RetentionDays < 0 {
		return nil, fmt.Errorf("retention days must not be negative")
	}
	return &logCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: params.RetentionDays,
		now:       time.Now,
	}, nil
}

type logCleanupJob struct {
	logg      *logger.Logger
	db        dbpkg.TxRunner
	repo      logCleanupRepo
	retention int
	now       func() time.Time
}

func (j *logCleanupJob) Name() string { return LogCleanupJobName }

func (j *logCleanupJob) Run(ctx context.Context) error {
	if j.retention == 0 {
		j.logg.Debug(ctx, "sync log retention disabled")
		return nil
	}
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteOlderThan(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("tax log cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "tax sync log cleanup complete")
	return nil
}
