package cron

import (
	"fmt"

	"github.com/angelmondragon/taxsync/internal/syncqueue"
	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/pkg/config"
	dbpkg "github.com/angelmondragon/taxsync/pkg/db"
	"github.com/angelmondragon/taxsync/pkg/logger"
	"github.com/angelmondragon/taxsync/pkg/metrics"
)

// DefaultJobsParams carries everything the standard job set needs.
type DefaultJobsParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      dbpkg.TxRunner
	Queue   *syncqueue.Service
	Logs    *syncqueue.LogRepository
	Client  taxservice.Client
	Metrics *metrics.TaxMetrics
}

// NewDefaultRegistry registers queue processing followed by log cleanup.
func NewDefaultRegistry(params DefaultJobsParams) (*Registry, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	retention, err := params.Config.Tax.LogRetentionDays()
	if err != nil {
		return nil, err
	}

	processor, err := syncqueue.NewProcessor(syncqueue.ProcessorParams{
		Queue:     params.Queue,
		Client:    params.Client,
		Config:    params.Config.Tax,
		Logger:    params.Logger,
		Metrics:   params.Metrics,
		BatchSize: params.Config.Queue.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("queue processor: %w", err)
	}
	processJob, err := NewProcessQueueJob(ProcessQueueJobParams{Logger: params.Logger, Processor: processor})
	if err != nil {
		return nil, err
	}
	cleanupJob, err := NewLogCleanupJob(LogCleanupJobParams{
		Logger:        params.Logger,
		DB:            params.DB,
		Repository:    params.Logs,
		RetentionDays: retention,
	})
	if err != nil {
		return nil, err
	}
	return NewRegistry(processJob, cleanupJob)
}
