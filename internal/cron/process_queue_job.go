package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/taxsync/internal/syncqueue"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

const ProcessQueueJobName = "process-tax-queue"

type ProcessQueueJobParams struct {
	Logger    *logger.Logger
	Processor queueProcessor
}

type queueProcessor interface {
	Run(ctx context.Context) (syncqueue.Result, error)
}

func NewProcessQueueJob(params ProcessQueueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("queue processor required")
	}
	return &processQueueJob{logg: params.Logger, processor: params.Processor}, nil
}

type processQueueJob struct {
	logg      *logger.Logger
	processor queueProcessor
}

func (j *processQueueJob) Name() string { return ProcessQueueJobName }

func (j *processQueueJob) Run(ctx context.Context) error {
	res, err := j.processor.Run(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"claimed":   res.Claimed,
		"committed": res.Committed,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
	})
	if err != nil {
		return fmt.Errorf("process tax queue: %w", err)
	}
	if res.Failed > 0 {
		j.logg.Warn(logCtx, "tax queue drained with failures; replay errored records after review")
		return nil
	}
	j.logg.Info(logCtx, "tax queue drained")
	return nil
}
