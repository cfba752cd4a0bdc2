package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/price-comb/app/source"
)

type SyncSourceConfigTask struct {
	Task
	SourceConfig *source.Config
	syncer       SourceSyncer
}

func NewSyncSourceConfigTask(sourceConfig *source.Config, syncer SourceSyncer) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:         NewTask(TaskTypeSyncSourceConfig, sourceConfig.Code),
		SourceConfig: sourceConfig,
		syncer:       syncer,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	row, err := t.syncer.Sync(ctx, t.SourceConfig)
	if err != nil {
		slog.Error("Task failed", "type", "SyncSourceConfig", "source", t.Subject, "error", err)
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSourceConfig",
		"source", t.Subject,
		"id", row.ID,
		"active", row.Active,
		"duration", t.GetDuration())

	return nil
}
