package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/price-comb/app/alerts"
)

type EvaluateAlertsTask struct {
	Task
	runner AlertRunner
}

func NewEvaluateAlertsTask(runner AlertRunner) *EvaluateAlertsTask {
	task := NewTask(TaskTypeEvaluateAlerts, "alerts")
	// a failed run is picked up by the next scheduled tick
	task.MaxRetries = 0

	return &EvaluateAlertsTask{
		Task:   task,
		runner: runner,
	}
}

func (t *EvaluateAlertsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.runner.RunOnce(ctx)
	if errors.Is(err, alerts.ErrAlreadyRunning) {
		slog.Info("Alert evaluation already running, skipping", "id", t.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to evaluate alerts: %w", err)
	}

	slog.Info("Task completed",
		"type", "EvaluateAlerts",
		"duration", t.GetDuration(),
		"alerts", summary.Alerts,
		"fired", summary.Fired,
		"failed", summary.Failed,
		"scrapes", summary.Scrapes,
		"cancelled", summary.Cancelled)

	return nil
}
