package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueSize         = 300
	taskTimeout       = 5 * time.Minute
	evaluationTimeout = time.Hour
	maxRetryDelay     = 30 * time.Second
	cronParserOptions = cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor
)

type Scheduler struct {
	configs       ConfigSource
	syncer        SourceSyncer
	alerts        AlertRunner
	scraper       TermScraper
	workerCount   int
	alertSchedule string
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface
}

// NewScheduler builds the worker pool. An empty alertSchedule disables the
// periodic alert evaluation; runs can still be enqueued on demand.
func NewScheduler(configs ConfigSource, syncer SourceSyncer, alerts AlertRunner, scraper TermScraper,
	workerCount int, alertSchedule string) (*Scheduler, error) {
	if workerCount <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", workerCount)
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithParser(cron.NewParser(cronParserOptions)),
		cron.WithChain(cron.Recover(logger)),
		cron.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		configs:       configs,
		syncer:        syncer,
		alerts:        alerts,
		scraper:       scraper,
		workerCount:   workerCount,
		alertSchedule: alertSchedule,
		cron:          c,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, queueSize),
	}

	if alertSchedule != "" {
		if _, err := c.AddFunc(alertSchedule, s.enqueueScheduledEvaluation); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid alert schedule %q: %w", alertSchedule, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.enqueueStartupTasks()
	s.cron.Start()

	slog.Info("Scheduler started", "workers", s.workerCount, "alert_schedule", s.alertSchedule)
}

func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueAlertEvaluation queues an immediate alert evaluation run
func (s *Scheduler) EnqueueAlertEvaluation() (TaskInterface, error) {
	task := NewEvaluateAlertsTask(s.alerts)
	if err := s.EnqueueTask(task); err != nil {
		return nil, err
	}
	return task, nil
}

// EnqueueScrape queues a background multi-source scrape for a term
func (s *Scheduler) EnqueueScrape(searchTerm string, sources []string) (TaskInterface, error) {
	task := NewScrapeTermTask(searchTerm, sources, s.scraper)
	if err := s.EnqueueTask(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Scheduler) enqueueStartupTasks() {
	sourceConfigs := s.configs.GetConfigs()
	if len(sourceConfigs) == 0 {
		slog.Debug("No source configurations found")
		return
	}

	slog.Debug("Processing source configurations", "count", len(sourceConfigs))

	for _, sourceConfig := range sourceConfigs {
		syncTask := NewSyncSourceConfigTask(sourceConfig, s.syncer)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSourceConfigTask", "source", sourceConfig.Code, "error", err)
		}
	}
}

func (s *Scheduler) enqueueScheduledEvaluation() {
	if _, err := s.EnqueueAlertEvaluation(); err != nil {
		slog.Warn("Failed to enqueue EvaluateAlertsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	timeout := taskTimeout
	if task.GetType() == TaskTypeEvaluateAlerts {
		timeout = evaluationTimeout
	}

	taskCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := retryDelayFor(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

func retryDelayFor(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := time.Duration(1<<uint(retryCount-1)) * time.Second
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

// cronLogger routes cron's internal logging to slog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
