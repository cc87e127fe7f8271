// Package main is the entrypoint for the scheduler.
//
// The scheduler is a task multiplexer. EventBridge rules send a TaskPayload
// naming the task and the handler routes it to the schedule engine or the
// trigger service. Outside Lambda the same handler runs every task on a local
// ticker.
//
// Handler flow:
//  1. Parse the TaskPayload and determine the reference time.
//  2. Acquire the distributed lock for the task's current window.
//  3. Record a job_history row.
//  4. Run the task.
//  5. Finish the job_history row with status and item count.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"leanpulse/internal/app"
	"leanpulse/internal/config"
	"leanpulse/internal/db"
	"leanpulse/internal/lock"
	"leanpulse/internal/notifications/recipients"
	"leanpulse/internal/reports"
	"leanpulse/internal/scheduler"
	"leanpulse/internal/triggers"
	"leanpulse/internal/types"
	"leanpulse/internal/worker"
)

// ReportRunner fires due scheduled reports.
type ReportRunner interface {
	RunDue(ctx context.Context, now time.Time) (int, error)
}

// TriggerRunner runs the cron-driven triggers.
type TriggerRunner interface {
	TaskReminders(ctx context.Context, now time.Time) (*types.TriggerSummary, error)
	CategoryDigest(ctx context.Context, c types.Category, now time.Time) (*types.TriggerSummary, error)
}

// JobLocker abstracts the distributed lock acquisition.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
}

// JobHistorian abstracts the job history recording.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// RunMetrics records per-task item counts.
type RunMetrics interface {
	RecordReportsFired(ctx context.Context, task string, n int)
}

// Handler holds the dependencies for the scheduler handler function.
type Handler struct {
	Reports    ReportRunner
	Triggers   TriggerRunner
	JobLock    JobLocker
	JobHistory JobHistorian
	Metrics    RunMetrics // optional

	// Location is the facility zone used for daily and weekly lock windows.
	Location     *time.Location
	TickInterval time.Duration
	LockTTL      time.Duration

	WorkerID string
	Logger   *slog.Logger

	now func() time.Time
}

// Handle processes one TaskPayload.
func (h *Handler) Handle(ctx context.Context, payload scheduler.TaskPayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := h.clock()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	taskStr := string(payload.Task)
	logger.InfoContext(ctx, "scheduler handler invoked",
		"task", taskStr,
		"reference_time", now.Format(time.RFC3339),
		"worker_id", h.WorkerID,
	)

	if payload.Task == "" {
		return "", fmt.Errorf("empty task type in scheduler payload")
	}

	window, ttl, err := h.lockWindow(payload.Task, now)
	if err != nil {
		return "", err
	}
	lockID := taskStr + ":" + window
	acquired, err := h.JobLock.Acquire(ctx, lockID, h.WorkerID, ttl)
	if err != nil {
		logger.ErrorContext(ctx, "failed to acquire job lock", "lock_id", lockID, "error", err)
		return "", fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		logger.InfoContext(ctx, "job lock not acquired, another worker is processing", "lock_id", lockID)
		return fmt.Sprintf("skipped: lock %s held by another worker", lockID), nil
	}

	// History is best effort; jobID 0 skips Finish.
	jobID, err := h.JobHistory.Start(ctx, taskStr)
	if err != nil {
		logger.ErrorContext(ctx, "failed to start job history", "task", taskStr, "error", err)
		jobID = 0
	}

	items, execErr := h.dispatch(ctx, payload.Task, now)

	status := "success"
	if execErr != nil {
		status = "failed"
	}
	if jobID != 0 {
		if finishErr := h.JobHistory.Finish(ctx, jobID, status, items, execErr); finishErr != nil {
			logger.ErrorContext(ctx, "failed to finish job history",
				"job_id", jobID, "task", taskStr, "error", finishErr)
		}
	}

	if execErr != nil {
		logger.ErrorContext(ctx, "task execution failed",
			"task", taskStr, "error", execErr, "items_before_error", items)
		return "", fmt.Errorf("task %s failed: %w", taskStr, execErr)
	}

	if h.Metrics != nil {
		h.Metrics.RecordReportsFired(ctx, taskStr, items)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", taskStr, items)
	logger.InfoContext(ctx, result, "task", taskStr, "items", items)
	return result, nil
}

// dispatch routes a task to its service. Trigger tasks count dispatches.
func (h *Handler) dispatch(ctx context.Context, task scheduler.TaskType, now time.Time) (int, error) {
	switch task {
	case scheduler.TaskScheduledReports:
		return h.Reports.RunDue(ctx, now)

	case scheduler.TaskTaskReminders:
		return summaryItems(h.Triggers.TaskReminders(ctx, now))

	case scheduler.TaskWeeklyReports:
		return summaryItems(h.Triggers.CategoryDigest(ctx, types.CategoryWeeklyReports, now))

	case scheduler.TaskDailyStandups:
		return summaryItems(h.Triggers.CategoryDigest(ctx, types.CategoryDailyStandups, now))

	default:
		return 0, fmt.Errorf("unknown task type: %q", task)
	}
}

func summaryItems(sum *types.TriggerSummary, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	return sum.Dispatches, nil
}

// lockWindow names the window a run belongs to and the lease that covers it.
// Scheduled reports lock per tick, reminders and stand-ups per facility day,
// and the weekly digest per ISO week.
func (h *Handler) lockWindow(task scheduler.TaskType, now time.Time) (string, time.Duration, error) {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	var (
		key    string
		window time.Duration
	)
	switch task {
	case scheduler.TaskScheduledReports:
		window = h.TickInterval
		if window <= 0 {
			window = time.Minute
		}
		key = now.Truncate(window).Format("2006-01-02T15:04")
	case scheduler.TaskTaskReminders, scheduler.TaskDailyStandups:
		window = 24 * time.Hour
		key = local.Format("2006-01-02")
	case scheduler.TaskWeeklyReports:
		window = 7 * 24 * time.Hour
		year, week := local.ISOWeek()
		key = fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return "", 0, fmt.Errorf("unknown task type: %q", task)
	}
	return key, max(window, h.LockTTL), nil
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now().UTC()
}

// RunAll runs every task once. Errors are logged; one task's failure does
// not stop the rest.
func (h *Handler) RunAll(ctx context.Context) {
	for _, task := range scheduler.AllTasks {
		if _, err := h.Handle(ctx, scheduler.TaskPayload{Task: task}); err != nil {
			h.Logger.ErrorContext(ctx, "scheduled task failed", "task", string(task), "error", err)
		}
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("scheduler initializing", "environment", cfg.Environment, "version", cfg.Build.Version)

	ctx := context.Background()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return fmt.Errorf("loading facility time zone: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}

	libLogger := types.NewSlogAdapter(logger)

	senders, err := app.Senders(cfg, libLogger)
	if err != nil {
		return err
	}
	metrics := app.Metrics(cfg, awsCfg, libLogger)
	dispatcher := app.NewDispatcher(cfg, db.NewNotificationLogRepository(pool), senders, metrics, libLogger)
	compiler := reports.NewCompiler(db.NewMetricsRepository(pool), loc)

	workers, err := worker.NewPool("scheduled-reports", cfg.Scheduler.PoolSize, libLogger)
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer workers.Release()

	engine := scheduler.NewEngine(scheduler.EngineConfig{
		Store:      db.NewScheduledReportRepository(pool),
		Compiler:   compiler,
		Dispatcher: dispatcher,
		Pool:       workers,
		Location:   loc,
		Logger:     libLogger.With("component", "schedule_engine"),
	})

	triggerSvc := triggers.NewService(triggers.Config{
		Resolver:   recipients.NewResolver(db.NewPreferenceRepository(pool)),
		Tasks:      db.NewTaskRepository(pool),
		Compiler:   compiler,
		Dispatcher: dispatcher,
		Location:   loc,
		Logger:     libLogger.With("component", "triggers"),
	})

	var locker JobLocker = db.NewJobLockRepository(pool)
	if cfg.Scheduler.RedisURL.IsSet() {
		redisLocker, err := lock.NewRedisLocker(ctx, cfg.Scheduler.RedisURL.Unmask())
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisLocker.Close()
		locker = redisLocker
		logger.Info("using redis tick lock")
	}

	workerID := uuid.New().String()
	handler := &Handler{
		Reports:      engine,
		Triggers:     triggerSvc,
		JobLock:      locker,
		JobHistory:   db.NewJobHistoryRepository(pool),
		Location:     loc,
		TickInterval: cfg.Scheduler.TickInterval,
		LockTTL:      cfg.Scheduler.LockTTL,
		WorkerID:     workerID,
		Logger:       logger,
	}
	if metrics != nil {
		handler.Metrics = metrics
	}

	logger.Info("scheduler initialized", "worker_id", workerID, "timezone", loc.String())

	if isLambdaEnvironment() {
		lambda.Start(handler.Handle)
		return nil
	}
	return runLocal(handler, cfg.Scheduler.TickInterval, logger)
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runLocal runs every task once per tick until SIGINT or SIGTERM.
func runLocal(h *Handler, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = time.Minute
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("local ticker started", "interval", interval.String())
	h.RunAll(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			h.RunAll(ctx)
		}
	}
}
