package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/erp/salesops/internal/infrastructure/telemetry"
)

// JobStatus represents the outcome of the last run of a job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is a named unit of periodic work
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// JobState is a snapshot of a job's last execution
type JobState struct {
	Name        string     `json:"name"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	Runs        int        `json:"runs"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SchedulerConfig holds runner configuration
type SchedulerConfig struct {
	Enabled    bool
	JobTimeout time.Duration
	// RunOnStart executes every job once right after Start instead of waiting a full interval
	RunOnStart bool
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:    true,
		JobTimeout: 5 * time.Minute,
	}
}

// Option configures a PeriodicRunner
type Option func(*PeriodicRunner)

// WithMeter records per-job duration and outcome counters on the given meter
func WithMeter(meter metric.Meter) Option {
	return func(r *PeriodicRunner) {
		r.meter = meter
	}
}

type registeredJob struct {
	Job
	// run serializes executions; mu guards state
	run   sync.Mutex
	mu    sync.Mutex
	state JobState
}

// PeriodicRunner runs registered jobs on fixed intervals, one goroutine per job.
// A job never overlaps with itself.
type PeriodicRunner struct {
	config SchedulerConfig
	logger *zap.Logger
	meter  metric.Meter

	jobs     []*registeredJob
	duration *telemetry.Histogram
	runs     *telemetry.Counter

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewPeriodicRunner creates a new runner
func NewPeriodicRunner(config SchedulerConfig, logger *zap.Logger, opts ...Option) *PeriodicRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultSchedulerConfig().JobTimeout
	}
	r := &PeriodicRunner{
		config: config,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.meter != nil {
		r.initMetrics()
	}
	return r
}

func (r *PeriodicRunner) initMetrics() {
	var err error
	r.duration, err = telemetry.NewHistogram(r.meter, telemetry.HistogramOpts{
		Name:        "salesops_job_duration_seconds",
		Description: "Duration of periodic job runs",
		Unit:        "s",
		Boundaries:  telemetry.JobDurationBuckets,
	})
	if err != nil {
		r.logger.Warn("Failed to create job duration histogram", zap.Error(err))
	}
	r.runs, err = telemetry.NewCounter(r.meter, "salesops_job_runs_total", "Total periodic job runs", "{run}")
	if err != nil {
		r.logger.Warn("Failed to create job runs counter", zap.Error(err))
	}
}

// Register adds a job. Jobs must be registered before Start.
func (r *PeriodicRunner) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("%w: job needs a name and a body", ErrInvalidConfig)
	}
	if job.Interval <= 0 {
		return fmt.Errorf("%w: job %s has non-positive interval %s", ErrInvalidConfig, job.Name, job.Interval)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("%w: duplicate job %s", ErrInvalidConfig, job.Name)
		}
	}
	r.jobs = append(r.jobs, &registeredJob{
		Job:   job,
		state: JobState{Name: job.Name, Status: JobStatusPending},
	})
	return nil
}

// Start launches one ticker loop per registered job
func (r *PeriodicRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	if !r.config.Enabled {
		r.mu.Unlock()
		r.logger.Info("Scheduler is disabled")
		return nil
	}
	r.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	jobs := append([]*registeredJob(nil), r.jobs...)
	r.mu.Unlock()

	for _, job := range jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}

	r.logger.Info("Scheduler started",
		zap.Int("jobs", len(jobs)),
		zap.Duration("job_timeout", r.config.JobTimeout),
	)
	return nil
}

// Stop cancels the job loops and waits for in-flight runs
func (r *PeriodicRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether Start has been called without a matching Stop
func (r *PeriodicRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRunning
}

// RunOnce executes the named job immediately and synchronously
func (r *PeriodicRunner) RunOnce(ctx context.Context, name string) error {
	job := r.find(name)
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return r.execute(ctx, job)
}

// States returns a snapshot of every job's last run
func (r *PeriodicRunner) States() []JobState {
	r.mu.Lock()
	jobs := append([]*registeredJob(nil), r.jobs...)
	r.mu.Unlock()

	out := make([]JobState, 0, len(jobs))
	for _, job := range jobs {
		job.mu.Lock()
		out = append(out, job.state)
		job.mu.Unlock()
	}
	return out
}

func (r *PeriodicRunner) find(name string) *registeredJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.Name == name {
			return job
		}
	}
	return nil
}

func (r *PeriodicRunner) loop(ctx context.Context, job *registeredJob) {
	defer r.wg.Done()

	if r.config.RunOnStart {
		_ = r.execute(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Job loop stopping", zap.String("job", job.Name))
			return
		case <-ticker.C:
			_ = r.execute(ctx, job)
		}
	}
}

// execute runs a job under the configured timeout. Runs of the same job are serialized.
func (r *PeriodicRunner) execute(ctx context.Context, job *registeredJob) (err error) {
	job.run.Lock()
	defer job.run.Unlock()

	started := time.Now()
	job.mu.Lock()
	job.state.Status = JobStatusRunning
	job.state.StartedAt = &started
	job.state.Error = ""
	job.state.Runs++
	job.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, r.config.JobTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", ErrJobPanicked, job.Name, rec)
		}
		r.finish(ctx, job, started, err)
	}()

	return job.Run(jobCtx)
}

func (r *PeriodicRunner) finish(ctx context.Context, job *registeredJob, started time.Time, err error) {
	completed := time.Now()
	elapsed := completed.Sub(started)

	job.mu.Lock()
	job.state.CompletedAt = &completed
	if err != nil {
		job.state.Status = JobStatusFailed
		job.state.Error = err.Error()
	} else {
		job.state.Status = JobStatusSuccess
	}
	job.mu.Unlock()

	outcome := "success"
	if err != nil {
		outcome = "failure"
		r.logger.Error("Job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
	} else {
		r.logger.Debug("Job completed",
			zap.String("job", job.Name),
			zap.Duration("duration", elapsed),
		)
	}

	attrs := []attribute.KeyValue{
		telemetry.AttrJob.String(job.Name),
		telemetry.AttrOutcome.String(outcome),
	}
	if r.duration != nil {
		r.duration.RecordDuration(ctx, elapsed, attrs...)
	}
	if r.runs != nil {
		r.runs.Inc(ctx, attrs...)
	}
}
