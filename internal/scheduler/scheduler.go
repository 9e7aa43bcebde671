package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Job is a recurring maintenance task.
type Job struct {
	Name  string
	Every time.Duration
	// Timeout bounds one run. Zero uses the scheduler default.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Config holds the scheduler configuration.
type Config struct {
	Logger         *slog.Logger
	MaxConcurrency int
	// DefaultTimeout bounds runs of jobs without their own timeout.
	DefaultTimeout time.Duration
}

// Scheduler runs maintenance jobs on fixed intervals using gocron.
type Scheduler struct {
	cron      gocron.Scheduler
	cfg       Config
	jobs      map[string]uuid.UUID // job name → gocron job UUID
	defs      map[string]Job
	runs      map[string]Run
	mu        sync.Mutex
	semaphore chan struct{}
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(cfg Config) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}

	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 2
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron,
		cfg:       cfg,
		jobs:      make(map[string]uuid.UUID),
		defs:      make(map[string]Job),
		runs:      make(map[string]Run),
		semaphore: make(chan struct{}, maxConc),
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start starts the gocron scheduler.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	s.logger.Info("maintenance scheduler started", "jobs", n)
	return nil
}

// Stop cancels running jobs and shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.cron.Shutdown()
}

// Schedule adds or replaces a job. The first run happens immediately once
// the scheduler is started; runs of one job never overlap.
func (s *Scheduler) Schedule(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}
	if job.Every <= 0 {
		return fmt.Errorf("job %q: interval must be positive", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Remove existing job if any.
	if jobID, ok := s.jobs[job.Name]; ok {
		if err := s.cron.RemoveJob(jobID); err != nil {
			s.logger.Warn("failed to remove existing job", "job", job.Name, "error", err)
		}
		delete(s.jobs, job.Name)
	}

	name := job.Name
	j, err := s.cron.NewJob(
		gocron.DurationJob(job.Every),
		gocron.NewTask(func() { s.execute(name) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("scheduling job %q: %w", job.Name, err)
	}

	s.jobs[name] = j.ID()
	s.defs[name] = job
	s.logger.Info("job scheduled", "job", name, "every", job.Every)
	return nil
}

// Unschedule removes a job from the gocron scheduler.
func (s *Scheduler) Unschedule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if jobID, ok := s.jobs[name]; ok {
		if err := s.cron.RemoveJob(jobID); err != nil {
			s.logger.Warn("failed to remove job", "job", name, "error", err)
		}
		delete(s.jobs, name)
		delete(s.defs, name)
		s.logger.Info("job unscheduled", "job", name)
	}
}
