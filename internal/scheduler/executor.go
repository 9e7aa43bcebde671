package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Run status values.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// Run describes the latest execution of a job.
type Run struct {
	Job       string        `json:"job"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"durationNs"`
	RunCount  int           `json:"runCount"`
	FailCount int           `json:"failCount"`
}

// Runs returns the latest run of every job that has executed, by name.
func (s *Scheduler) Runs() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Run) int { return strings.Compare(a.Job, b.Job) })
	return out
}

// execute runs a single job execution with concurrency limiting.
func (s *Scheduler) execute(name string) {
	// Acquire semaphore.
	select {
	case s.semaphore <- struct{}{}:
	case <-s.ctx.Done():
		return
	}
	defer func() { <-s.semaphore }()

	s.mu.Lock()
	job, ok := s.defs[name]
	s.mu.Unlock()
	if !ok {
		return
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	startedAt := time.Now().UTC()
	err := runSafely(ctx, job.Run)
	s.record(name, startedAt, err)

	if err != nil {
		s.logger.Error("job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("job completed", "job", name, "duration", time.Since(startedAt))
}

func runSafely(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}

func (s *Scheduler) record(name string, startedAt time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.runs[name]
	r.Job = name
	r.StartedAt = startedAt
	r.Duration = time.Since(startedAt)
	r.RunCount++
	r.Status = RunStatusSuccess
	r.Error = ""
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		r.FailCount++
	}
	s.runs[name] = r
}
