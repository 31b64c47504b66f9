// Package scheduler runs periodic maintenance of the long-term memory store.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// DefaultSchedule prunes once an hour.
const DefaultSchedule = "@hourly"

// Pruner is the subset of the long-term store the prune job needs.
type Pruner interface {
	Prune(ctx context.Context, maxMemories int, importanceThreshold float64) (int, error)
}

// Config controls the prune job.
type Config struct {
	Schedule            string
	MaxMemories         int
	ImportanceThreshold float64
	// Timeout bounds a single prune run. Zero means one minute.
	Timeout time.Duration
}

// Service schedules prune runs with a standard cron expression.
type Service struct {
	store  Pruner
	config Config
	logger *log.Logger

	mu      sync.Mutex
	cron    *rcron.Cron
	ctx     context.Context
	runs    int
	pruned  int
	lastErr error
}

// Stats reports what the service has done so far.
type Stats struct {
	Runs      int
	Pruned    int
	LastError error
}

// New returns a stopped service. The schedule is validated here so a bad
// expression fails at startup.
func New(store Pruner, config Config, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("scheduler: store is required")
	}
	if config.Schedule == "" {
		config.Schedule = DefaultSchedule
	}
	if _, err := rcron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", config.Schedule, err)
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{store: store, config: config, logger: logger}, nil
}

// Start registers the prune job and starts the cron runner. The runner stops
// when ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler: already started")
	}

	c := rcron.New()
	if _, err := c.AddFunc(s.config.Schedule, func() { _, _ = s.RunOnce(s.runContext()) }); err != nil {
		return fmt.Errorf("scheduler: register prune job: %w", err)
	}
	s.cron = c
	s.ctx = ctx
	c.Start()
	s.logger.Printf("[scheduler] prune job scheduled (%s, max=%d, threshold=%.2f)",
		s.config.Schedule, s.config.MaxMemories, s.config.ImportanceThreshold)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the runner and waits for a running job to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Printf("[scheduler] stopped")
}

// RunOnce prunes immediately and returns the number of deleted memories.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	n, err := s.store.Prune(ctx, s.config.MaxMemories, s.config.ImportanceThreshold)

	s.mu.Lock()
	s.runs++
	s.pruned += n
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Printf("[scheduler] Warning: prune failed: %v", err)
		return n, err
	}
	if n > 0 {
		s.logger.Printf("[scheduler] pruned %d memories", n)
	}
	return n, nil
}

// Stats returns a snapshot of the run counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Runs: s.runs, Pruned: s.pruned, LastError: s.lastErr}
}

func (s *Service) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}
