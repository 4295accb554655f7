package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Action is a job body. It receives a context that is cancelled when the
// scheduler stops.
type Action func(ctx context.Context) error

type job struct {
	name    string
	cadence Cadence
	action  Action
	lastRun time.Time
	nextRun time.Time
}

// JobInfo describes one registered job for introspection.
type JobInfo struct {
	Name    string     `json:"name"`
	Cadence string     `json:"cadence"`
	LastRun *time.Time `json:"lastRun,omitempty"`
	NextRun time.Time  `json:"nextRun"`
}

const (
	tickResolution = time.Second
	stopTimeout    = 5 * time.Second
)

// Scheduler ticks once a second and runs due jobs sequentially in
// registration order. Job failures are logged and never stop the loop.
type Scheduler struct {
	mu     sync.Mutex
	jobs   []*job
	byName map[string]*job

	runMu   sync.Mutex // held while any job body executes
	logger  *slog.Logger
	now     func() time.Time
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		byName: map[string]*job{},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a named job. The first due time is one cadence step from now.
func (s *Scheduler) Register(name string, cadence Cadence, action Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	j := &job{
		name:    name,
		cadence: cadence,
		action:  action,
		nextRun: cadence.Next(s.now()),
	}
	s.jobs = append(s.jobs, j)
	s.byName[name] = j
	return nil
}

// Start spins up the tick loop. Calling Start on a running scheduler is a
// logged no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("scheduler already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
	s.logger.Info("scheduler started")
}

// Stop signals the loop to exit, waits for it with a bounded timeout and
// clears all job registrations.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.logger.Warn("scheduler loop did not exit before timeout")
	}

	s.mu.Lock()
	s.jobs = nil
	s.byName = map[string]*job{}
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

// RunNow executes a job immediately regardless of its cadence, through the
// same error-isolating wrapper as scheduled runs.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	s.runJob(ctx, j)
	s.logger.Info("manually executed job", slog.String("job", name))
	return nil
}

// Jobs reports all registered jobs in registration order.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		info := JobInfo{
			Name:    j.name,
			Cadence: j.cadence.Describe(),
			NextRun: j.nextRun,
		}
		if !j.lastRun.IsZero() {
			last := j.lastRun
			info.LastRun = &last
		}
		infos = append(infos, info)
	}
	return infos
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(tickResolution)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// runPending executes every due job, one after another. A slow job delays
// but never skips the jobs behind it.
func (s *Scheduler) runPending(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	due := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if !j.nextRun.After(now) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, j)
		ran := s.now()
		s.mu.Lock()
		j.lastRun = ran
		j.nextRun = j.cadence.Next(ran)
		s.mu.Unlock()
	}
}

// runJob wraps one job execution, containing both errors and panics.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("job panicked", slog.String("job", j.name), slog.Any("panic", rec))
		}
	}()
	s.logger.Debug("running job", slog.String("job", j.name))
	if err := j.action(ctx); err != nil {
		s.logger.Error("job failed", slog.String("job", j.name), slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("job completed", slog.String("job", j.name))
}
