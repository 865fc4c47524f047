package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/labelhive-api/internal/domain/batching"
	"github.com/phrazzld/labelhive-api/internal/service"
)

// ErrSweeperRunning is returned by Start when the sweeper is already running.
var ErrSweeperRunning = errors.New("expiry sweeper already running")

// Sweeper performs one expiry sweep. *service.BatchService implements it.
type Sweeper interface {
	RunExpirySweep(ctx context.Context) (service.SweepReport, error)
}

// ExpirySweeperConfig holds configuration for the expiry sweeper.
type ExpirySweeperConfig struct {
	// Interval is the time between sweeps.
	Interval time.Duration

	// RunTimeout bounds a single scheduled sweep. Zero means no bound.
	RunTimeout time.Duration
}

// DefaultExpirySweeperConfig returns an ExpirySweeperConfig with the default interval.
func DefaultExpirySweeperConfig() ExpirySweeperConfig {
	return ExpirySweeperConfig{
		Interval:   batching.DefaultSweepInterval,
		RunTimeout: 5 * time.Minute,
	}
}

// ExpirySweeper runs a Sweeper on a fixed interval. Runs never overlap,
// whether they come from the ticker or from RunOnce.
type ExpirySweeper struct {
	sweeper Sweeper
	config  ExpirySweeperConfig
	logger  *slog.Logger

	runMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewExpirySweeper creates an ExpirySweeper. A non-positive interval falls
// back to the default.
func NewExpirySweeper(sweeper Sweeper, config ExpirySweeperConfig, logger *slog.Logger) *ExpirySweeper {
	if config.Interval <= 0 {
		config.Interval = batching.DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirySweeper{
		sweeper: sweeper,
		config:  config,
		logger:  logger.With(slog.String("component", "expiry_sweeper")),
	}
}

// Start begins sweeping every Interval in a background goroutine. The first
// sweep happens one interval after Start.
func (s *ExpirySweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSweeperRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("expiry sweeper started", slog.Duration("interval", s.config.Interval))
	return nil
}

// Stop cancels the schedule and waits for an in-flight sweep to return.
// It is safe to call more than once.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("expiry sweeper stopped")
}

// Running reports whether the schedule is active.
func (s *ExpirySweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce performs one sweep synchronously and returns its report.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (service.SweepReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.sweeper.RunExpirySweep(ctx)
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *ExpirySweeper) tick(ctx context.Context) {
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("scheduled expiry sweep failed", slog.String("error", err.Error()))
	}
}
