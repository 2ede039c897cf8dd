package insight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrSweeperAlreadyRunning is returned when trying to start an already running sweeper
var ErrSweeperAlreadyRunning = errors.New("sweeper already running")

const (
	// DefaultSweepInterval is the default interval between reconciliation sweeps
	DefaultSweepInterval = time.Hour

	// DefaultLockTTL is the default TTL for the distributed sweep lock
	DefaultLockTTL = 5 * time.Minute

	// sweepLockKey guards the cross-tenant sweep
	sweepLockKey = "insight:sweep"
)

// TenantSource lists tenants that still have open insights
type TenantSource interface {
	ListOpenTenants(ctx context.Context) ([]string, error)
}

// SweepTarget runs one tenant's reconciliation pass
type SweepTarget interface {
	Reconcile(ctx context.Context, tenantID string) (*ReconcileResult, error)
}

// SweeperConfig holds configuration for the sweeper
type SweeperConfig struct {
	// SweepInterval is how often to run a reconciliation sweep
	SweepInterval time.Duration

	// LockTTL is how long to hold the distributed sweep lock
	LockTTL time.Duration
}

// DefaultSweeperConfig returns the default sweeper configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		SweepInterval: DefaultSweepInterval,
		LockTTL:       DefaultLockTTL,
	}
}

// Sweeper periodically reconciles insights across all tenants. A
// distributed lock keeps one instance sweeping at a time; the others
// skip the cycle. Reconciliation is idempotent, so overlapping or
// on-demand runs converge to the same state.
type Sweeper struct {
	target  SweepTarget
	tenants TenantSource
	locker  *redis.Locker
	config  SweeperConfig
	logger  ectologger.Logger

	// Coordination
	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewSweeper creates a new sweeper. locker may be nil when a single
// instance runs without Redis.
func NewSweeper(
	target SweepTarget,
	tenants TenantSource,
	locker *redis.Locker,
	config SweeperConfig,
	logger ectologger.Logger,
) *Sweeper {
	// Apply defaults
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Sweeper{
		target:   target,
		tenants:  tenants,
		locker:   locker,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the sweeper
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSweeperAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "insight.Sweeper.Start")
	defer span.End()

	s.logger.WithContext(ctx).Infof("Starting insight sweeper: sweep_interval=%s", s.config.SweepInterval)

	go s.sweepLoop(ctx)

	s.logger.WithContext(ctx).Info("Insight sweeper started")
	return nil
}

// Stop stops the sweeper gracefully
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping insight sweeper...")

	close(s.stopCh)

	// Wait for graceful shutdown with timeout
	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Insight sweeper stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Insight sweeper shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the sweeper is running
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// sweepLoop runs reconciliation cycles until stopped
func (s *Sweeper) sweepLoop(ctx context.Context) {
	defer close(s.stoppedC)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.runSweepCycle(ctx)

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debug("Insight sweeper loop stopping")
			return
		case <-ticker.C:
			s.runSweepCycle(ctx)
		}
	}
}

// runSweepCycle reconciles every tenant with open insights
func (s *Sweeper) runSweepCycle(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "insight.Sweeper.runSweepCycle")
	defer span.End()

	if s.locker != nil {
		lock, err := s.locker.Acquire(ctx, sweepLockKey, s.config.LockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockNotAcquired) {
				s.logger.WithContext(ctx).Debug("Another instance holds the sweep lock, skipping cycle")
				metrics.SweepsTotal.WithLabelValues("skipped").Inc()
				return
			}
			s.logger.WithContext(ctx).WithError(err).Error("Failed to acquire sweep lock")
			metrics.SweepsTotal.WithLabelValues("error").Inc()
			return
		}
		defer lock.Release(ctx)
	}

	start := time.Now()
	tenants, err := s.tenants.ListOpenTenants(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list tenants with open insights")
		metrics.SweepsTotal.WithLabelValues("error").Inc()
		return
	}

	if len(tenants) == 0 {
		s.logger.WithContext(ctx).Debug("No open insights to reconcile")
		metrics.InsightsOpen.Set(0)
		metrics.SweepsTotal.WithLabelValues("success").Inc()
		return
	}

	swept := 0
	failed := 0
	remaining := 0
	for _, tenantID := range tenants {
		result, err := s.target.Reconcile(ctx, tenantID)
		if err != nil {
			failed++
			s.logger.WithContext(ctx).WithError(err).Warnf("Failed to reconcile tenant %s", tenantID)
			continue
		}
		swept++
		remaining += result.Remaining
	}

	metrics.InsightsOpen.Set(float64(remaining))
	outcome := "success"
	if failed > 0 {
		outcome = "partial"
	}
	metrics.SweepsTotal.WithLabelValues(outcome).Inc()

	s.logger.WithContext(ctx).Infof("Sweep cycle completed: tenants=%d failed=%d open=%d duration=%s",
		swept, failed, remaining, time.Since(start))
}
