package insight

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTenantSource struct {
	tenants []string
}

func (f *fakeTenantSource) ListOpenTenants(_ context.Context) ([]string, error) {
	return f.tenants, nil
}

type fakeSweepTarget struct {
	mu         sync.Mutex
	reconciled []string
	failFor    map[string]bool
	calls      chan string
}

func newFakeSweepTarget() *fakeSweepTarget {
	return &fakeSweepTarget{calls: make(chan string, 16)}
}

func (f *fakeSweepTarget) Reconcile(_ context.Context, tenantID string) (*ReconcileResult, error) {
	f.mu.Lock()
	f.reconciled = append(f.reconciled, tenantID)
	f.mu.Unlock()
	f.calls <- tenantID

	if f.failFor[tenantID] {
		return nil, errors.New("reconcile failed")
	}
	return &ReconcileResult{Checked: 1, Remaining: 1}, nil
}

func waitForCall(t *testing.T, calls chan string) string {
	t.Helper()
	select {
	case tenantID := <-calls:
		return tenantID
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reconcile call")
		return ""
	}
}

func TestSweeperRunsImmediateCycleOnStart(t *testing.T) {
	target := newFakeSweepTarget()
	sweeper := NewSweeper(target, &fakeTenantSource{tenants: []string{"t1", "t2"}}, nil, SweeperConfig{
		SweepInterval: time.Hour,
	}, noopLogger())

	require.NoError(t, sweeper.Start(context.Background()))
	defer sweeper.Stop(context.Background())

	seen := map[string]bool{
		waitForCall(t, target.calls): true,
		waitForCall(t, target.calls): true,
	}
	assert.True(t, seen["t1"])
	assert.True(t, seen["t2"])
}

func TestSweeperLifecycle(t *testing.T) {
	target := newFakeSweepTarget()
	sweeper := NewSweeper(target, &fakeTenantSource{}, nil, SweeperConfig{SweepInterval: time.Hour}, noopLogger())

	require.NoError(t, sweeper.Start(context.Background()))
	assert.True(t, sweeper.IsRunning())
	assert.ErrorIs(t, sweeper.Start(context.Background()), ErrSweeperAlreadyRunning)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sweeper.Stop(stopCtx))
	assert.False(t, sweeper.IsRunning())

	// Stopping an already stopped sweeper is a no-op.
	require.NoError(t, sweeper.Stop(stopCtx))
}

func TestRunSweepCycleContinuesPastTenantFailure(t *testing.T) {
	target := newFakeSweepTarget()
	target.failFor = map[string]bool{"bad": true}
	sweeper := NewSweeper(target, &fakeTenantSource{tenants: []string{"bad", "good"}}, nil, SweeperConfig{}, noopLogger())

	sweeper.runSweepCycle(context.Background())

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.ElementsMatch(t, []string{"bad", "good"}, target.reconciled)
}
