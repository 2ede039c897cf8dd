package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type recordingDependency struct {
	name      string
	dependsOn []string
	startErrs []error
	starts    int
	log       *[]string
}

func (d *recordingDependency) GetName() string {
	return d.name
}

func (d *recordingDependency) DependsOn() []string {
	return d.dependsOn
}

func (d *recordingDependency) Start(ctx context.Context) error {
	d.starts++
	if len(d.startErrs) > 0 {
		err := d.startErrs[0]
		d.startErrs = d.startErrs[1:]
		if err != nil {
			return err
		}
	}
	*d.log = append(*d.log, "start:"+d.name)
	return nil
}

func (d *recordingDependency) Stop(ctx context.Context) error {
	*d.log = append(*d.log, "stop:"+d.name)
	return nil
}

func TestStartOrdersByDependencyGraph(t *testing.T) {
	var log []string
	s := NewStartup(noopLogger(), 1)
	s.AddDependency(&recordingDependency{name: "server", dependsOn: []string{"migrations"}, log: &log})
	s.AddDependency(&recordingDependency{name: "database", log: &log})
	s.AddDependency(&recordingDependency{name: "migrations", dependsOn: []string{"database"}, log: &log})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database", "start:migrations", "start:server"}, log)
}

func TestStartRetriesWithBackoff(t *testing.T) {
	var log []string
	flaky := &recordingDependency{name: "database", startErrs: []error{errors.New("connection refused")}, log: &log}

	s := NewStartup(noopLogger(), 3)
	s.AddDependency(flaky)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, flaky.starts)
}

func TestStartDoesNotRestartStartedDependencies(t *testing.T) {
	var log []string
	stable := &recordingDependency{name: "database", log: &log}
	flaky := &recordingDependency{name: "redis", startErrs: []error{errors.New("connection refused")}, log: &log}

	s := NewStartup(noopLogger(), 3)
	s.AddDependency(stable)
	s.AddDependency(flaky)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, stable.starts)
	assert.Equal(t, 2, flaky.starts)
}

func TestStartGivesUpAfterMaxAttempts(t *testing.T) {
	var log []string
	broken := &recordingDependency{
		name:      "database",
		startErrs: []error{errors.New("connection refused"), errors.New("connection refused")},
		log:       &log,
	}

	s := NewStartup(noopLogger(), 2)
	s.AddDependency(broken)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestStartRejectsUnregisteredDependency(t *testing.T) {
	var log []string
	s := NewStartup(noopLogger(), 1)
	s.AddDependency(&recordingDependency{name: "server", dependsOn: []string{"database"}, log: &log})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered")
}

func TestStopReversesRegistrationOrder(t *testing.T) {
	var log []string
	s := NewStartup(noopLogger(), 1)
	s.AddDependency(&recordingDependency{name: "database", log: &log})
	s.AddDependency(&recordingDependency{name: "consumer", dependsOn: []string{"database"}, log: &log})
	s.AddDependency(&recordingDependency{name: "server", log: &log})

	require.NoError(t, s.Start(context.Background()))

	log = log[:0]
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop:server", "stop:consumer", "stop:database"}, log)
}

func TestStopSkipsDependenciesThatNeverStarted(t *testing.T) {
	var log []string
	s := NewStartup(noopLogger(), 1)
	s.AddDependency(&recordingDependency{name: "database", log: &log})
	s.AddDependency(&recordingDependency{name: "consumer", startErrs: []error{errors.New("broker down")}, log: &log})

	require.Error(t, s.Start(context.Background()))

	log = log[:0]
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop:database"}, log)
}
