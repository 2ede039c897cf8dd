package startup

import "context"

type funcDependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

// NewDependency adapts a pair of functions into a Dependency. Either function
// may be nil for dependencies with nothing to do on that side.
func NewDependency(name string, dependsOn []string, start, stop func(ctx context.Context) error) Dependency {
	return &funcDependency{
		name:      name,
		dependsOn: dependsOn,
		start:     start,
		stop:      stop,
	}
}

func (d *funcDependency) GetName() string {
	return d.name
}

func (d *funcDependency) DependsOn() []string {
	return d.dependsOn
}

func (d *funcDependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *funcDependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}
