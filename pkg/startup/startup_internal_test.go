package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDependency struct {
	name      string
	dependsOn []string
	failures  int
	log       *[]string
}

func (d *fakeDependency) GetName() string     { return d.name }
func (d *fakeDependency) DependsOn() []string { return d.dependsOn }

func (d *fakeDependency) Start(context.Context) error {
	if d.failures > 0 {
		d.failures--
		return errors.New(d.name + " unavailable")
	}
	*d.log = append(*d.log, "start:"+d.name)
	return nil
}

func (d *fakeDependency) Stop(context.Context) error {
	*d.log = append(*d.log, "stop:"+d.name)
	return nil
}

func newTestStartup(maxAttempts int) *Startup {
	s := New(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.unit = time.Millisecond
	return s
}

func TestStartup_OrdersByDependency(t *testing.T) {
	var log []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "scheduler", dependsOn: []string{"store"}, log: &log})
	s.AddDependency(&fakeDependency{name: "store", log: &log})
	s.AddDependency(&fakeDependency{name: "events", log: &log})

	require.NoError(t, s.Start(t.Context()))
	assert.Equal(t, []string{"start:store", "start:scheduler", "start:events"}, log)
	assert.Equal(t, StatusStarted, s.Status("scheduler"))

	require.NoError(t, s.Stop(t.Context()))
	assert.Equal(t, []string{"stop:events", "stop:scheduler", "stop:store"}, log[3:])
}

func TestStartup_RetriesThenSucceeds(t *testing.T) {
	var log []string
	s := newTestStartup(4)
	s.AddDependency(&fakeDependency{name: "store", failures: 2, log: &log})

	require.NoError(t, s.Start(t.Context()))
	assert.Equal(t, []string{"start:store"}, log)
}

func TestStartup_GivesUp(t *testing.T) {
	var log []string
	s := newTestStartup(2)
	s.AddDependency(&fakeDependency{name: "store", failures: 5, log: &log})

	err := s.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestStartup_UnknownDependency(t *testing.T) {
	var log []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "scheduler", dependsOn: []string{"store"}, log: &log})

	err := s.Start(t.Context())
	assert.ErrorContains(t, err, "unknown dependency 'store'")
}
