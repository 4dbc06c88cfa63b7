package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerTicksAndStops(t *testing.T) {
	r := NewRunner()
	ticked := make(chan struct{}, 1)
	require.NoError(t, r.Add("tick", time.Second, func() error {
		select {
		case ticked <- struct{}{}:
		default:
		}
		return nil
	}))
	r.Start()
	select {
	case <-ticked:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ticked")
	}
	r.Stop()
}

func TestGuardContainsPanicsAndErrors(t *testing.T) {
	assert.NotPanics(t, func() {
		Guard("panicky", func() error { panic("boom") })
	})
	assert.NotPanics(t, func() {
		Guard("failing", func() error { return errors.New("tick failed") })
	})
}
