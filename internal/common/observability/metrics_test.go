package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObservability_ZeroValueIsSafe(t *testing.T) {
	var nilObs *Observability
	assert.NotPanics(t, func() {
		nilObs.RecordSession(context.Background(), "created")
		nilObs.RecordAction(context.Background(), "confirmPlan", time.Second, "ok")
		nilObs.Shutdown()

		zero := &Observability{}
		zero.RecordSession(context.Background(), "created")
		zero.Shutdown()
	})
}

func TestObservability_Records(t *testing.T) {
	o := New("lead-wizard-test")
	assert.NotNil(t, o)
	assert.NotPanics(t, func() {
		o.RecordSession(context.Background(), "created")
		o.RecordAction(context.Background(), "submitPrimary", 120*time.Millisecond, "error")
		o.Shutdown()
	})
}
