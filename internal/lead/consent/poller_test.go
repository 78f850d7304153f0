package consent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lead-wizard/internal/common/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const tick = 5 * time.Millisecond

func TestPoller_StopsWhenCheckReportsDone(t *testing.T) {
	p := NewPoller(tick, logger.NewTestLogger(t))
	statuses := []string{"NOT_REQUESTED", "PENDING", "SIGNED"}

	var calls int32
	finished := make(chan struct{})
	started := p.Ensure(Key{LeadID: "L-1", SigningLink: "https://sign/1"}, func(ctx context.Context) bool {
		n := atomic.AddInt32(&calls, 1)
		done := statuses[n-1] == "SIGNED"
		if done {
			close(finished)
		}
		return done
	})
	require.True(t, started)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never reached SIGNED")
	}
	p.Shutdown()

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.False(t, p.Running())

	time.Sleep(5 * tick)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPoller_ChecksImmediately(t *testing.T) {
	p := NewPoller(time.Hour, nil)
	defer p.Shutdown()

	first := make(chan struct{}, 1)
	p.Ensure(Key{LeadID: "L-1", SigningLink: "s"}, func(ctx context.Context) bool {
		first <- struct{}{}
		return false
	})

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("no immediate check")
	}
	assert.True(t, p.Running())
}

func TestPoller_EnsureIsIdempotentPerKey(t *testing.T) {
	p := NewPoller(time.Hour, nil)
	defer p.Shutdown()

	check := func(ctx context.Context) bool { return false }
	key := Key{LeadID: "L-1", SigningLink: "s"}

	assert.True(t, p.Ensure(key, check))
	assert.False(t, p.Ensure(key, check))

	got, ok := p.Key()
	assert.True(t, ok)
	assert.Equal(t, key, got)
}

func TestPoller_NewKeyCancelsPreviousTask(t *testing.T) {
	p := NewPoller(time.Hour, nil)
	defer p.Shutdown()

	canceled := make(chan struct{})
	p.Ensure(Key{LeadID: "L-1", SigningLink: "old"}, func(ctx context.Context) bool {
		go func() {
			<-ctx.Done()
			close(canceled)
		}()
		return false
	})
	require.Eventually(t, p.Running, time.Second, tick)

	assert.True(t, p.Ensure(Key{LeadID: "L-1", SigningLink: "new"}, func(ctx context.Context) bool { return false }))

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("previous task not canceled")
	}
	got, _ := p.Key()
	assert.Equal(t, "new", got.SigningLink)
}

func TestPoller_StopPreventsFurtherChecks(t *testing.T) {
	p := NewPoller(tick, nil)

	var calls int32
	p.Ensure(Key{LeadID: "L-1", SigningLink: "s"}, func(ctx context.Context) bool {
		atomic.AddInt32(&calls, 1)
		return false
	})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, time.Second, tick)

	p.Shutdown()
	after := atomic.LoadInt32(&calls)
	time.Sleep(5 * tick)

	assert.Equal(t, after, atomic.LoadInt32(&calls))
	assert.False(t, p.Running())
	_, ok := p.Key()
	assert.False(t, ok)
}

func TestPoller_StopFromInsideCheck(t *testing.T) {
	p := NewPoller(tick, nil)

	var calls int32
	p.Ensure(Key{LeadID: "L-1", SigningLink: "s"}, func(ctx context.Context) bool {
		atomic.AddInt32(&calls, 1)
		p.Stop()
		return false
	})

	require.Eventually(t, func() bool { return !p.Running() }, time.Second, tick)
	p.Shutdown()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, NewPoller(0, nil).Interval())
}
