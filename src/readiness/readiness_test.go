package readiness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsToNotReady(t *testing.T) {
	assert.False(t, New().Ready())
}

func TestNotifiesOnlyOnChange(t *testing.T) {
	p := New()

	var seen []bool
	p.Subscribe(func(v bool) { seen = append(seen, v) })

	p.Set(false)
	p.Set(true)
	p.Set(true)
	p.Set(false)

	assert.Equal(t, []bool{true, false}, seen)
	assert.False(t, p.Ready())
}

func TestCancelStopsNotifications(t *testing.T) {
	p := New()

	calls := 0
	cancel := p.Subscribe(func(bool) { calls++ })
	p.Set(true)
	cancel()
	cancel()
	p.Set(false)

	assert.Equal(t, 1, calls)
}

func TestWait(t *testing.T) {
	p := New()

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Set(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx, true))
	assert.True(t, p.Ready())
}

func TestWaitTimesOut(t *testing.T) {
	p := New()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx, true), context.DeadlineExceeded)
}
