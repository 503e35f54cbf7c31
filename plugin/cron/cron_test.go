package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerRunsJobsOnInterval(t *testing.T) {
	r := NewRunner()
	var runs atomic.Int32
	r.Add("counter", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	r.Stop()
}

func TestRunnerSkipsOverlappingTicks(t *testing.T) {
	r := NewRunner()
	var concurrent atomic.Int32
	var maxConcurrent atomic.Int32

	r.Add("slow", 10*time.Millisecond, func(context.Context) error {
		n := concurrent.Add(1)
		if n > maxConcurrent.Load() {
			maxConcurrent.Store(n)
		}
		time.Sleep(50 * time.Millisecond)
		concurrent.Add(-1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	time.Sleep(120 * time.Millisecond)
	r.Stop()

	require.Equal(t, int32(1), maxConcurrent.Load(), "overrunning job must not stack")
}

func TestRunnerStopEndsLoops(t *testing.T) {
	r := NewRunner()
	var runs atomic.Int32
	r.Add("j", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	r.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	r.Stop()

	settled := runs.Load()
	time.Sleep(30 * time.Millisecond)
	require.LessOrEqual(t, runs.Load(), settled+1, "no new ticks after Stop")
}
