package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveAtomicContextBasics(t *testing.T) {
	b := New(NewInMemoryBroker(4), Options{})
	b.now = func() time.Time { return time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC) }

	atomic := b.ResolveAtomicContext("America/New_York", "en-US", "", "")
	require.Equal(t, "America/New_York", atomic.Timezone)
	require.Equal(t, 9, atomic.Hour) // 14:30 UTC is 09:30 EST
	require.Equal(t, "morning", atomic.TimeOfDay)
	require.Equal(t, "-05:00", atomic.UTCOffset)
	require.Equal(t, "Wednesday", atomic.DayOfWeek)
	require.Equal(t, 2, atomic.DayOfWeekNumber)
	require.Equal(t, "en", atomic.Language)
	require.Equal(t, "MM/DD/YYYY", atomic.DateFormat)
	require.Empty(t, atomic.Warnings)
}

func TestResolveAtomicContextFallbacks(t *testing.T) {
	b := New(NewInMemoryBroker(4), Options{})

	atomic := b.ResolveAtomicContext("", "", "", "")
	require.Equal(t, "UTC", atomic.Timezone)
	require.Equal(t, "en-US", atomic.Locale)
	require.Equal(t, "USD", atomic.Currency)
	require.Contains(t, atomic.Warnings[0], "No timezone provided")

	atomic = b.ResolveAtomicContext("Mars/Olympus", "en-GB", "", "")
	require.Equal(t, "UTC", atomic.Timezone)
	require.Contains(t, atomic.Warnings[0], "Unknown timezone")
	require.Equal(t, "DD/MM/YYYY", atomic.DateFormat)
}

func TestResolveSkipsSlowPath(t *testing.T) {
	b := New(NewInMemoryBroker(4), Options{})

	result, err := b.Resolve(context.Background(), ResolveParams{
		UserID: "u1", Query: "hello", Timezone: "UTC", EnableSlowPath: false,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Atomic)
	require.True(t, result.SlowPathSkipped)
	require.False(t, result.SlowPathCompleted)
	require.Nil(t, result.HighEntropy)
}

func TestResolveSlowPathCompletes(t *testing.T) {
	broker := NewInMemoryBroker(4)
	b := New(broker, Options{SlowPathTimeout: 2 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.StartListener(ctx)

	// Enrichment worker echoing every request.
	go func() {
		for req := range broker.Requests() {
			_ = broker.Respond(&HighEntropyContext{
				RequestID:      req.RequestID,
				VectorMemories: []map[string]any{{"memory": "user likes tea"}},
				ResolvedAt:     time.Now(),
			})
		}
	}()

	result, err := b.Resolve(ctx, ResolveParams{
		UserID: "u1", Query: "what do I like?", Timezone: "UTC", EnableSlowPath: true,
	})
	require.NoError(t, err)
	require.True(t, result.SlowPathCompleted)
	require.False(t, result.SlowPathTimeout)
	require.NotNil(t, result.HighEntropy)
	require.Equal(t, result.RequestID, result.HighEntropy.RequestID)
	require.Len(t, result.HighEntropy.VectorMemories, 1)
}

func TestResolveSlowPathTimesOut(t *testing.T) {
	broker := NewInMemoryBroker(4)
	b := New(broker, Options{SlowPathTimeout: 30 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.StartListener(ctx)
	// No worker: nothing ever responds.

	start := time.Now()
	result, err := b.Resolve(ctx, ResolveParams{
		UserID: "u1", Query: "anything", Timezone: "UTC", EnableSlowPath: true,
	})
	require.NoError(t, err)
	require.True(t, result.SlowPathTimeout)
	require.False(t, result.SlowPathCompleted)
	require.NotNil(t, result.Atomic, "atomic context survives the timeout")
	require.Less(t, time.Since(start), time.Second, "never blocks past the deadline")

	// The pending entry was removed on expiry.
	b.mu.Lock()
	require.Empty(t, b.pending)
	b.mu.Unlock()
}

func TestLateResponseIsDropped(t *testing.T) {
	broker := NewInMemoryBroker(4)
	b := New(broker, Options{SlowPathTimeout: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.StartListener(ctx)

	var requestID string
	done := make(chan struct{})
	go func() {
		req := <-broker.Requests()
		requestID = req.RequestID
		close(done)
	}()

	result, err := b.Resolve(ctx, ResolveParams{
		UserID: "u1", Query: "q", Timezone: "UTC", EnableSlowPath: true,
	})
	require.NoError(t, err)
	require.True(t, result.SlowPathTimeout)
	<-done

	// Response arrives after the deadline: silently dropped.
	require.NoError(t, broker.Respond(&HighEntropyContext{RequestID: requestID}))
	time.Sleep(20 * time.Millisecond)

	b.mu.Lock()
	require.Empty(t, b.pending)
	b.mu.Unlock()
}

func TestDuplicateResponseDeliveredOnce(t *testing.T) {
	broker := NewInMemoryBroker(8)
	b := New(broker, Options{SlowPathTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.StartListener(ctx)

	go func() {
		for req := range broker.Requests() {
			// Respond twice for every request.
			_ = broker.Respond(&HighEntropyContext{RequestID: req.RequestID, ResolutionMillis: 1})
			_ = broker.Respond(&HighEntropyContext{RequestID: req.RequestID, ResolutionMillis: 2})
		}
	}()

	result, err := b.Resolve(ctx, ResolveParams{
		UserID: "u1", Query: "q", Timezone: "UTC", EnableSlowPath: true,
	})
	require.NoError(t, err)
	require.True(t, result.SlowPathCompleted)
	require.Equal(t, 1.0, result.HighEntropy.ResolutionMillis, "first delivery wins")
}

func TestBrokerPublishAfterClose(t *testing.T) {
	broker := NewInMemoryBroker(4)
	require.NoError(t, broker.Close())
	err := broker.PublishRequest(context.Background(), &ResolutionRequest{RequestID: "x"})
	require.Error(t, err)
}
