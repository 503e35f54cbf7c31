// Package bus implements the dual-path resolution bus: a synchronous
// atomic fast path and an optional deadlined asynchronous enrichment
// path with graceful degradation.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/StrungPattern-coder/context/engine/metrics"
)

// Priority levels for context resolution.
type Priority string

const (
	PriorityAtomic     Priority = "atomic"
	PriorityEnriched   Priority = "enriched"
	PriorityBackground Priority = "background"
)

// ResolutionRequest asks the slow path for high-entropy enrichment.
type ResolutionRequest struct {
	RequestID string
	UserID    string
	Query     string
	Priority  Priority
	CreatedAt time.Time
}

// HighEntropyContext is the slow-path enrichment: memory search,
// grounding, cross-session correlations computed by an external
// collaborator.
type HighEntropyContext struct {
	RequestID            string
	VectorMemories       []map[string]any
	WebGrounding         []map[string]any
	CrossSessionInsights []map[string]any
	SemanticRelations    []map[string]any
	ResolvedAt           time.Time
	ResolutionMillis     float64
}

// Result combines both paths' outputs for one request.
type Result struct {
	RequestID         string
	Atomic            *AtomicContext
	HighEntropy       *HighEntropyContext
	FastPathMillis    float64
	SlowPathMillis    float64
	SlowPathCompleted bool
	SlowPathTimeout   bool
	SlowPathSkipped   bool
	TotalMillis       float64
}

// Broker carries requests to and responses from the enrichment
// collaborator. The in-memory implementation is the in-process
// default; an external (Redis-style) broker satisfies the same
// interface.
type Broker interface {
	PublishRequest(ctx context.Context, req *ResolutionRequest) error
	Responses() <-chan *HighEntropyContext
	Close() error
}

// Options configures a Bus.
type Options struct {
	// SlowPathTimeout bounds each enrichment wait. Default 150ms.
	SlowPathTimeout time.Duration
	// Metrics is optional.
	Metrics *metrics.Exporter
}

// Bus is the dual-path resolver. The pending-request table maps
// request ids to completion channels; a single response listener
// delivers each response at most once.
type Bus struct {
	broker  Broker
	timeout time.Duration
	metrics *metrics.Exporter

	mu      sync.Mutex
	pending map[string]chan *HighEntropyContext

	listenOnce sync.Once
	now        func() time.Time
}

// New creates a resolution bus over a broker.
func New(broker Broker, opts Options) *Bus {
	timeout := opts.SlowPathTimeout
	if timeout <= 0 {
		timeout = 150 * time.Millisecond
	}
	return &Bus{
		broker:  broker,
		timeout: timeout,
		metrics: opts.Metrics,
		pending: map[string]chan *HighEntropyContext{},
		now:     time.Now,
	}
}

// StartListener launches the single response consumer. Safe to call
// once; the listener exits when the context is cancelled or the
// broker's response channel closes.
func (b *Bus) StartListener(ctx context.Context) {
	b.listenOnce.Do(func() {
		go func() {
			responses := b.broker.Responses()
			for {
				select {
				case <-ctx.Done():
					return
				case response, ok := <-responses:
					if !ok {
						return
					}
					b.deliver(response)
				}
			}
		}()
	})
}

// deliver hands a response to its waiter. Dispatch is idempotent by
// request id: the first delivery consumes the pending entry, later
// responses for the same id are dropped.
func (b *Bus) deliver(response *HighEntropyContext) {
	if response == nil || response.RequestID == "" {
		return
	}
	b.mu.Lock()
	waiter, ok := b.pending[response.RequestID]
	if ok {
		delete(b.pending, response.RequestID)
	}
	b.mu.Unlock()

	if !ok {
		slog.Debug("late or duplicate slow-path response dropped", "request_id", response.RequestID)
		return
	}
	// The waiter channel is buffered; this never blocks the listener.
	waiter <- response
}

// ResolveParams are the inputs for a full dual-path resolution.
type ResolveParams struct {
	UserID         string
	Query          string
	Timezone       string
	Locale         string
	Language       string
	Currency       string
	EnableSlowPath bool
}

// Resolve computes the atomic context and, when enabled, races the
// slow path against its deadline. Under timeout the atomic context is
// returned alone: the request is never blocked past the deadline.
func (b *Bus) Resolve(ctx context.Context, params ResolveParams) (*Result, error) {
	start := b.now()
	requestID := uuid.NewString()

	result := &Result{RequestID: requestID}

	if !params.EnableSlowPath {
		result.Atomic = b.ResolveAtomicContext(params.Timezone, params.Locale, params.Language, params.Currency)
		result.FastPathMillis = millisSince(start)
		result.SlowPathSkipped = true
		result.TotalMillis = result.FastPathMillis
		if b.metrics != nil {
			b.metrics.RecordSlowPath("skipped")
		}
		return result, nil
	}

	// Two tasks joined with a deadline: the atomic computation and the
	// enrichment wait run concurrently.
	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fastStart := b.now()
		result.Atomic = b.ResolveAtomicContext(params.Timezone, params.Locale, params.Language, params.Currency)
		result.FastPathMillis = millisSince(fastStart)
		return nil
	})

	g.Go(func() error {
		slowStart := b.now()
		enriched, timedOut, err := b.awaitHighEntropy(groupCtx, requestID, params.UserID, params.Query)
		result.SlowPathMillis = millisSince(slowStart)
		if err != nil {
			// Broker trouble degrades to the atomic context; it is not an
			// error to the caller.
			slog.Warn("slow path unavailable", "request_id", requestID, "error", err)
			result.SlowPathTimeout = true
			return nil
		}
		if timedOut {
			result.SlowPathTimeout = true
			slog.Info("slow path timeout - proceeding with atomic context only",
				"request_id", requestID,
				"timeout_ms", b.timeout.Milliseconds())
			return nil
		}
		result.HighEntropy = enriched
		result.SlowPathCompleted = true
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if b.metrics != nil {
		switch {
		case result.SlowPathCompleted:
			b.metrics.RecordSlowPath("completed")
		case result.SlowPathTimeout:
			b.metrics.RecordSlowPath("timeout")
		}
	}

	result.TotalMillis = millisSince(start)
	return result, nil
}

// awaitHighEntropy publishes the request and waits for the matching
// response, bounded by the per-request deadline. On expiry the pending
// entry is removed atomically so a late response is dropped, not
// buffered.
func (b *Bus) awaitHighEntropy(ctx context.Context, requestID, userID, query string) (*HighEntropyContext, bool, error) {
	waiter := make(chan *HighEntropyContext, 1)

	b.mu.Lock()
	b.pending[requestID] = waiter
	b.mu.Unlock()

	cancelPending := func() {
		b.mu.Lock()
		delete(b.pending, requestID)
		b.mu.Unlock()
	}

	request := &ResolutionRequest{
		RequestID: requestID,
		UserID:    userID,
		Query:     query,
		Priority:  PriorityEnriched,
		CreatedAt: b.now(),
	}
	if err := b.broker.PublishRequest(ctx, request); err != nil {
		cancelPending()
		return nil, false, err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case response := <-waiter:
		return response, false, nil
	case <-timer.C:
		cancelPending()
		return nil, true, nil
	case <-ctx.Done():
		cancelPending()
		return nil, true, nil
	}
}

func millisSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
