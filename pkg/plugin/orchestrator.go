package plugin

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/fhirgateway/pkg/requestid"
	"github.com/dmitrymomot/fhirgateway/pkg/tenant"
)

// Orchestrator executes BEFORE/AFTER/ON_ERROR phases against a Registry,
// dispatching async plugins to a fixed-size worker pool fed by an unbounded
// queue, per spec section 4.3.
type Orchestrator struct {
	registry *Registry
	pool     *pool
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPoolSize sets the async pool's fixed worker count (default 4).
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) { o.pool = newPool(size, o.logger) }
}

// WithLogger sets the logger used for async failures and panics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator builds an Orchestrator over registry.
func NewOrchestrator(registry *Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.pool == nil {
		o.pool = newPool(4, o.logger)
	}
	return o
}

// Before runs matching sync plugins in priority order, per spec section 4.3:
// "BEFORE invokes sync plugins only." An abort decision is returned as is.
// A skip-remaining decision (with or without a modified resource) stops the
// later plugins and Before returns Continue(); otherwise it returns
// Continue() once every plugin has run.
func (o *Orchestrator) Before(ctx context.Context, pc *Context) (Decision, error) {
	for _, e := range o.registry.matching(pc.Descriptor()) {
		if e.mode != ModeSync {
			continue
		}
		decision, err := e.sync.HandleBefore(ctx, pc)
		if err != nil {
			return Decision{}, err
		}
		switch decision.Kind {
		case DecisionContinue:
			continue
		case DecisionContinueModified:
			pc.Input = decision.ModifiedResource
			continue
		case DecisionAbort:
			return decision, nil
		case DecisionSkipRemaining:
			return Continue(), nil
		case DecisionSkipRemainingModified:
			pc.Input = decision.ModifiedResource
			return Continue(), nil
		}
	}
	return Continue(), nil
}

// After runs matching sync plugins serially in priority order, then
// dispatches matching async plugins to the bounded pool and returns without
// waiting for them, per spec section 4.3: "AFTER invokes sync plugins
// first ... then dispatches async plugins ... and returns immediately."
func (o *Orchestrator) After(ctx context.Context, pc *Context) error {
	return o.run(ctx, pc, nil, PhaseAfter)
}

// OnError runs matching sync plugins serially then schedules matching async
// plugins, per spec section 4.3. Async on-error failures are logged, never
// re-raised — the return value only reflects sync plugin failures.
func (o *Orchestrator) OnError(ctx context.Context, pc *Context, opErr error) error {
	return o.run(ctx, pc, opErr, PhaseOnError)
}

func (o *Orchestrator) run(ctx context.Context, pc *Context, opErr error, phase Phase) error {
	matched := o.registry.matching(pc.Descriptor())

	for _, e := range matched {
		if e.mode != ModeSync {
			continue
		}
		if err := e.sync.HandleAfter(ctx, pc, opErr); err != nil {
			return err
		}
	}

	// Capture ambient values now, at dispatch time, not when the async job
	// eventually runs — spec section 5: "the async pool explicitly copies
	// the two ambient values (tenant id, request id) at dispatch."
	tenantID := pc.TenantID
	requestID := pc.RequestID
	snapshot := *pc

	for _, e := range matched {
		if e.mode != ModeAsync {
			continue
		}
		asyncPlugin := e.async
		name := e.name
		o.pool.dispatch(ctx, func(context.Context) {
			// Each job gets a freshly derived context carrying only the
			// captured ambient values; nothing is shared or mutated across
			// jobs, so there is nothing to leak and nothing further to
			// clear once the job returns (success, panic, or cancellation
			// all end with this context simply going out of scope).
			asyncCtx := tenant.WithTenant(context.Background(), &tenant.Record{InternalID: tenantID})
			asyncCtx = requestid.WithContext(asyncCtx, requestID)

			pcCopy := snapshot
			if err := asyncPlugin.HandleAsync(asyncCtx, &pcCopy, opErr); err != nil {
				o.logger.Error("plugin: async handler failed",
					slog.String("plugin", name),
					slog.String("phase", string(phase)),
					slog.String("error", err.Error()))
			}
		})
	}

	return nil
}

// Shutdown drains the async pool, bounded by grace.
func (o *Orchestrator) Shutdown(grace time.Duration) bool {
	return o.pool.shutdown(grace)
}
