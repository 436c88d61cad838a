// Package foundry talks to Azure AI Foundry agents: it resolves which agent
// version to use and invokes it through conversations and responses, either
// blocking or as a stream of text deltas.
package foundry

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ozgurkarahan/get-started-with-ai-agents/pkg/foundry"

var tracer = otel.Tracer(instrumentationName)

// State is the lifecycle state of an Adapter.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Invocation modes and outcomes reported to the Recorder.
const (
	ModeBlocking  = "blocking"
	ModeStreaming = "streaming"

	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeNotReady     = "not_ready"
	OutcomeError        = "error"
	OutcomeAbandoned    = "abandoned"
)

// Recorder receives per-invocation measurements.
type Recorder interface {
	InvocationStarted(mode string)
	InvocationFinished(mode, outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) InvocationStarted(string)                       {}
func (nopRecorder) InvocationFinished(string, string, time.Duration) {}

// Adapter invokes one resolved agent. The identity is set once by Start and
// only read afterwards; every invocation opens its own conversation, so
// concurrent calls share nothing but the CompletionService.
type Adapter struct {
	service  CompletionService
	log      logr.Logger
	recorder Recorder

	mu       sync.RWMutex
	state    State
	identity AgentIdentity
	inflight sync.WaitGroup
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used when the request context carries none.
func WithLogger(log logr.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(a *Adapter) {
		if r != nil {
			a.recorder = r
		}
	}
}

// NewAdapter creates an Adapter in the Uninitialized state.
func NewAdapter(service CompletionService, opts ...Option) *Adapter {
	a := &Adapter{
		service:  service,
		log:      logr.Discard(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithName("foundry")
	return a
}

// Start moves the adapter to Ready with the resolved identity.
func (a *Adapter) Start(identity AgentIdentity) error {
	if !identity.Valid() {
		return fmt.Errorf("%w: incomplete agent identity %q", ErrResolution, identity.String())
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateUninitialized {
		return fmt.Errorf("cannot start adapter in state %s", a.state)
	}
	a.identity = identity
	a.state = StateReady
	a.log.Info("Foundry client started", "agent", identity.String())
	return nil
}

// Close moves the adapter to Closed, waits for in-flight invocations until ctx
// expires, then releases the completion service. Closing twice is a no-op.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateClosed {
		a.mu.Unlock()
		return nil
	}
	a.state = StateClosed
	a.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(drained)
	}()

	var drainErr error
	select {
	case <-drained:
	case <-ctx.Done():
		drainErr = fmt.Errorf("waiting for in-flight invocations: %w", ctx.Err())
	}

	if err := a.service.Close(); err != nil {
		return errors.Join(drainErr, fmt.Errorf("closing completion service: %w", err))
	}
	a.log.Info("Foundry client shut down")
	return drainErr
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Identity returns the resolved agent, or the zero value before Start.
func (a *Adapter) Identity() AgentIdentity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identity
}

// acquire registers an in-flight invocation. The caller must call
// a.inflight.Done when the invocation ends.
func (a *Adapter) acquire() (AgentIdentity, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateReady {
		return AgentIdentity{}, fmt.Errorf("%w (state %s)", ErrNotReady, a.state)
	}
	a.inflight.Add(1)
	return a.identity, nil
}

func (a *Adapter) checkReady() error {
	if s := a.State(); s != StateReady {
		return fmt.Errorf("%w (state %s)", ErrNotReady, s)
	}
	return nil
}

// InvokeBlocking sends prompt in a fresh conversation and returns the complete
// answer text unchanged.
func (a *Adapter) InvokeBlocking(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	if prompt == "" {
		a.recorder.InvocationFinished(ModeBlocking, OutcomeInvalidInput, time.Since(start))
		return "", ErrInvalidInput
	}
	identity, err := a.acquire()
	if err != nil {
		a.recorder.InvocationFinished(ModeBlocking, OutcomeNotReady, time.Since(start))
		return "", err
	}
	defer a.inflight.Done()

	ctx, span, log := a.begin(ctx, ModeBlocking, identity, prompt)
	defer span.End()

	text, err := a.invokeBlocking(ctx, log, identity, prompt)
	if err != nil {
		a.finish(span, log, ModeBlocking, start, err)
		return "", err
	}
	span.SetAttributes(attribute.Int("gen_ai.response.length", len(text)))
	a.finish(span, log, ModeBlocking, start, nil)
	return text, nil
}

func (a *Adapter) invokeBlocking(ctx context.Context, log logr.Logger, identity AgentIdentity, prompt string) (string, error) {
	conversationID, err := a.service.CreateConversation(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: create conversation: %w", ErrInvocation, err)
	}
	log.Info("Created conversation", "conversationID", conversationID)

	text, err := a.service.Complete(ctx, conversationID, prompt, identity.Reference())
	if err != nil {
		return "", fmt.Errorf("%w: create response: %w", ErrInvocation, err)
	}
	return text, nil
}

// InvokeStreaming validates the request and returns a lazy sequence of answer
// fragments. The conversation is created when the sequence is first ranged
// over; it cannot be ranged over twice. A failure after some fragments were
// delivered is yielded as a final error; delivered fragments stand.
func (a *Adapter) InvokeStreaming(ctx context.Context, prompt string) (iter.Seq2[string, error], error) {
	if prompt == "" {
		a.recorder.InvocationFinished(ModeStreaming, OutcomeInvalidInput, 0)
		return nil, ErrInvalidInput
	}
	if err := a.checkReady(); err != nil {
		a.recorder.InvocationFinished(ModeStreaming, OutcomeNotReady, 0)
		return nil, err
	}

	var consumed atomic.Bool
	return func(yield func(string, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield("", fmt.Errorf("%w: stream already consumed", ErrInvocation))
			return
		}

		start := time.Now()
		identity, err := a.acquire()
		if err != nil {
			a.recorder.InvocationFinished(ModeStreaming, OutcomeNotReady, time.Since(start))
			yield("", err)
			return
		}
		defer a.inflight.Done()

		ctx, span, log := a.begin(ctx, ModeStreaming, identity, prompt)
		defer span.End()

		fragments, length, err := a.stream(ctx, log, identity, prompt, yield)
		span.SetAttributes(
			attribute.Int("gen_ai.response.fragments", fragments),
			attribute.Int("gen_ai.response.length", length),
		)
		if errors.Is(err, errAbandoned) {
			log.V(1).Info("Stream abandoned by consumer", "fragments", fragments)
			a.recorder.InvocationFinished(ModeStreaming, OutcomeAbandoned, time.Since(start))
			return
		}
		a.finish(span, log, ModeStreaming, start, err)
		if err != nil {
			yield("", err)
		}
	}, nil
}

var errAbandoned = errors.New("consumer stopped iterating")

func (a *Adapter) stream(ctx context.Context, log logr.Logger, identity AgentIdentity, prompt string, yield func(string, error) bool) (int, int, error) {
	conversationID, err := a.service.CreateConversation(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: create conversation: %w", ErrInvocation, err)
	}
	log.Info("Created conversation", "conversationID", conversationID)

	fragments, length := 0, 0
	for ev, err := range a.service.Stream(ctx, conversationID, prompt, identity.Reference()) {
		if err != nil {
			return fragments, length, fmt.Errorf("%w: stream interrupted after %d fragments: %w", ErrInvocation, fragments, err)
		}
		switch ev := ev.(type) {
		case OutputTextDelta:
			fragments++
			length += len(ev.Text)
			if !yield(ev.Text, nil) {
				return fragments, length, errAbandoned
			}
		case StreamFailure:
			return fragments, length, fmt.Errorf("%w: stream failed after %d fragments: %w", ErrInvocation, fragments, ev)
		case OtherEvent:
			log.V(2).Info("Ignoring stream event", "type", ev.Type)
		}
	}
	return fragments, length, nil
}

// begin opens the invocation span and a logger carrying the invocation id.
// Only the prompt length is recorded, never its text.
func (a *Adapter) begin(ctx context.Context, mode string, identity AgentIdentity, prompt string) (context.Context, trace.Span, logr.Logger) {
	invocationID := uuid.NewString()
	a.recorder.InvocationStarted(mode)

	ctx, span := tracer.Start(ctx, "foundry.invoke_agent",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "invoke_agent"),
			attribute.String("gen_ai.agent.name", identity.Name),
			attribute.String("gen_ai.agent.version", identity.Version),
			attribute.String("foundry.invocation.id", invocationID),
			attribute.String("foundry.invocation.mode", mode),
			attribute.Int("gen_ai.prompt.length", len(prompt)),
		),
	)

	log := logr.FromContextOrDiscard(ctx)
	if log.GetSink() == nil {
		log = a.log
	} else {
		log = log.WithName("foundry")
	}
	log = log.WithValues("invocationID", invocationID, "mode", mode, "agent", identity.String())
	log.V(1).Info("Invoking agent", "promptLength", len(prompt))
	return ctx, span, log
}

func (a *Adapter) finish(span trace.Span, log logr.Logger, mode string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(err, "Agent invocation failed", "outcome", OutcomeError, "elapsed", elapsed)
		a.recorder.InvocationFinished(mode, OutcomeError, elapsed)
		return
	}
	span.SetStatus(codes.Ok, "")
	log.Info("Agent invocation completed", "outcome", OutcomeSuccess, "elapsed", elapsed)
	a.recorder.InvocationFinished(mode, OutcomeSuccess, elapsed)
}
