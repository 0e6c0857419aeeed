// Package form holds the prediction form controller: the current field
// values, the last prediction result and the in-flight bookkeeping for
// requests to the prediction backend.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "heart-risk-dashboard/internal/common/errors"
	"heart-risk-dashboard/internal/common/logger"
	"heart-risk-dashboard/internal/common/metrics"
	"heart-risk-dashboard/internal/predict"
	"heart-risk-dashboard/internal/schema"
)

// Predictor is the prediction backend as seen by the controller.
type Predictor interface {
	Predict(ctx context.Context, features schema.Values) (predict.Response, error)
}

// Controller is the single writer of a State. Its methods are safe for
// concurrent use; Submit does not hold the lock while waiting on the
// backend, so edits and further submissions proceed meanwhile.
type Controller struct {
	mu        sync.Mutex
	state     State
	schema    *schema.Schema
	predictor Predictor
	ordering  Ordering
	backend   string
	logger    logger.Logger
	observers []func(State)
}

type Option func(*Controller)

func WithOrdering(o Ordering) Option {
	return func(c *Controller) { c.ordering = o }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithBackendURL sets the address quoted in failure notices.
func WithBackendURL(url string) Option {
	return func(c *Controller) { c.backend = url }
}

// WithObserver registers fn to receive every new state. fn runs with the
// controller locked and must not call back into it.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// WithInitial starts the controller from saved values and result instead
// of the schema defaults. Values that do not conform to the schema are
// ignored.
func WithInitial(values schema.Values, result *Result) Option {
	return func(c *Controller) {
		if values == nil || c.schema.Conforms(values) != nil {
			values = c.schema.Defaults()
		}
		c.state = Initial(values, result)
	}
}

// New builds a controller whose form starts at the schema defaults.
func New(s *schema.Schema, p Predictor, opts ...Option) *Controller {
	c := &Controller{
		schema:    s,
		predictor: p,
		ordering:  LastCompleted,
		logger:    logger.NewNoOpLogger(),
		state:     Initial(s.Defaults(), nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Schema() *schema.Schema { return c.schema }

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ChangeField parses raw for the field key and stores it. On error the
// state is left as it was.
func (c *Controller) ChangeField(key, raw string) (State, error) {
	field, ok := c.schema.Field(key)
	if !ok {
		metrics.FieldChanges.WithLabelValues("unknown", "rejected").Inc()
		return c.Snapshot(), apperrors.NewUnknownFieldError(key)
	}

	value, err := field.Parse(raw)
	if err != nil {
		metrics.FieldChanges.WithLabelValues(key, "rejected").Inc()
		c.logger.Debug("Rejected field value", map[string]interface{}{
			"field": key,
			"raw":   raw,
			"error": err,
		})
		return c.Snapshot(), apperrors.NewInvalidFieldValueError(key, err)
	}

	metrics.FieldChanges.WithLabelValues(key, "accepted").Inc()
	state, _ := c.apply(func(s State) Event { return FieldChanged{Key: key, Value: value} })
	return state, nil
}

// Submit sends the current values to the backend and waits for the answer.
// The request is not cancelled when ctx is; it ends when the backend
// answers or the transport gives up. The returned error mirrors a failure
// already recorded in the state as a Notice.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	payload, seq := c.dispatch()
	return c.await(ctx, payload, seq)
}

// Completion is the outcome of a request started with Start.
type Completion struct {
	State State
	Err   error
}

// Start dispatches a request and returns at once. The request is already
// counted as pending when Start returns; its outcome is delivered on the
// channel, which is closed afterwards.
func (c *Controller) Start(ctx context.Context) <-chan Completion {
	payload, seq := c.dispatch()
	done := make(chan Completion, 1)
	go func() {
		defer close(done)
		state, err := c.await(ctx, payload, seq)
		done <- Completion{State: state, Err: err}
	}()
	return done
}

func (c *Controller) dispatch() (schema.Values, uint64) {
	var payload schema.Values
	_, seq := c.apply(func(s State) Event {
		payload = s.Values.Clone()
		return SubmitIssued{}
	})
	return payload, seq
}

func (c *Controller) await(ctx context.Context, payload schema.Values, seq uint64) (State, error) {
	metrics.PredictionsInFlight.Inc()
	start := time.Now()
	resp, err := c.predictor.Predict(context.WithoutCancel(ctx), payload)
	metrics.PredictionsInFlight.Dec()

	if err != nil {
		kind := classify(err)
		outcome := metrics.OutcomeRequest
		stdErr := apperrors.NewPredictionRequestFailedError(err)
		if kind == TransportFailure {
			outcome = metrics.OutcomeTransport
			stdErr = apperrors.NewPredictionTransportFailedError(err)
		}
		c.observe(outcome, start)
		stdErr.WithMetadata("seq", seq)

		c.logger.Warn("Prediction failed", map[string]interface{}{
			"seq":   seq,
			"kind":  string(kind),
			"error": err,
		})
		state, _ := c.apply(func(State) Event {
			return PredictionFailed{Seq: seq, Notice: Notice{Kind: kind, Message: c.failureMessage()}}
		})
		return state, stdErr
	}

	state, _ := c.apply(func(State) Event {
		return PredictionSucceeded{Seq: seq, Result: Result{Prob: resp.Prob, IsRisk: resp.IsRisk}}
	})
	if state.ResultSeq == seq {
		c.observe(metrics.OutcomeSuccess, start)
	} else {
		c.observe(metrics.OutcomeDiscarded, start)
		c.logger.Debug("Discarded stale prediction", map[string]interface{}{
			"seq":        seq,
			"result_seq": state.ResultSeq,
		})
	}
	return state, nil
}

// DismissNotice clears the failure notice, if any.
func (c *Controller) DismissNotice() State {
	state, _ := c.apply(func(State) Event { return NoticeDismissed{} })
	return state
}

// apply builds an event from the current state and reduces it under the
// lock. It returns the new state and its Issued count.
func (c *Controller) apply(build func(State) Event) (State, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Reduce(c.state, build(c.state), c.ordering)
	for _, fn := range c.observers {
		fn(c.state)
	}
	return c.state, c.state.Issued
}

func (c *Controller) observe(outcome string, start time.Time) {
	metrics.PredictionsCompleted.WithLabelValues(outcome).Inc()
	metrics.PredictionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func (c *Controller) failureMessage() string {
	if c.backend == "" {
		return "Prediction failed. Make sure the prediction backend is running."
	}
	return fmt.Sprintf("Prediction failed. Make sure the prediction backend is reachable at %s.", c.backend)
}

func classify(err error) FailureKind {
	if errors.Is(err, predict.ErrTransportFailure) {
		return TransportFailure
	}
	return RequestFailure
}
