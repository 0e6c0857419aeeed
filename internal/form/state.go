package form

import (
	"github.com/shopspring/decimal"

	"heart-risk-dashboard/internal/schema"
)

// Ordering decides which completion's result is kept when requests overlap.
type Ordering string

const (
	// LastCompleted keeps whichever response arrived most recently.
	LastCompleted Ordering = "last_completed"
	// LastIssued discards responses to requests older than the one whose
	// result is already shown.
	LastIssued Ordering = "last_issued"
)

// ParseOrdering maps a config string to an Ordering, defaulting to
// LastCompleted.
func ParseOrdering(s string) Ordering {
	if Ordering(s) == LastIssued {
		return LastIssued
	}
	return LastCompleted
}

// Result is one successful prediction.
type Result struct {
	Prob   float64 `json:"prob"`
	IsRisk bool    `json:"is_risk"`
}

// Percentage renders the probability with two decimals, e.g. "73.00%".
func (r Result) Percentage() string {
	return decimal.NewFromFloat(r.Prob).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func (r Result) RiskLabel() string {
	if r.IsRisk {
		return "High Risk"
	}
	return "Low Risk"
}

type FailureKind string

const (
	RequestFailure   FailureKind = "REQUEST_FAILURE"
	TransportFailure FailureKind = "TRANSPORT_FAILURE"
)

// Notice is the user-facing message left behind by a failed submission.
type Notice struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// State is the controller's whole observable state. It is a value: every
// transition builds a new one and never writes through a previous one's
// map or pointers.
type State struct {
	Values  schema.Values `json:"values"`
	Result  *Result       `json:"result,omitempty"`
	Pending int           `json:"pending"`
	Notice  *Notice       `json:"notice,omitempty"`

	// Issued counts dispatched requests; ResultSeq is the sequence number of
	// the request that produced Result.
	Issued    uint64 `json:"-"`
	ResultSeq uint64 `json:"-"`
}

// InFlight reports whether at least one request awaits its response.
func (s State) InFlight() bool { return s.Pending > 0 }

func (s State) HasResult() bool { return s.Result != nil }

// Event is a discrete input to Reduce.
type Event interface {
	isEvent()
}

// FieldChanged carries an already validated value.
type FieldChanged struct {
	Key   string
	Value float64
}

// SubmitIssued marks a request dispatch. The request's sequence number is
// the Issued count of the resulting state.
type SubmitIssued struct{}

type PredictionSucceeded struct {
	Seq    uint64
	Result Result
}

type PredictionFailed struct {
	Seq    uint64
	Notice Notice
}

type NoticeDismissed struct{}

func (FieldChanged) isEvent()        {}
func (SubmitIssued) isEvent()        {}
func (PredictionSucceeded) isEvent() {}
func (PredictionFailed) isEvent()    {}
func (NoticeDismissed) isEvent()     {}

// Initial builds the starting state from values and an optional result.
func Initial(values schema.Values, result *Result) State {
	s := State{Values: values.Clone()}
	if result != nil {
		r := *result
		s.Result = &r
	}
	return s
}

// Reduce is the transition function. It does not modify s.
func Reduce(s State, e Event, ordering Ordering) State {
	switch ev := e.(type) {
	case FieldChanged:
		s.Values = s.Values.With(ev.Key, ev.Value)

	case SubmitIssued:
		s.Pending++
		s.Issued++
		s.Notice = nil

	case PredictionSucceeded:
		s.Pending = settle(s.Pending)
		if stale(s, ev.Seq, ordering) {
			return s
		}
		r := ev.Result
		s.Result = &r
		s.ResultSeq = ev.Seq

	case PredictionFailed:
		s.Pending = settle(s.Pending)
		if stale(s, ev.Seq, ordering) {
			return s
		}
		n := ev.Notice
		s.Notice = &n

	case NoticeDismissed:
		s.Notice = nil
	}
	return s
}

func settle(pending int) int {
	if pending > 0 {
		return pending - 1
	}
	return 0
}

// A completion is stale only under LastIssued, and only when a newer
// request's result is already shown.
func stale(s State, seq uint64, ordering Ordering) bool {
	return ordering == LastIssued && s.Result != nil && seq < s.ResultSeq
}
