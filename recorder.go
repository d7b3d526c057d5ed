package apicheck

import (
	"github.com/vianscientific/apicheck/internal/model"
)

// Recorder accumulates the outcomes of one suite run in arrival order.
// It is owned by a single run and must not be shared between goroutines.
type Recorder struct {
	outcomes []model.Outcome
	passed   int
	failed   int
	failures []model.Outcome

	onRecord func(model.Outcome)
}

func NewRecorder() *Recorder {
	return &Recorder{
		outcomes: []model.Outcome{},
		failures: []model.Outcome{},
	}
}

// Record appends an outcome. Outcomes are never deduplicated: recording the
// same name twice yields two independent outcomes.
func (r *Recorder) Record(o model.Outcome) {
	r.outcomes = append(r.outcomes, o)

	if o.Passed {
		r.passed++
	} else {
		r.failed++
		r.failures = append(r.failures, o)
	}

	if r.onRecord != nil {
		r.onRecord(o)
	}
}

// RecordResult is a shorthand for recording an outcome that does not belong
// to a test function.
func (r *Recorder) RecordResult(name string, passed bool, message string) {
	kind := model.FailureNone
	if !passed {
		kind = model.FailureAssertion
	}

	r.Record(model.Outcome{Name: name, Passed: passed, Message: message, Kind: kind})
}

// Summary returns a snapshot of the recorded state. Calling it has no side
// effects.
func (r *Recorder) Summary() model.Summary {
	failures := make([]model.Outcome, len(r.failures))
	copy(failures, r.failures)

	return model.Summary{
		Passed:   r.passed,
		Failed:   r.failed,
		Failures: failures,
	}
}

// Outcomes returns a copy of all recorded outcomes in arrival order.
func (r *Recorder) Outcomes() []model.Outcome {
	outcomes := make([]model.Outcome, len(r.outcomes))
	copy(outcomes, r.outcomes)

	return outcomes
}
