package apicheck

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vianscientific/apicheck/internal/metric"
	"github.com/vianscientific/apicheck/internal/model"
	"golang.org/x/exp/slices"
)

// Runner executes the tests of a suite strictly sequentially, in suite order.
// Tests share a single Session, so later tests can depend on state written by
// earlier ones (e.g. a login storing a token).
type Runner struct {
	log   logrus.FieldLogger
	hooks *hookManager

	// global runID counter
	currentRun int32
}

type Option func(r *Runner)

// New configures a new Runner and initializes its hooks.
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		log: logrus.StandardLogger(),
	}

	r.hooks = newHookManager(nil)

	for _, o := range opts {
		o(r)
	}

	r.log = r.log.WithField("component", "runner")
	r.hooks.log = r.log

	if err := r.hooks.init(); err != nil {
		return nil, err
	}

	return r, nil
}

// Run executes all tests of the suite and returns the aggregated outcomes.
func (r *Runner) Run(ctx context.Context, suite Suite, s *Session) Summary {
	run, err := r.Execute(ctx, suite, s, RunParams{TriggeredBy: "library"})
	if err != nil {
		// only invalid params fail Execute
		r.log.WithError(err).Error("executing suite failed")
	}

	return run.Summary
}

// Execute runs the tests of the suite selected by params. It only returns an
// error if params are invalid; failing tests are reported in the SuiteRun.
func (r *Runner) Execute(ctx context.Context, suite Suite, s *Session, params RunParams) (SuiteRun, error) {
	run, err := r.newRun(suite, params, time.Now())
	if err != nil {
		return SuiteRun{}, err
	}

	return r.execute(ctx, suite, s, run), nil
}

func (r *Runner) nextID() int {
	return int(atomic.AddInt32(&r.currentRun, 1))
}

// newRun creates a pending run with one pending TestRun per selected test.
func (r *Runner) newRun(suite Suite, params RunParams, scheduled time.Time) (SuiteRun, error) {
	var filter *regexp.Regexp

	if params.TestFilter != "" {
		var err error
		filter, err = regexp.Compile(params.TestFilter)
		if err != nil {
			return SuiteRun{}, model.MalformedRequestError{Param: "filter"}
		}
	}

	groups := suite.Groups()
	for _, g := range params.Groups {
		if !slices.Contains(groups, g) {
			return SuiteRun{}, model.MalformedRequestError{Param: "group " + g}
		}
	}

	// outcomes and test results are keyed by test name
	seen := make(map[string]struct{}, len(suite.Tests))
	for _, t := range suite.Tests {
		if _, ok := seen[t.Name]; ok {
			return SuiteRun{}, model.MalformedRequestError{Param: "duplicate test " + t.Name}
		}
		seen[t.Name] = struct{}{}
	}

	tests := suite.FilterTests(filter, params.Groups)

	run := SuiteRun{
		ID:          r.nextID(),
		SuiteName:   suite.Name,
		Result:      model.ResultPending,
		Tests:       len(tests),
		Skipped:     len(suite.Tests) - len(tests),
		Params:      params,
		Scheduled:   scheduled,
		Outcomes:    []Outcome{},
		TestResults: make([]model.TestRun, 0, len(tests)),
	}

	for _, t := range tests {
		run.TestResults = append(run.TestResults, model.TestRun{
			Name:   t.Name,
			Group:  t.Group,
			Result: model.ResultPending,
		})
	}

	return run, nil
}

func (r *Runner) execute(ctx context.Context, suite Suite, s *Session, run SuiteRun) SuiteRun {
	log := r.log.WithFields(logrus.Fields{"suite-name": suite.Name, "run-id": run.ID})

	run.Start = time.Now()

	suitesRunning := metric.SuitesRunning.WithLabelValues(suite.Name)
	suitesRunning.Inc()
	defer suitesRunning.Dec()

	recorder := NewRecorder()
	recorder.onRecord = func(o Outcome) {
		metric.OutcomesTotal.WithLabelValues(suite.Name, o.Test, outcomeLabel(o)).Inc()
		run.Summary = recorder.Summary()
		run.Outcomes = recorder.Outcomes()
		r.hooks.notifyOutcomeRecorded(suite, run, o)
	}

	tests := make(map[string]Test, len(suite.Tests))
	for _, t := range suite.Tests {
		tests[t.Name] = t
	}

	if err := suite.SafeSetup(ctx, s); err != nil {
		log.WithError(err).Warn("setup of suite failed")

		run.SetupLogs = fmt.Sprintf("setup failed: %v", err)
		recorder.Record(Outcome{
			Test:    "setup",
			Name:    "Suite setup",
			Passed:  false,
			Message: err.Error(),
			Kind:    model.FailurePrerequisite,
			Time:    time.Now(),
		})

		skipPending(&run, "suite setup failed: skipped")
	} else {
		for i := range run.TestResults {
			tr := &run.TestResults[i]

			if ctx.Err() != nil {
				log.Warn("run cancelled, skipping remaining tests")
				skipPending(&run, "run cancelled: skipped")
				break
			}

			r.runTest(ctx, suite, &run, recorder, s, tests[tr.Name], tr)
		}

		if err := suite.SafeTeardown(ctx, s); err != nil {
			log.WithError(err).Warn("teardown of suite failed")
		}
	}

	run.End = time.Now()
	run.DurationInMS = run.End.Sub(run.Start).Milliseconds()
	run.Summary = recorder.Summary()
	run.Outcomes = recorder.Outcomes()
	run.Result = run.Summary.Result()

	metric.SuiteRunsTotal.WithLabelValues(suite.Name, string(run.Result)).Inc()
	metric.LastRunSuccessRate.WithLabelValues(suite.Name).Set(run.Summary.SuccessRate())

	log.WithFields(logrus.Fields{
		"passed":   run.Summary.Passed,
		"failed":   run.Summary.Failed,
		"duration": run.End.Sub(run.Start).String(),
	}).Info("suite run finished")

	r.hooks.notifySuiteFinished(suite, run)

	return run
}

// runTest runs an individual test function. A panic inside the test function
// is converted into a failed outcome so that the run always completes.
func (r *Runner) runTest(
	ctx context.Context,
	suite Suite,
	run *SuiteRun,
	recorder *Recorder,
	s *Session,
	test Test,
	testRun *model.TestRun,
) {
	log := r.log.WithFields(logrus.Fields{"suite-name": suite.Name, "test-name": test.Name})

	t := newT(ctx, suite.Name, test.Name, recorder, log)

	start := time.Now()

	defer func() {
		err := recover()

		if err != nil {
			switch err.(type) {
			case failTestErr, skipTestErr:
			default:
				// this is an unexpected panic (does not originate from apicheck)
				t.logs.WriteString(fmt.Sprintf("%v\n%s", err, debug.Stack()))
				t.Record(test.Name, false, model.FailurePanic, fmt.Sprintf("unexpected panic: %v", err))
				log.Errorf("test panic'd: %v", err)
			}
		}

		if t.Failed() && t.failed == 0 {
			t.Record(test.Name, false, model.FailureAssertion, "test marked as failed")
		}

		t.runTestCleanup()

		end := time.Now()

		testRun.Start = start
		testRun.End = end
		testRun.DurationInMS = end.Sub(start).Milliseconds()
		testRun.Result = t.Result()
		testRun.Passed = t.passed
		testRun.Failed = t.failed
		testRun.Logs = t.logs.String()

		if testRun.Result == model.ResultSkipped {
			run.Skipped++
		}

		log.WithFields(logrus.Fields{
			"result": testRun.Result,
			"passed": t.passed,
			"failed": t.failed,
		}).Debug("test finished")

		r.hooks.notifyTestFinished(suite, *run, *testRun)
	}()

	if test.Func == nil {
		panic(fmt.Sprintf("test %q has no function", test.Name))
	}

	test.Func(t, s)
}

func skipPending(run *SuiteRun, reason string) {
	now := time.Now()

	for i := range run.TestResults {
		tr := &run.TestResults[i]

		if tr.Result == model.ResultPending {
			tr.Result = model.ResultSkipped
			tr.Logs = reason
			tr.End = now
			run.Skipped++
		}
	}
}

func outcomeLabel(o Outcome) string {
	if o.Passed {
		return string(model.ResultPassed)
	}

	return string(model.ResultFailed)
}
