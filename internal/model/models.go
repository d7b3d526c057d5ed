// The `model`s package is very atypical for projects written in go, but unfortunately
// cannot be avoided as it helps to avoid cyclic dependencies. Types required by a library user
// such as `TestFunc` are reexported by the apicheck package.
package model

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/exp/slices"
)

type Result string

const (
	ResultPending Result = "pending"
	ResultSkipped Result = "skipped"
	ResultPassed  Result = "passed"
	ResultFailed  Result = "failed"
)

// FailureKind classifies why an outcome failed.
type FailureKind string

const (
	FailureNone FailureKind = ""
	// FailureAssertion is an unexpected status code or malformed body.
	FailureAssertion FailureKind = "assertion-mismatch"
	// FailureNetwork is a transport level failure (dns, refused, timeout).
	FailureNetwork FailureKind = "network-error"
	// FailurePrerequisite means session state a test depends on is missing.
	FailurePrerequisite FailureKind = "prerequisite-missing"
	// FailurePanic is an unexpected panic inside a test function.
	FailurePanic FailureKind = "unexpected-panic"
)

// Outcome is a single pass/fail record for exactly one assertion.
// It is never modified after it has been recorded.
type Outcome struct {
	// Test is the name of the test function that produced the outcome.
	Test string `json:"test"`
	// Name is the name of the check, e.g. "Duplicate email prevention".
	Name    string      `json:"name"`
	Passed  bool        `json:"passed"`
	Message string      `json:"message,omitempty"`
	Kind    FailureKind `json:"kind,omitempty"`
	Time    time.Time   `json:"time"`
}

// Line renders the outcome the way it shows up in the run report.
func (o Outcome) Line() string {
	status := "PASSED"
	if !o.Passed {
		status = "FAILED"
	}

	if o.Message == "" {
		return fmt.Sprintf("%s: %s", o.Name, status)
	}

	return fmt.Sprintf("%s: %s - %s", o.Name, status, o.Message)
}

// Summary is the aggregated state of all outcomes recorded so far.
type Summary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	// Failures contains the failed outcomes in the order they were recorded.
	Failures []Outcome `json:"failures"`
}

func (s Summary) Total() int {
	return s.Passed + s.Failed
}

// SuccessRate returns the percentage of passed outcomes, 0 if nothing was recorded.
func (s Summary) SuccessRate() float64 {
	if s.Total() == 0 {
		return 0
	}

	return float64(s.Passed) / float64(s.Total()) * 100
}

func (s Summary) Result() Result {
	if s.Failed > 0 {
		return ResultFailed
	}

	return ResultPassed
}

// SuiteRun is a single execution of a Suite.
type SuiteRun struct {
	// ID is the identifier of the run.
	ID int `json:"id"`
	// SuiteName is the name of the suite that is run.
	SuiteName string `json:"suiteName"`
	// Result is the outcome of the entire run.
	Result Result `json:"result"`
	// Tests counts the test functions selected for this run.
	Tests int `json:"tests"`
	// Skipped counts the test functions that were filtered out or skipped themselves.
	Skipped int `json:"skipped"`
	// Params passed in to a run.
	Params RunParams `json:"params"`
	// Scheduled is the time when the run was triggered.
	Scheduled time.Time `json:"scheduled"`
	// Start is the time when the run started executing.
	Start time.Time `json:"start"`
	// End is the time when the run finished executing.
	End time.Time `json:"end"`
	// DurationInMS is End-Start in milliseconds.
	DurationInMS int64 `json:"durationInMs"`
	// SetupLogs are written when the setup phase fails.
	SetupLogs string `json:"setupLogs,omitempty"`
	// Summary aggregates all outcomes of the run.
	Summary Summary `json:"summary"`
	// Outcomes contains every recorded outcome in arrival order.
	Outcomes []Outcome `json:"outcomes"`
	// TestResults contains the result of each executed test function.
	TestResults []TestRun `json:"testResults"`
}

type RunParams struct {
	// TriggeredBy denotes the origin of the run, e.g. cli, scheduled or http.
	TriggeredBy string `json:"triggeredBy"`
	// TestFilter is the regular expression test names must match.
	TestFilter string `json:"testFilter,omitempty"`
	// Groups restricts the run to tests of the given groups.
	Groups []string `json:"groups,omitempty"`
}

// TestRun is the result of a single test function.
type TestRun struct {
	Name  string `json:"name"`
	Group string `json:"group"`
	// Result is the outcome of the test function.
	Result Result `json:"result"`
	// Passed and Failed count the outcomes the test function recorded.
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	// Logs contains log messages written by the test itself.
	Logs string `json:"logs,omitempty"`
	// Start marks the start time of the test function.
	Start time.Time `json:"start"`
	// End marks the end time of the test function.
	End time.Time `json:"end"`
	// DurationInMS is the duration of the test function in milliseconds (end-start).
	DurationInMS int64 `json:"durationInMs"`
}

type TestFunc func(t TB, s *Session)

// Test is a named test function. Group is used to select subsets of a suite
// (e.g. "auth" or "admin").
type Test struct {
	Name  string
	Group string
	Func  TestFunc
}

// Suite is a static definition of an ordered list of tests with optional
// Setup and Teardown.
type Suite struct {
	// Name of the suite
	Name        string
	Description string
	Setup       func(ctx context.Context, s *Session) error
	Teardown    func(ctx context.Context, s *Session) error
	Tests       []Test
}

func (t Suite) SafeTeardown(ctx context.Context, s *Session) (err error) {
	if t.Teardown == nil {
		return nil
	}

	defer func() {
		r := recover()

		if r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	err = t.Teardown(ctx, s)
	return
}

func (t Suite) SafeSetup(ctx context.Context, s *Session) (err error) {
	if t.Setup == nil {
		return nil
	}

	defer func() {
		r := recover()

		if r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	err = t.Setup(ctx, s)
	return
}

// FilterTests returns the tests matching the filter and groups, keeping the
// suite order. A nil filter and empty groups select everything.
func (t Suite) FilterTests(filter *regexp.Regexp, groups []string) []Test {
	tests := []Test{}

	for _, test := range t.Tests {
		if filter != nil && !filter.MatchString(test.Name) {
			continue
		}
		if len(groups) > 0 && !slices.Contains(groups, test.Group) {
			continue
		}
		tests = append(tests, test)
	}

	return tests
}

// Groups returns the distinct groups of the suite in order of first appearance.
func (t Suite) Groups() []string {
	groups := []string{}

	for _, test := range t.Tests {
		if !slices.Contains(groups, test.Group) {
			groups = append(groups, test.Group)
		}
	}

	return groups
}

// TB is a carbon copy of the stdlib testing.TB interface + some custom apicheck functions. Unfortunately we cannot reuse
// the original testing.TB interface because it deliberately includes the `private()` function
// to prevent others from implementing it to allow them to add new functions over time without
// breaking anything.
//
// Error and Errorf record a failed outcome named after the test function, which
// keeps the interface usable with assertion libraries such as testify.
type TB interface {
	Cleanup(func())
	Error(args ...any)
	Errorf(format string, args ...any)
	Fail()
	FailNow()
	Failed() bool
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Helper()
	Log(args ...any)
	Logf(format string, args ...any)
	Name() string
	Skip(args ...any)
	SkipNow()
	Skipf(format string, args ...any)
	Skipped() bool

	/* apicheck specific */
	Context() context.Context
	// Pass records a passed outcome for the named check.
	Pass(check, format string, args ...any)
	// Check records a failed outcome of kind FailureAssertion for the named check.
	Check(check, format string, args ...any)
	// Record records an outcome of the given kind for the named check.
	Record(check string, passed bool, kind FailureKind, message string)
	// Prerequisite records a single failed outcome naming the missing
	// prerequisite and stops the test function.
	Prerequisite(check, missing string)
}
