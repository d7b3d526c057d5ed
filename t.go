package apicheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vianscientific/apicheck/internal/model"
)

// make sure we adhere to the TB interface
var _ model.TB = &T{}

type T struct {
	suiteName    string
	testName     string
	logs         strings.Builder
	result       model.Result
	recorder     *Recorder
	cleanupFuncs []func()
	passed       int
	failed       int
	ctx          context.Context
	log          logrus.FieldLogger
}

func newT(ctx context.Context, suiteName, testName string, recorder *Recorder, log logrus.FieldLogger) *T {
	return &T{
		suiteName: suiteName,
		testName:  testName,
		recorder:  recorder,
		ctx:       ctx,
		log:       log,
	}
}

// Cleanup registers a function that is called after the test function
// returned, panicked or was stopped. Cleanups run in last added, first called
// order.
func (t *T) Cleanup(c func()) {
	t.cleanupFuncs = append(t.cleanupFuncs, c)
}

func (t *T) Error(args ...any) {
	t.Record(t.testName, false, model.FailureAssertion, fmt.Sprint(args...))
}

func (t *T) Errorf(format string, args ...any) {
	t.Record(t.testName, false, model.FailureAssertion, fmt.Sprintf(format, args...))
}

// Fail marks the test function as failed. If no failed outcome has been
// recorded when it returns, the runner records one on its behalf.
func (t *T) Fail() {
	t.result = model.ResultFailed
}

func (t *T) FailNow() {
	t.Fail()
	panic(failTestErr{})
}

func (t *T) Failed() bool {
	return t.result == model.ResultFailed
}

func (t *T) Fatal(args ...any) {
	t.Error(args...)
	panic(failTestErr{})
}

func (t *T) Fatalf(format string, args ...any) {
	t.Errorf(format, args...)
	panic(failTestErr{})
}

func (t *T) Helper() {}

func (t *T) Log(args ...any) {
	t.logs.WriteString(fmt.Sprint(args...) + "\n")
}

func (t *T) Logf(format string, args ...any) {
	t.logs.WriteString(fmt.Sprintf(format, args...) + "\n")
}

func (t *T) Name() string {
	return t.testName
}

func (t *T) Skip(args ...any) {
	t.Log(args...)
	t.SkipNow()
}

// SkipNow stops the test. A test that already failed stays failed.
func (t *T) SkipNow() {
	if !t.Failed() {
		t.result = model.ResultSkipped
	}
	panic(skipTestErr{})
}

func (t *T) Skipf(format string, args ...any) {
	t.Logf(format, args...)
	t.SkipNow()
}

func (t *T) Skipped() bool {
	return t.result == model.ResultSkipped
}

/* apicheck specific functions that are not part of the testing.TB interface */
/* ------------------------------------------------------------------------- */

func (t *T) Context() context.Context {
	return t.ctx
}

func (t *T) Pass(check, format string, args ...any) {
	t.Record(check, true, model.FailureNone, fmt.Sprintf(format, args...))
}

func (t *T) Check(check, format string, args ...any) {
	t.Record(check, false, model.FailureAssertion, fmt.Sprintf(format, args...))
}

func (t *T) Record(check string, passed bool, kind model.FailureKind, message string) {
	if passed {
		kind = model.FailureNone
		t.passed++
	} else {
		if kind == model.FailureNone {
			kind = model.FailureAssertion
		}
		t.failed++
		t.result = model.ResultFailed
	}

	t.recorder.Record(model.Outcome{
		Test:    t.testName,
		Name:    check,
		Passed:  passed,
		Message: message,
		Kind:    kind,
		Time:    time.Now(),
	})
}

func (t *T) Prerequisite(check, missing string) {
	t.Record(check, false, model.FailurePrerequisite, "missing prerequisite: "+missing)
	panic(failTestErr{})
}

// Result returns the result of the test function so far.
func (t *T) Result() model.Result {
	if t.result == "" {
		return model.ResultPassed
	}

	return t.result
}

func (t *T) runTestCleanup() {
	for i := len(t.cleanupFuncs) - 1; i >= 0; i-- {
		t.runCleanupFunc(t.cleanupFuncs[i])
	}
}

func (t *T) runCleanupFunc(f func()) {
	defer func() {
		err := recover()

		if err != nil {
			t.log.WithFields(logrus.Fields{
				"suite-name": t.suiteName,
				"test-name":  t.testName,
			}).Warnf("cleanup func panic'd: %v", err)
		}
	}()

	f()
}

// skipTestErr is passed to panic() to signal
// that a test was skipped.
type skipTestErr struct{}

// failTestErr is passed to panic() to signal
// that a test has failed.
type failTestErr struct{}
