package apicheck

import (
	"github.com/vianscientific/apicheck/internal/model"
)

// event changes the state of a cached run. Events are applied by the event
// loop of the monitor Server only.
type event interface {
	Apply(model.SuiteRun) model.SuiteRun
	RunID() int
}

type runQueuedEvent struct {
	run model.SuiteRun
	// done receives the finished run. It is buffered so the event loop never
	// blocks on it.
	done chan model.SuiteRun
}

func (e runQueuedEvent) RunID() int {
	return e.run.ID
}

func (e runQueuedEvent) Apply(model.SuiteRun) model.SuiteRun {
	return e.run
}

type testFinishedEvent struct {
	runID    int
	testRun  model.TestRun
	summary  model.Summary
	outcomes []model.Outcome
}

func (e testFinishedEvent) RunID() int {
	return e.runID
}

func (e testFinishedEvent) Apply(run model.SuiteRun) model.SuiteRun {
	if run.Start.IsZero() {
		run.Start = e.testRun.Start
	}

	for i := range run.TestResults {
		if run.TestResults[i].Name == e.testRun.Name {
			run.TestResults[i] = e.testRun
			break
		}
	}

	run.Summary = e.summary
	run.Outcomes = e.outcomes

	return run
}

type runFinishedEvent struct {
	run model.SuiteRun
}

func (e runFinishedEvent) RunID() int {
	return e.run.ID
}

func (e runFinishedEvent) Apply(model.SuiteRun) model.SuiteRun {
	return e.run
}
