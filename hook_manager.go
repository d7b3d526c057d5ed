package apicheck

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vianscientific/apicheck/internal/model"
)

type OutcomeListener interface {
	Hook
	OutcomeRecorded(suite model.Suite, run model.SuiteRun, outcome model.Outcome)
}

type TestFinishedListener interface {
	Hook
	TestFinished(suite model.Suite, run model.SuiteRun, testRun model.TestRun)
}

type SuiteFinishedListener interface {
	Hook
	SuiteFinished(suite model.Suite, run model.SuiteRun)
}

type Hook interface {
	Name() string
	Init() error
}

// hookManager calls all listeners synchronously on the goroutine executing
// the run.
type hookManager struct {
	all           []Hook
	outcome       []OutcomeListener
	testFinished  []TestFinishedListener
	suiteFinished []SuiteFinishedListener

	log logrus.FieldLogger
}

func newHookManager(log logrus.FieldLogger) *hookManager {
	return &hookManager{
		all:           []Hook{},
		outcome:       []OutcomeListener{},
		testFinished:  []TestFinishedListener{},
		suiteFinished: []SuiteFinishedListener{},

		log: log,
	}
}

func (s *hookManager) init() error {
	for _, p := range s.all {
		if err := s.register(p); err != nil {
			return err
		}
	}

	return nil
}

func (s *hookManager) register(p Hook) error {
	if err := p.Init(); err != nil {
		return fmt.Errorf("initiating hook %q: %w", p.Name(), err)
	}

	registeredHook := false

	if l, ok := p.(OutcomeListener); ok {
		s.outcome = append(s.outcome, l)
		registeredHook = true
	}
	if l, ok := p.(TestFinishedListener); ok {
		s.testFinished = append(s.testFinished, l)
		registeredHook = true
	}
	if l, ok := p.(SuiteFinishedListener); ok {
		s.suiteFinished = append(s.suiteFinished, l)
		registeredHook = true
	}

	if !registeredHook {
		return fmt.Errorf("hook %q does not implement any listener", p.Name())
	}

	return nil
}

func (s *hookManager) notifyOutcomeRecorded(suite model.Suite, run model.SuiteRun, outcome model.Outcome) {
	for _, p := range s.outcome {
		s.safeCall(p, func() { p.OutcomeRecorded(suite, run, outcome) })
	}
}

func (s *hookManager) notifyTestFinished(suite model.Suite, run model.SuiteRun, testRun model.TestRun) {
	for _, p := range s.testFinished {
		s.safeCall(p, func() { p.TestFinished(suite, run, testRun) })
	}
}

func (s *hookManager) notifySuiteFinished(suite model.Suite, run model.SuiteRun) {
	for _, p := range s.suiteFinished {
		s.safeCall(p, func() { p.SuiteFinished(suite, run) })
	}
}

func (s *hookManager) safeCall(p Hook, f func()) {
	defer func() {
		if err := recover(); err != nil {
			s.log.WithField("hook", p.Name()).Errorf("hook panic'd: %v", err)
		}
	}()

	f()
}
