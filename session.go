package apicheck

import (
	"github.com/vianscientific/apicheck/internal/apiclient"
	"github.com/vianscientific/apicheck/internal/model"
)

// Reexport to allow library users to reference these types

type TB = model.TB
type TestFunc = model.TestFunc
type Test = model.Test
type Suite = model.Suite
type Session = model.Session
type EntityKind = model.EntityKind
type Outcome = model.Outcome
type Summary = model.Summary
type SuiteRun = model.SuiteRun
type RunParams = model.RunParams
type Exchange = apiclient.Exchange

func NewSession(baseURL string) *Session {
	return model.NewSession(baseURL)
}
