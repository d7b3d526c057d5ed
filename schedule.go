package apicheck

import "github.com/robfig/cron/v3"

type ScheduledRun struct {
	// Schedule defines how often a run is scheduled. Both the 5 field and the
	// 6 field (with seconds) format are accepted, as well as descriptors such
	// as `@every 15m`. For the format see
	// https://pkg.go.dev/github.com/robfig/cron#hdr-CRON_Expression_Format
	Schedule string
	// Params restricts the tests of a scheduled run.
	Params RunParams
	// EntryID identifies the cronjob
	EntryID cron.EntryID
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule returns an error if the expression cannot be parsed.
func ValidateSchedule(expr string) error {
	_, err := scheduleParser.Parse(expr)
	return err
}
