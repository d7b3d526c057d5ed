// Package output renders run results and suite listings as coloured tables.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/vianscientific/apicheck/internal/model"
)

func render(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetBorder(true)
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(false)

	table.AppendBulk(rows)
	table.Render()
}

func formatResult(r model.Result) string {
	switch r {
	case model.ResultPassed:
		return color.GreenString("✓ PASS")
	case model.ResultFailed:
		return color.RedString("✗ FAIL")
	case model.ResultSkipped:
		return color.YellowString("- SKIP")
	default:
		return color.New(color.FgHiBlack).Sprint(string(r))
	}
}

func formatOutcomes(passed, total int) string {
	text := fmt.Sprintf("%d/%d", passed, total)

	switch {
	case passed == total:
		return color.GreenString(text)
	case passed == 0:
		return color.RedString(text)
	default:
		return color.YellowString(text)
	}
}

func formatPercentage(value float64) string {
	text := fmt.Sprintf("%.1f%%", value)

	switch {
	case value == 100.0:
		return color.GreenString(text)
	case value >= 90.0:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}

// WriteRun renders one row per test function, followed by the failed
// outcomes and the success rate.
func WriteRun(w io.Writer, run model.SuiteRun) {
	header := color.New(color.FgCyan, color.Bold)

	header.Fprintf(w, "\n%s (run %d)\n", run.SuiteName, run.ID)

	rows := make([][]string, 0, len(run.TestResults))
	for _, tr := range run.TestResults {
		rows = append(rows, []string{
			tr.Name,
			tr.Group,
			formatResult(tr.Result),
			formatOutcomes(tr.Passed, tr.Passed+tr.Failed),
			fmt.Sprintf("%dms", tr.DurationInMS),
		})
	}

	render(w, []string{"Test", "Group", "Result", "Checks", "Duration"}, rows)

	if len(run.Summary.Failures) > 0 {
		header.Fprintln(w, "\nFailures")

		failures := make([][]string, 0, len(run.Summary.Failures))
		for _, o := range run.Summary.Failures {
			failures = append(failures, []string{o.Test, o.Name, string(o.Kind), o.Message})
		}

		render(w, []string{"Test", "Check", "Kind", "Message"}, failures)

		for _, tr := range run.TestResults {
			if tr.Result == model.ResultFailed && strings.TrimSpace(tr.Logs) != "" {
				fmt.Fprintf(w, "\n%s\n%s", color.New(color.Bold).Sprint(tr.Name+" logs:"), tr.Logs)
			}
		}
	}

	fmt.Fprintf(w, "\nPassed: %s  Failed: %s  Total: %d  Success rate: %s\n",
		color.GreenString("%d", run.Summary.Passed),
		color.RedString("%d", run.Summary.Failed),
		run.Summary.Total(),
		formatPercentage(run.Summary.SuccessRate()))
}

// WriteSuite lists the tests of a suite in execution order.
func WriteSuite(w io.Writer, suite model.Suite) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "%s\n", suite.Name)

	if suite.Description != "" {
		fmt.Fprintln(w, suite.Description)
	}

	rows := make([][]string, 0, len(suite.Tests))
	for i, test := range suite.Tests {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), test.Name, test.Group})
	}

	render(w, []string{"#", "Test", "Group"}, rows)

	fmt.Fprintf(w, "Groups: %s\n", strings.Join(suite.Groups(), ", "))
}
