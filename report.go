package apicheck

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// WriteReport writes the human readable summary of a run: counts, failures
// and the success rate.
func WriteReport(w io.Writer, summary Summary) error {
	b := strings.Builder{}

	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("TEST SUMMARY\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString(fmt.Sprintf("Passed: %d\n", summary.Passed))
	b.WriteString(fmt.Sprintf("Failed: %d\n", summary.Failed))
	b.WriteString(fmt.Sprintf("Total: %d\n", summary.Total()))

	if len(summary.Failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, f := range summary.Failures {
			b.WriteString("  - " + failureLine(f) + "\n")
		}
	}

	b.WriteString(fmt.Sprintf("\nSuccess rate: %.1f%%\n", summary.SuccessRate()))

	_, err := io.WriteString(w, b.String())

	return err
}

// WriteJSONReport writes the complete run as indented JSON to filename.
func WriteJSONReport(filename string, run SuiteRun) error {
	body, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}

	if err := os.WriteFile(filename, body, 0o644); err != nil {
		return fmt.Errorf("writing run report %q: %w", filename, err)
	}

	return nil
}

func failureLine(o Outcome) string {
	line := o.Name + ": " + o.Message
	if o.Message == "" {
		line = o.Name
	}

	if o.Kind != "" {
		line += " [" + string(o.Kind) + "]"
	}

	return line
}
