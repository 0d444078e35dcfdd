package gitbug

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gitbugactions/gitbug-java/pkg/actions"
	"github.com/joshdk/go-junit"
)

// A FailedTest identifies a single failing test in the summary.
type FailedTest struct {
	Classname string `json:"classname"`
	Name      string `json:"name"`
}

// A RunOutput preserves the raw output of one workflow run.
type RunOutput struct {
	Workflow  string `json:"workflow"`
	BuildTool string `json:"build_tool"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// A Report is the aggregated outcome of a reproduction run, persisted as
// test-results.json in the workdir.
type Report struct {
	ExpectedTests int `json:"expected_tests"`
	ExecutedTests int `json:"executed_tests"`
	SkippedTests  int `json:"skipped_tests"`
	PassingTests  int `json:"passing_tests"`
	FailingTests  int `json:"failing_tests"`

	// Executed tests the fixed revision never ran, and expected tests the run
	// never executed
	UnexpectedTests int `json:"unexpected_tests"`
	MissingTests    int `json:"missing_tests"`

	FailedTests []FailedTest `json:"failed_tests"`
	RunOutputs  []RunOutput  `json:"run_outputs"`

	runCount int
}

// NewReport aggregates the runs of one reproduction against the tests the bug
// is expected to execute.
func NewReport(expected []TestRecord, runs []*actions.ActRun) *Report {
	report := &Report{
		ExpectedTests: len(expected),
		FailedTests:   []FailedTest{},
		RunOutputs:    []RunOutput{},
		runCount:      len(runs),
	}

	expectedSet := make(map[FailedTest]bool, len(expected))
	for _, test := range expected {
		expectedSet[FailedTest{Classname: test.Classname, Name: test.Name}] = true
	}

	executedSet := make(map[FailedTest]bool)
	for _, run := range runs {
		for _, test := range run.Tests {
			key := FailedTest{Classname: test.Classname, Name: test.Name}
			executedSet[key] = true

			report.ExecutedTests++
			switch test.Status {
			case junit.StatusSkipped:
				report.SkippedTests++
			case junit.StatusFailed, junit.StatusError:
				report.FailingTests++
				report.FailedTests = append(report.FailedTests, key)
			default:
				report.PassingTests++
			}
			if !expectedSet[key] {
				report.UnexpectedTests++
			}
		}

		report.RunOutputs = append(report.RunOutputs, RunOutput{
			Workflow:  run.WorkflowName,
			BuildTool: run.BuildTool,

			Stdout: run.Stdout,
			Stderr: run.Stderr,

			ElapsedSeconds: run.ElapsedTime.Seconds(),
		})
	}

	for key := range expectedSet {
		if !executedSet[key] {
			report.MissingTests++
		}
	}

	return report
}

// Success reports whether the run reproduced the expected behavior: at least
// one workflow ran, nothing failed, and exactly the expected tests executed.
func (r *Report) Success() bool {
	return r.runCount > 0 && r.FailingTests == 0 && r.ExecutedTests == r.ExpectedTests
}

// Write persists the report to the workdir's results file.
func (r *Report) Write(workdir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(ResultsPath(workdir)), 0755); err != nil {
		return err
	}
	return os.WriteFile(ResultsPath(workdir), data, 0644)
}

// Print writes a human readable summary to w.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Expected number of tests: %d\n", r.ExpectedTests)
	fmt.Fprintf(w, "Executed tests: %d\n", r.ExecutedTests)
	fmt.Fprintf(w, "Skipped tests: %d\n", r.SkippedTests)
	fmt.Fprintf(w, "Passing tests: %d\n", r.PassingTests)
	fmt.Fprintf(w, "Failing tests: %d\n", r.FailingTests)
	if len(r.FailedTests) > 0 {
		fmt.Fprintln(w, "Failed tests:")
		for _, test := range r.FailedTests {
			fmt.Fprintf(w, "- %s#%s\n", test.Classname, test.Name)
		}
	}
}
