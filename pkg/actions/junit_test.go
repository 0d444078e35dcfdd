package actions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joshdk/go-junit"
	"github.com/stretchr/testify/assert"
)

const surefireReport = `<?xml version="1.0" encoding="UTF-8"?>
<testsuite name="com.example.FooTest" tests="3" failures="1" skipped="1">
  <testcase classname="com.example.FooTest" name="passes" time="0.01"/>
  <testcase classname="com.example.FooTest" name="fails" time="0.02">
    <failure message="expected true" type="java.lang.AssertionError">stacktrace</failure>
  </testcase>
  <testcase classname="com.example.FooTest" name="slowTest" time="0">
    <skipped/>
  </testcase>
</testsuite>
`

func TestCollectTestReports(t *testing.T) {
	t.Run("Reports are parsed recursively", func(t *testing.T) {
		repo := t.TempDir()
		reportsDir := filepath.Join(repo, "target", "surefire-reports")
		assert.Nil(t, os.MkdirAll(reportsDir, 0755))
		assert.Nil(t, os.WriteFile(filepath.Join(reportsDir, "TEST-com.example.FooTest.xml"), []byte(surefireReport), 0644))

		tests, err := mavenDialect{}.TestResults(repo)
		assert.Nil(t, err, "collecting reports returned an error")
		assert.Len(t, tests, 3, "wrong number of tests parsed")

		byName := make(map[string]junit.Status)
		for _, test := range tests {
			assert.Equal(t, "com.example.FooTest", test.Classname, "wrong classname parsed")
			byName[test.Name] = test.Status
		}
		assert.Equal(t, junit.StatusPassed, byName["passes"], "passing test got wrong status")
		assert.Equal(t, junit.StatusFailed, byName["fails"], "failing test got wrong status")
		assert.Equal(t, junit.StatusSkipped, byName["slowTest"], "skipped test got wrong status")
	})
	t.Run("Missing report directory yields no tests", func(t *testing.T) {
		tests, err := gradleDialect{}.TestResults(t.TempDir())
		assert.Nil(t, err, "a repo without reports is not an error")
		assert.Empty(t, tests, "a repo without reports yielded tests")
	})
	t.Run("Unparsable reports are skipped", func(t *testing.T) {
		reportsDir := t.TempDir()
		assert.Nil(t, os.WriteFile(filepath.Join(reportsDir, "TEST-valid.xml"), []byte(surefireReport), 0644))
		assert.Nil(t, os.WriteFile(filepath.Join(reportsDir, "TEST-truncated.xml"), []byte("<testsuite><testcase"), 0644))

		tests, err := collectTestReports(reportsDir)
		assert.Nil(t, err, "a truncated report next to a valid one is not an error")
		assert.Len(t, tests, 3, "the valid report was not parsed")
	})
	t.Run("Non-xml files are ignored", func(t *testing.T) {
		reportsDir := t.TempDir()
		assert.Nil(t, os.WriteFile(filepath.Join(reportsDir, "notes.txt"), []byte("not a report"), 0644))

		tests, err := collectTestReports(reportsDir)
		assert.Nil(t, err)
		assert.Empty(t, tests, "a non-xml file was parsed as report")
	})
}
