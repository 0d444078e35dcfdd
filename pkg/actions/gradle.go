package actions

import (
	"path/filepath"
	"regexp"

	"github.com/joshdk/go-junit"
)

var gradleTestCommand = regexp.MustCompile(`(gradle|gradlew)\s+(([^\s]+\s+)*)?(test|check|build|buildDependents|buildNeeded)`)

// gradleDialect handles workflows driven by Gradle, which writes its JUnit
// reports to build/test-results/test.
type gradleDialect struct{}

func (gradleDialect) BuildTool() string {
	return "gradle"
}

func (gradleDialect) IsTestCommand(command string) bool {
	return gradleTestCommand.MatchString(command)
}

func (gradleDialect) TestResults(repoPath string) ([]junit.Test, error) {
	return collectTestReports(filepath.Join(repoPath, "build", "test-results", "test"))
}
