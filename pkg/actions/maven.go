package actions

import (
	"path/filepath"
	"regexp"

	"github.com/joshdk/go-junit"
)

var mavenTestCommand = regexp.MustCompile(`(maven|mvn|mavenw|mvnw)\s+(([^\s]+\s+)*)?(test|package|verify|install)`)

// mavenDialect handles workflows driven by Maven. Surefire writes its JUnit
// reports to target/surefire-reports.
type mavenDialect struct{}

func (mavenDialect) BuildTool() string {
	return "maven"
}

func (mavenDialect) IsTestCommand(command string) bool {
	return mavenTestCommand.MatchString(command)
}

func (mavenDialect) TestResults(repoPath string) ([]junit.Test, error) {
	return collectTestReports(filepath.Join(repoPath, "target", "surefire-reports"))
}
