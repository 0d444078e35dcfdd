package actions

import "github.com/joshdk/go-junit"

// unknownDialect represents a workflow whose build tool is either unsupported
// or could not be identified. It never has tests and yields no results.
type unknownDialect struct{}

func (unknownDialect) BuildTool() string {
	return "unknown"
}

func (unknownDialect) IsTestCommand(string) bool {
	return false
}

func (unknownDialect) TestResults(string) ([]junit.Test, error) {
	return nil, nil
}
