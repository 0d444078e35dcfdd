package actions

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joshdk/go-junit"
	"github.com/sirupsen/logrus"
)

// collectTestReports recursively parses every JUnit XML file below dir and
// returns the flattened list of test cases. A missing directory yields no
// tests, not an error: a run that produced no reports is handled by the caller.
func collectTestReports(dir string) ([]junit.Test, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var tests []junit.Test
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".xml") {
			return nil
		}
		suites, err := junit.IngestFile(path)
		if err != nil {
			// Tools occasionally write truncated reports next to valid ones
			logrus.Warnf("Skipping unparsable test report %s - %v", path, err)
			return nil
		}
		for _, suite := range suites {
			tests = append(tests, flattenSuite(suite)...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tests, nil
}

func flattenSuite(suite junit.Suite) []junit.Test {
	tests := suite.Tests
	for _, nested := range suite.Suites {
		tests = append(tests, flattenSuite(nested)...)
	}
	return tests
}
