package gitbug

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTestDataset(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	bugsDir := filepath.Join(dataDir, "bugs")
	assert.Nil(t, os.MkdirAll(bugsDir, 0755))

	records := `{"repository": "apache/commons-lang", "clone_url": "https://github.com/apache/commons-lang", "commit_hash": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "language": "java"}

{"repository": "apache/commons-lang", "clone_url": "https://github.com/apache/commons-lang", "commit_hash": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "language": "java"}
{"this record": "is invalid"}
`
	assert.Nil(t, os.WriteFile(filepath.Join(bugsDir, "apache-commons-lang.json"), []byte(records), 0644))

	record := `{"repository": "google/gson", "clone_url": "https://github.com/google/gson", "commit_hash": "cccccccccccccccccccccccccccccccccccccccc", "language": "java"}` + "\n"
	assert.Nil(t, os.WriteFile(filepath.Join(bugsDir, "google-gson.json"), []byte(record), 0644))

	// Non-json files are skipped
	assert.Nil(t, os.WriteFile(filepath.Join(bugsDir, "README.md"), []byte("dataset"), 0644))

	return dataDir
}

func TestLoadDataset(t *testing.T) {
	dataset, err := LoadDataset(writeTestDataset(t))
	assert.Nil(t, err, "loading a valid dataset returned an error")

	t.Run("Project ids are sorted", func(t *testing.T) {
		assert.Equal(t, []string{"apache-commons-lang", "google-gson"}, dataset.ProjectIDs(), "wrong project ids loaded")
	})
	t.Run("Bug ids keep dataset order", func(t *testing.T) {
		bids, err := dataset.BugIDs("apache-commons-lang")
		assert.Nil(t, err, "listing an existing project returned an error")
		assert.Equal(t, []string{
			"apache-commons-lang-aaaaaaaaaaaa",
			"apache-commons-lang-bbbbbbbbbbbb",
		}, bids, "wrong bug ids listed")
	})
	t.Run("All bug ids span every project", func(t *testing.T) {
		bids, err := dataset.BugIDs("")
		assert.Nil(t, err)
		assert.Len(t, bids, 3, "wrong number of bugs loaded")
	})
	t.Run("Unknown project id is an error", func(t *testing.T) {
		_, err := dataset.BugIDs("does-not-exist")
		assert.NotNil(t, err, "an unknown project id was silently accepted")
	})
	t.Run("Bugs are found by id", func(t *testing.T) {
		bug := dataset.Bug("google-gson-cccccccccccc")
		assert.NotNil(t, bug, "an existing bug was not found")
		assert.Equal(t, "google-gson", bug.PID())

		assert.Nil(t, dataset.Bug("google-gson-dddddddddddd"), "a nonexistent bug was found")
	})
	t.Run("Diff dir points into the dataset", func(t *testing.T) {
		bug := dataset.Bug("google-gson-cccccccccccc")
		assert.Equal(t, filepath.Join(dataset.DataDir, "google-gson", bug.CommitHash), dataset.DiffDir(bug), "wrong diff dir derived")
	})
	t.Run("Missing dataset directory is an error", func(t *testing.T) {
		_, err := LoadDataset(filepath.Join(t.TempDir(), "nope"))
		assert.NotNil(t, err, "a missing dataset directory was accepted")
	})
}
