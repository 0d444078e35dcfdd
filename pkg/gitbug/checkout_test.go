package gitbug

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
)

func TestStatePaths(t *testing.T) {
	assert.Equal(t, filepath.Join("work", ".gitbug-java", "gitbug.json"), InfoPath("work"))
	assert.Equal(t, filepath.Join("work", ".gitbug-java", "test-results.json"), ResultsPath("work"))
}

func TestCloneWithRetries(t *testing.T) {
	t.Run("Existing repository is not wiped", func(t *testing.T) {
		workdir := t.TempDir()
		_, err := git.PlainInit(workdir, false)
		assert.Nil(t, err, "initializing the existing repository failed")
		marker := filepath.Join(workdir, "important.txt")
		assert.Nil(t, os.WriteFile(marker, []byte("keep me"), 0644))

		_, err = cloneWithRetries("https://github.com/gitbugactions/gson", workdir)
		assert.NotNil(t, err, "cloning over an existing repository was accepted")

		_, err = os.Stat(marker)
		assert.Nil(t, err, "the existing checkout was deleted")
		_, err = os.Stat(filepath.Join(workdir, ".git"))
		assert.Nil(t, err, "the existing repository was deleted")
	})
}

func TestLoadWorkdirBug(t *testing.T) {
	t.Run("Missing info file", func(t *testing.T) {
		_, err := LoadWorkdirBug(t.TempDir())
		assert.NotNil(t, err, "a workdir without bug info was accepted")
	})
	t.Run("Round trip through checkout's dump", func(t *testing.T) {
		bug, err := ParseBug([]byte(bugRecord))
		assert.Nil(t, err)

		workdir := t.TempDir()
		info, err := bug.MarshalInfo(false)
		assert.Nil(t, err)
		assert.Nil(t, os.MkdirAll(filepath.Join(workdir, stateDir), 0755))
		assert.Nil(t, os.WriteFile(InfoPath(workdir), info, 0644))

		loaded, err := LoadWorkdirBug(workdir)
		assert.Nil(t, err, "a dumped bug record does not load")
		assert.Equal(t, bug.BID(), loaded.BID(), "the bug id changed through the workdir round trip")
		assert.False(t, loaded.Fixed, "the fixed flag changed through the workdir round trip")
	})
}
