package actions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeWorkflowFile(t *testing.T, repo, name, content string) string {
	t.Helper()
	workflowsDir := filepath.Join(repo, ".github", "workflows")
	assert.Nil(t, os.MkdirAll(workflowsDir, 0755))
	path := filepath.Join(workflowsDir, name)
	assert.Nil(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewGitHubActions(t *testing.T) {
	t.Run("Test workflows get instrumented copies", func(t *testing.T) {
		repo := t.TempDir()
		writeWorkflowFile(t, repo, "ci.yml", mavenWorkflow)
		writeWorkflowFile(t, repo, "release.yml", "on: push\njobs:\n  release:\n    steps:\n      - run: echo release\n")

		gha, err := NewGitHubActions(repo, "Java", GitHubActionsOptions{})
		assert.Nil(t, err, "scanning a valid repository returned an error")

		assert.Len(t, gha.Workflows, 2, "wrong number of workflows discovered")
		assert.Len(t, gha.TestWorkflows, 1, "wrong number of test workflows identified")

		instrumented := gha.TestWorkflows[0]
		assert.Equal(t, filepath.Join(repo, ".github", "workflows", "ci-gitbug.yml"), instrumented.Path, "wrong instrumented workflow path")
		assert.Equal(t, "push", instrumented.Doc["on"], "workflow triggers were not instrumented")
		assert.Len(t, instrumented.jobs(), 1, "non-test jobs were not dropped")
	})
	t.Run("Saved workflows can be deleted again", func(t *testing.T) {
		repo := t.TempDir()
		writeWorkflowFile(t, repo, "ci.yml", mavenWorkflow)

		gha, err := NewGitHubActions(repo, "java", GitHubActionsOptions{})
		assert.Nil(t, err)
		assert.Nil(t, gha.SaveWorkflows(), "saving instrumented workflows failed")

		instrumentedPath := gha.TestWorkflows[0].Path
		_, err = os.Stat(instrumentedPath)
		assert.Nil(t, err, "the instrumented workflow was not written")

		gha.DeleteWorkflows()
		_, err = os.Stat(instrumentedPath)
		assert.True(t, os.IsNotExist(err), "the instrumented workflow was not deleted")

		_, err = os.Stat(filepath.Join(repo, ".github", "workflows", "ci.yml"))
		assert.Nil(t, err, "the original workflow was deleted")
	})
	t.Run("Matrix include workflows are skipped", func(t *testing.T) {
		repo := t.TempDir()
		writeWorkflowFile(t, repo, "include.yml", `
on: push
jobs:
  test:
    strategy:
      matrix:
        include:
          - java: 17
    steps:
      - run: mvn test
`)

		gha, err := NewGitHubActions(repo, "java", GitHubActionsOptions{})
		assert.Nil(t, err)
		assert.Len(t, gha.Workflows, 1, "the workflow was not discovered")
		assert.Empty(t, gha.TestWorkflows, "a matrix include workflow was instrumented")
	})
	t.Run("Repository without workflows", func(t *testing.T) {
		gha, err := NewGitHubActions(t.TempDir(), "java", GitHubActionsOptions{})
		assert.Nil(t, err, "a repository without workflows is not an error")
		assert.Empty(t, gha.Workflows, "workflows appeared out of nowhere")
	})
}
