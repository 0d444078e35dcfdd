package gitbug

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dchest/uniuri"
	"github.com/gitbugactions/gitbug-java/pkg/actions"
)

// A TestExecutor runs the instrumented test workflows of a repository clone
// with act.
type TestExecutor struct {
	RepoPath string
	Language string

	CacheDir    string
	RunnerImage string

	// Workflows to inject when the clone has no usable test workflows of its
	// own. May be nil.
	DefaultActions *actions.GitHubActions

	ActBinary   string
	Timeout     time.Duration
	MemoryLimit string

	Tokens *actions.TokenPool
}

// RunTests discovers, instruments and executes the clone's test workflows and
// returns one run per workflow.
func (e *TestExecutor) RunTests(ctx context.Context, keepContainers, offline bool) ([]*actions.ActRun, error) {
	testActions, err := actions.NewGitHubActions(e.RepoPath, e.Language, actions.GitHubActionsOptions{
		RunnerImage:    e.RunnerImage,
		KeepContainers: keepContainers,
		Offline:        offline,

		ActBinary:   e.ActBinary,
		Timeout:     e.Timeout,
		MemoryLimit: e.MemoryLimit,

		Tokens: e.Tokens,
	})
	if err != nil {
		return nil, err
	}

	usedDefaults := false
	if len(testActions.TestWorkflows) == 0 && e.DefaultActions != nil {
		usedDefaults = true
		for _, workflow := range e.DefaultActions.TestWorkflows {
			injected := *workflow
			injected.Path = filepath.Join(e.RepoPath, ".github", "workflows", filepath.Base(workflow.Path))
			testActions.TestWorkflows = append(testActions.TestWorkflows, &injected)
		}
	}

	// act derives container names from the workflow contents. Randomizing the
	// name prevents collisions between concurrent runs of the same bug.
	for _, workflow := range testActions.TestWorkflows {
		workflow.SetName(strings.ToLower(uniuri.New()))
	}
	if err := testActions.SaveWorkflows(); err != nil {
		return nil, err
	}
	defer testActions.DeleteWorkflows()

	var runs []*actions.ActRun
	for _, workflow := range testActions.TestWorkflows {
		run, err := testActions.RunWorkflow(ctx, workflow, e.CacheDir)
		if err != nil {
			return nil, err
		}
		run.DefaultActions = usedDefaults
		runs = append(runs, run)
	}

	return runs, nil
}

// CleanResults removes the act result directory a run left in the workdir.
func CleanResults(repoPath string) {
	os.RemoveAll(filepath.Join(repoPath, ".act-result"))
}
