package gitbug

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dchest/uniuri"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/gitbugactions/gitbug-java/internal/dockerutil"
	"github.com/gitbugactions/gitbug-java/pkg/actions"
	"github.com/otiai10/copy"
	"github.com/sirupsen/logrus"
)

// BaseImage is the runner image built by setup, from which per-bug runner
// images are derived.
const BaseImage = "gitbug-java:base"

// A Runner reproduces checked out bugs by replaying their test workflows.
type Runner struct {
	Dataset *Dataset

	Config    *Config
	RunConfig *RunConfig

	CacheDirs *actions.CacheDirManager
	Tokens    *actions.TokenPool
}

// Run replays the test workflows of the bug checked out in workdir and writes
// the aggregated report to the workdir's results file.
func (r *Runner) Run(ctx context.Context, workdir string) (*Report, error) {
	bug, err := LoadWorkdirBug(workdir)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("bid", bug.BID())
	log.Debugf("Running %s in %s", bug.BID(), workdir)

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Join(fmt.Errorf("couldn't create docker client"), err)
	}
	defer cli.Close()

	cacheDir := r.RunConfig.ActCacheDir
	if cacheDir == "" {
		cacheDir = r.CacheDirs.Acquire()
		defer r.CacheDirs.Return(cacheDir)
	}

	diffDir := r.Dataset.DiffDir(bug)
	diffPath, err := environmentDiffPath(diffDir)
	if err != nil {
		return nil, err
	}

	log.Debug("Creating runner image")
	runnerImage := "gitbug-java:" + strings.ToLower(uniuri.New())
	if err := dockerutil.CreateDiffImage(ctx, cli, BaseImage, runnerImage, diffPath); err != nil {
		return nil, errors.Join(fmt.Errorf("couldn't create runner image for %s", bug.BID()), err)
	}
	defer func() {
		if _, err := cli.ImageRemove(context.Background(), runnerImage, image.RemoveOptions{Force: true}); err != nil {
			log.Warnf("Couldn't remove runner image %s - %v", runnerImage, err)
		}
	}()

	var defaultActions *actions.GitHubActions
	var unstage func()
	if bug.UsesDefaultActions() {
		defaultActions, unstage, err = r.stageDefaultActions(diffDir, workdir, bug.Language, runnerImage)
		if err != nil {
			return nil, err
		}
		defer unstage()
	}

	executor := &TestExecutor{
		RepoPath: workdir,
		Language: bug.Language,

		CacheDir:    cacheDir,
		RunnerImage: runnerImage,

		DefaultActions: defaultActions,

		ActBinary:   r.Config.ActBinary,
		Timeout:     r.RunConfig.Timeout,
		MemoryLimit: r.RunConfig.MemoryLimit,

		Tokens: r.Tokens,
	}

	log.Debug("Executing GitHub Actions")
	CleanResults(workdir)
	defer CleanResults(workdir)
	runs, err := executor.RunTests(ctx, false, true)
	if err != nil {
		return nil, err
	}

	report := NewReport(bug.ExpectedTests(), runs)
	if err := report.Write(workdir); err != nil {
		return nil, err
	}

	for _, run := range runs {
		log.Debug(run.Stdout)
	}

	return report, nil
}

// stageDefaultActions copies the bug's stored default workflow into the clone
// to parse it in place, then unlinks it again and wraps it so the executor can
// inject it when the repository has no test workflows of its own.
func (r *Runner) stageDefaultActions(diffDir, repoPath, language, runnerImage string) (*actions.GitHubActions, func(), error) {
	workflowDir := filepath.Join(diffDir, "workflow")
	entries, err := os.ReadDir(workflowDir)
	if err != nil || len(entries) == 0 {
		return nil, nil, errors.Join(fmt.Errorf("no default workflow stored in %s", workflowDir), err)
	}

	staged := filepath.Join(repoPath, ".github", "workflows", strings.ToLower(uniuri.New())+".yml")
	if err := os.MkdirAll(filepath.Dir(staged), 0755); err != nil {
		return nil, nil, err
	}
	if err := copy.Copy(filepath.Join(workflowDir, entries[0].Name()), staged); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("couldn't stage default workflow"), err)
	}

	workflow, err := actions.NewWorkflow(staged, language, "")
	// The staged file must be gone again before the executor scans the clone,
	// or the injection branch never fires. The workflow is kept in memory and
	// only written back for the actual run.
	os.Remove(staged)
	if err != nil {
		return nil, nil, err
	}

	defaults := &actions.GitHubActions{
		RepoPath:      repoPath,
		Language:      language,
		RunnerImage:   runnerImage,
		TestWorkflows: []*actions.Workflow{workflow},
	}
	return defaults, func() { os.Remove(staged) }, nil
}

// environmentDiffPath returns the entry of the bug's diff folder holding the
// stored environment diff, skipping the default workflow directory.
func environmentDiffPath(diffDir string) (string, error) {
	entries, err := os.ReadDir(diffDir)
	if err != nil {
		return "", errors.Join(fmt.Errorf("couldn't read diff folder %s", diffDir), err)
	}
	for _, entry := range entries {
		if entry.Name() != "workflow" {
			return filepath.Join(diffDir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("diff folder %s holds no environment diff", diffDir)
}
