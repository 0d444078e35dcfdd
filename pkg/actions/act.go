package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/joshdk/go-junit"
	"github.com/sirupsen/logrus"
)

// An ActRun is the outcome of executing a single workflow with act.
type ActRun struct {
	Failed bool // Whether the run is considered a failed reproduction

	Tests []junit.Test // All test cases parsed from the run's reports

	Stdout string
	Stderr string

	WorkflowPath string
	WorkflowName string
	BuildTool    string

	ElapsedTime time.Duration

	DefaultActions bool // Whether the run used injected default workflows

	TimedOut bool
}

// FailedTests returns the tests which failed, excluding errored ones.
func (r *ActRun) FailedTests() []junit.Test {
	var failed []junit.Test
	for _, test := range r.Tests {
		if test.Status == junit.StatusFailed {
			failed = append(failed, test)
		}
	}
	return failed
}

// ErroringTests returns the tests which finished with an error.
func (r *ActRun) ErroringTests() []junit.Test {
	var erroring []junit.Test
	for _, test := range r.Tests {
		if test.Status == junit.StatusError {
			erroring = append(erroring, test)
		}
	}
	return erroring
}

// SkippedTests returns the tests which were skipped.
func (r *ActRun) SkippedTests() []junit.Test {
	var skipped []junit.Test
	for _, test := range r.Tests {
		if test.Status == junit.StatusSkipped {
			skipped = append(skipped, test)
		}
	}
	return skipped
}

// Act executes instrumented workflows with the act runner inside a fixed
// runner image.
type Act struct {
	Binary      string        // The act binary to invoke
	RunnerImage string        // The image backing ubuntu-latest
	Timeout     time.Duration // The per-workflow timeout
	MemoryLimit string        // The container memory cap, e.g. "7g"
	Reuse       bool          // Whether to keep containers around after the run
	Offline     bool          // Whether to cut the container off the network

	Tokens *TokenPool // Token pool for authenticated runs, may be nil
}

var (
	actSetupLock sync.Mutex
	actSetupDone bool
)

// VerifySetup checks that act is installed and the runner image exists. The
// check runs once per process.
func (a *Act) VerifySetup() error {
	actSetupLock.Lock()
	defer actSetupLock.Unlock()
	if actSetupDone {
		return nil
	}

	if err := exec.Command(a.Binary, "--help").Run(); err != nil {
		return errors.Join(fmt.Errorf("act is not correctly installed at %q", a.Binary), err)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return errors.Join(fmt.Errorf("couldn't create docker client"), err)
	}
	defer cli.Close()
	images, err := cli.ImageList(context.Background(), image.ListOptions{})
	if err != nil {
		return errors.Join(fmt.Errorf("couldn't list docker images"), err)
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == a.RunnerImage {
				actSetupDone = true
				return nil
			}
		}
	}
	return fmt.Errorf("runner image %s does not exist, run setup first", a.RunnerImage)
}

// args assembles the act command line for the given workflow.
func (a *Act) args(workflowPath string) []string {
	containerOptions := fmt.Sprintf("-u %d:%d", os.Getuid(), os.Getgid())
	if a.Offline {
		containerOptions += " --network none"
	}
	containerOptions += fmt.Sprintf(" --memory=%s", a.MemoryLimit)

	args := []string{
		"-P", "ubuntu-latest=" + a.RunnerImage,
		"--pull=false",
		"--no-cache-server",
		"--max-parallel", "1",
	}
	if a.Reuse {
		args = append(args, "--reuse")
	} else {
		args = append(args, "--rm")
	}
	args = append(args, "--container-options", containerOptions)
	if a.Tokens.HasTokens() {
		if token := a.Tokens.Get(); token != nil {
			args = append(args, "-s", "GITHUB_TOKEN="+token.Value)
		}
	}
	return append(args, "-W", workflowPath)
}

// Run executes the given workflow in repoPath with the passed act cache dir
// and collects the resulting test reports.
func (a *Act) Run(ctx context.Context, repoPath string, workflow *Workflow, cacheDir string) (*ActRun, error) {
	if err := a.VerifySetup(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.Binary, a.args(workflow.Path)...)
	cmd.Dir = repoPath
	cmd.Env = append(os.Environ(),
		"ACT_DISABLE_VERSION_CHECK=1",
		"XDG_CACHE_HOME="+cacheDir,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

	// act bind-mounts the repo, so reports end up below .act-result/<repo dir>
	resultPath := filepath.Join(repoPath, ".act-result", filepath.Base(filepath.Clean(repoPath)))
	tests, err := workflow.TestResults(resultPath)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("couldn't collect test results of workflow %s", workflow.Path), err)
	}

	run := &ActRun{
		Tests: tests,

		Stdout: stdout.String(),
		Stderr: stderr.String(),

		WorkflowPath: workflow.Path,
		WorkflowName: workflow.Name(),
		BuildTool:    workflow.BuildTool(),

		ElapsedTime: elapsed,

		TimedOut: timedOut,
	}

	exitCode := 0
	if runErr != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	// A run that exceeded the memory limit is not a valid reproduction even if
	// tests failed. act does not propagate the container's exit code, so the
	// output has to be checked.
	oomKilled := exitCode == 1 && len(run.FailedTests()) != 0 &&
		(strings.Contains(run.Stderr, "exitcode '137'") || strings.Contains(run.Stdout, "exitcode '137': failure"))

	if oomKilled || timedOut ||
		(len(run.FailedTests()) == 0 && exitCode != 0) ||
		len(run.ErroringTests()) > 0 {
		run.Failed = true
		logrus.Warnf("Workflow %s failed, exit code %d", workflow.Path, exitCode)
	}

	a.Tokens.refresh(workflow.Tokens())

	return run, nil
}
