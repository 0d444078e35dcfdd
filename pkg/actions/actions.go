package actions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Suffix appended to instrumented workflow copies so they don't clash with the
// repository's own files.
const instrumentedSuffix = "-gitbug"

// GitHubActions holds the workflows of a repository clone and the instrumented
// copies of those able to run tests under act.
type GitHubActions struct {
	RepoPath string
	Language string

	Workflows     []*Workflow // Every workflow found in the repository
	TestWorkflows []*Workflow // The instrumented test workflows

	RunnerImage    string
	KeepContainers bool
	Offline        bool

	ActBinary   string
	Timeout     time.Duration
	MemoryLimit string

	Tokens *TokenPool
}

// GitHubActionsOptions configures discovery and execution of a repository's
// workflows.
type GitHubActionsOptions struct {
	RunnerImage    string
	KeepContainers bool
	Offline        bool

	ActBinary   string
	Timeout     time.Duration
	MemoryLimit string

	Tokens *TokenPool
}

// NewGitHubActions scans repoPath's .github/workflows directory, instruments
// every workflow that runs tests and can be executed by act, and returns the
// result.
func NewGitHubActions(repoPath, language string, opts GitHubActionsOptions) (*GitHubActions, error) {
	gha := &GitHubActions{
		RepoPath: repoPath,
		Language: strings.ToLower(strings.TrimSpace(language)),

		RunnerImage:    opts.RunnerImage,
		KeepContainers: opts.KeepContainers,
		Offline:        opts.Offline,

		ActBinary:   opts.ActBinary,
		Timeout:     opts.Timeout,
		MemoryLimit: opts.MemoryLimit,

		Tokens: opts.Tokens,
	}
	if gha.ActBinary == "" {
		gha.ActBinary = "act"
	}
	if gha.Timeout == 0 {
		gha.Timeout = 10 * time.Minute
	}
	if gha.MemoryLimit == "" {
		gha.MemoryLimit = "7g"
	}

	workflowsPath := filepath.Join(repoPath, ".github", "workflows")
	err := filepath.WalkDir(workflowsPath, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yml") && !strings.HasSuffix(path, ".yaml") {
			return nil
		}

		workflow, err := NewWorkflow(path, gha.Language, "")
		if err != nil {
			return err
		}
		gha.Workflows = append(gha.Workflows, workflow)

		if !workflow.HasTests() || workflow.HasMatrixIncludeExclude() {
			return nil
		}

		workflow.InstrumentOS()
		workflow.InstrumentOnEvents()
		workflow.InstrumentStrategy()
		workflow.InstrumentJobs()
		workflow.InstrumentCacheSteps()
		workflow.InstrumentSetupSteps(gha.Tokens)

		ext := filepath.Ext(path)
		workflow.Path = strings.TrimSuffix(path, ext) + instrumentedSuffix + ext

		gha.TestWorkflows = append(gha.TestWorkflows, workflow)
		return nil
	})
	// A repository without a workflows directory simply has no workflows
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return gha, nil
}

// Actions returns the actions referenced by the instrumented test workflows.
func (g *GitHubActions) Actions() []ActionRef {
	seen := make(map[ActionRef]bool)
	var refs []ActionRef
	for _, workflow := range g.TestWorkflows {
		for _, ref := range workflow.Actions() {
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

// SaveWorkflows writes every instrumented test workflow to its path.
func (g *GitHubActions) SaveWorkflows() error {
	for _, workflow := range g.TestWorkflows {
		if err := os.MkdirAll(filepath.Dir(workflow.Path), 0755); err != nil {
			return err
		}
		if err := workflow.Save(workflow.Path); err != nil {
			return err
		}
	}
	return nil
}

// DeleteWorkflows removes the written instrumented workflow files again.
func (g *GitHubActions) DeleteWorkflows() {
	for _, workflow := range g.TestWorkflows {
		if err := os.Remove(workflow.Path); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("Couldn't delete workflow %s - %v", workflow.Path, err)
		}
	}
}

// RemoveWorkflow drops the given workflow from the test workflows and deletes
// its file.
func (g *GitHubActions) RemoveWorkflow(remove *Workflow) {
	for i, workflow := range g.TestWorkflows {
		if workflow.Path == remove.Path {
			g.TestWorkflows = append(g.TestWorkflows[:i], g.TestWorkflows[i+1:]...)
			os.Remove(workflow.Path)
			return
		}
	}
}

// RunWorkflow executes a single workflow with act using the passed cache dir.
func (g *GitHubActions) RunWorkflow(ctx context.Context, workflow *Workflow, cacheDir string) (*ActRun, error) {
	act := &Act{
		Binary:      g.ActBinary,
		RunnerImage: g.RunnerImage,
		Timeout:     g.Timeout,
		MemoryLimit: g.MemoryLimit,
		Reuse:       g.KeepContainers,
		Offline:     g.Offline,
		Tokens:      g.Tokens,
	}
	return act.Run(ctx, g.RepoPath, workflow, cacheDir)
}
