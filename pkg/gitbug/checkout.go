package gitbug

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dchest/uniuri"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
)

// Name of the state directory a checkout leaves behind in the workdir.
const stateDir = ".gitbug-java"

const cloneRetries = 3

// InfoPath returns the path of the bug info file inside a checked out workdir.
func InfoPath(workdir string) string {
	return filepath.Join(workdir, stateDir, "gitbug.json")
}

// ResultsPath returns the path of the test results file inside a workdir.
func ResultsPath(workdir string) string {
	return filepath.Join(workdir, stateDir, "test-results.json")
}

// Checkout clones the bug's repository into workdir and checks out the buggy
// or fixed revision. The buggy revision additionally gets the bug's test and
// non-code patches applied. The bug record is persisted into the workdir so
// Run can pick it up later.
func (b *Bug) Checkout(workdir string, fixed bool) error {
	logrus.Debugf("Checking out %s to %s", b.BID(), workdir)

	repo, err := cloneWithRetries(b.CloneURL, workdir)
	if err != nil {
		return err
	}

	cfg, err := repo.Config()
	if err != nil {
		return errors.Join(fmt.Errorf("couldn't read config of clone at %s", workdir), err)
	}
	// Avoids "too many open files" during automatic gc on large repositories
	cfg.Raw.Section("gc").SetOption("auto", "0")
	if err := repo.SetConfig(cfg); err != nil {
		return errors.Join(fmt.Errorf("couldn't update config of clone at %s", workdir), err)
	}

	hash := b.CommitHash
	if !fixed {
		hash = b.PreviousCommitHash
	}
	if err := checkoutCommit(repo, hash); err != nil {
		return errors.Join(fmt.Errorf("couldn't check out commit %s of %s", hash, b.BID()), err)
	}

	if !fixed {
		// The non-code patch only applies when the bug patch is non-empty.
		// Otherwise the non-code patch itself is under test.
		if len(b.NonCodePatch) > 0 && len(b.BugPatch) > 0 {
			logrus.Debugf("Applying non-code patch of %s", b.BID())
			if err := applyPatch(workdir, b.NonCodePatch); err != nil {
				return errors.Join(fmt.Errorf("couldn't apply non-code patch of %s", b.BID()), err)
			}
		}
		if len(b.TestPatch) > 0 {
			logrus.Debugf("Applying test patch of %s", b.BID())
			if err := applyPatch(workdir, b.TestPatch); err != nil {
				return errors.Join(fmt.Errorf("couldn't apply test patch of %s", b.BID()), err)
			}
		}
	}

	// Point origin back at the upstream so the clone looks like the real
	// repository and not the dataset fork
	cfg, err = repo.Config()
	if err == nil {
		if origin, ok := cfg.Remotes[git.DefaultRemoteName]; ok {
			origin.URLs = []string{b.UpstreamURL()}
			if err := repo.SetConfig(cfg); err != nil {
				logrus.Warnf("Couldn't restore origin URL of %s - %v", workdir, err)
			}
		}
	}

	info, err := b.MarshalInfo(fixed)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(workdir, stateDir), 0755); err != nil {
		return err
	}
	logrus.Debugf("Dumping bug info to %s", InfoPath(workdir))
	return os.WriteFile(InfoPath(workdir), info, 0644)
}

// LoadWorkdirBug reads the bug record a previous checkout left in workdir.
func LoadWorkdirBug(workdir string) (*Bug, error) {
	data, err := os.ReadFile(InfoPath(workdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workdir %s does not contain a GitBug-Java bug", workdir)
		}
		return nil, err
	}
	return ParseBug(data)
}

func cloneWithRetries(cloneURL, workdir string) (*git.Repository, error) {
	var lastErr error
	for i := 0; i < cloneRetries; i++ {
		repo, err := git.PlainClone(workdir, false, &git.CloneOptions{URL: cloneURL})
		if err == nil {
			return repo, nil
		}
		// A workdir already holding a repository must not be wiped
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return nil, fmt.Errorf("workdir %s already contains a repository", workdir)
		}
		lastErr = err
		logrus.Warnf("Clone of %s failed (attempt %d/%d) - %v", cloneURL, i+1, cloneRetries, err)
		os.RemoveAll(workdir)
	}
	return nil, errors.Join(fmt.Errorf("couldn't clone %s to %s", cloneURL, workdir), lastErr)
}

// checkoutCommit moves the worktree to the given revision and pins it with a
// tag so it cannot be garbage collected.
func checkoutCommit(repo *git.Repository, revision string) error {
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return err
	}

	_, err = repo.CreateTag(strings.ToLower(uniuri.New()), *hash, nil)
	return err
}

func applyPatch(workdir, patch string) error {
	cmd := exec.Command("git", "apply", "-")
	cmd.Dir = workdir
	cmd.Stdin = strings.NewReader(patch)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Join(fmt.Errorf("git apply failed, output: %s", out), err)
	}
	return nil
}
