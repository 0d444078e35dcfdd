package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var actionRefPattern = regexp.MustCompile(`^([^/@]+)/([^/@]+)(/([^@]*))?(@(.*))?$`)

// Bounds the number of concurrent action clones.
var cloneSem = semaphore.NewWeighted(16)

// An ActionRef identifies a versioned GitHub action, e.g. actions/setup-java@v4.
// Only the ref as declared is considered, minor and patch aliases are not
// resolved.
type ActionRef struct {
	Org  string
	Repo string
	Path string
	Ref  string
}

// ParseActionRef parses an action declaration of the form
// org/repo[/path]@ref.
func ParseActionRef(declaration string) (ActionRef, error) {
	match := actionRefPattern.FindStringSubmatch(declaration)
	if match == nil || match[6] == "" {
		return ActionRef{}, fmt.Errorf("invalid action declaration %q", declaration)
	}
	return ActionRef{
		Org:  match[1],
		Repo: match[2],
		Path: match[4],
		Ref:  match[6],
	}, nil
}

// String returns the declaration the ref was parsed from.
func (a ActionRef) String() string {
	declaration := a.Org + "/" + a.Repo
	if a.Path != "" {
		declaration += "/" + a.Path
	}
	return declaration + "@" + a.Ref
}

// CacheDirName returns the directory name act expects for this action in its
// cache, <org>-<repo>@<ref>.
func (a ActionRef) CacheDirName() string {
	return fmt.Sprintf("%s-%s@%s", a.Org, a.Repo, a.Ref)
}

// Download clones the action repository at its ref into actionDir. An already
// populated actionDir is left untouched.
func (a ActionRef) Download(actionDir string) error {
	if _, err := os.Stat(actionDir); err == nil {
		logrus.Debugf("Action directory %s already exists", actionDir)
		return nil
	}

	logrus.Infof("Downloading action %s to %s", a, actionDir)

	if err := cloneSem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer cloneSem.Release(1)

	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", a.Org, a.Repo)
	if _, err := git.PlainClone(actionDir, false, &git.CloneOptions{URL: cloneURL}); err != nil {
		os.RemoveAll(actionDir)
		return errors.Join(fmt.Errorf("couldn't clone action %s", a), err)
	}

	cmd := exec.Command("git", "checkout", a.Ref)
	cmd.Dir = actionDir
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(actionDir)
		return errors.Join(fmt.Errorf("couldn't checkout ref %s of action %s, output: %s", a.Ref, a, out), err)
	}

	// Drop the gitignore so act doesn't filter files out of the action
	os.Remove(filepath.Join(actionDir, ".gitignore"))

	return nil
}
