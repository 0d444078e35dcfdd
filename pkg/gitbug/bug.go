package gitbug

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// The dataset pins every repository to a fork under the gitbugactions
// organization so bugs stay reproducible when upstreams disappear.
var cloneOrgPattern = regexp.MustCompile(`https://github\.com/.*/`)

// A TestRecord identifies a single expected test of a bug.
type TestRecord struct {
	Classname string `json:"classname"`
	Name      string `json:"name"`
}

// An ActionsRunRecord is the stored outcome of one workflow run observed when
// the bug was mined.
type ActionsRunRecord struct {
	Tests          []TestRecord `json:"tests"`
	DefaultActions bool         `json:"default_actions"`
}

// A Bug is a single reproducible bug-fix commit of the dataset. Records are
// immutable once loaded.
type Bug struct {
	Repository         string `json:"repository"`
	CloneURL           string `json:"clone_url"`
	CommitHash         string `json:"commit_hash"`
	PreviousCommitHash string `json:"previous_commit_hash"`
	Language           string `json:"language"`

	BugPatch     string `json:"bug_patch"`
	TestPatch    string `json:"test_patch"`
	NonCodePatch string `json:"non_code_patch"`

	// Three phases of mined workflow runs. The third phase's first run holds
	// the expected tests of the fixed revision.
	ActionsRuns [][]ActionsRunRecord `json:"actions_runs"`

	Fixed bool `json:"fixed"`

	// The record as loaded, so checkout can persist it unmodified
	raw map[string]json.RawMessage
}

// ParseBug parses a single dataset record.
func ParseBug(data []byte) (*Bug, error) {
	var bug Bug
	if err := json.Unmarshal(data, &bug); err != nil {
		return nil, fmt.Errorf("invalid bug record - %v", err)
	}
	if err := json.Unmarshal(data, &bug.raw); err != nil {
		return nil, fmt.Errorf("invalid bug record - %v", err)
	}
	if bug.Repository == "" || bug.CommitHash == "" {
		return nil, fmt.Errorf("bug record misses repository or commit hash")
	}

	bug.CloneURL = cloneOrgPattern.ReplaceAllString(bug.CloneURL, "https://github.com/gitbugactions/")

	return &bug, nil
}

// PID returns the project id of the bug.
func (b *Bug) PID() string {
	return strings.ReplaceAll(b.Repository, "/", "-")
}

// BID returns the bug id: the project id plus the first 12 characters of the
// fixed commit hash.
func (b *Bug) BID() string {
	hash := b.CommitHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return fmt.Sprintf("%s-%s", b.PID(), hash)
}

// UpstreamURL returns the canonical URL of the bug's upstream repository.
func (b *Bug) UpstreamURL() string {
	return "https://github.com/" + b.Repository
}

// ExpectedTests returns the tests the fixed revision is known to run.
func (b *Bug) ExpectedTests() []TestRecord {
	if len(b.ActionsRuns) < 3 || len(b.ActionsRuns[2]) == 0 {
		return nil
	}
	return b.ActionsRuns[2][0].Tests
}

// UsesDefaultActions reports whether the bug's tests ran on an injected
// default workflow instead of one of the repository's own.
func (b *Bug) UsesDefaultActions() bool {
	if len(b.ActionsRuns) < 3 || len(b.ActionsRuns[2]) == 0 {
		return false
	}
	return b.ActionsRuns[2][0].DefaultActions
}

// MarshalInfo serializes the bug record as loaded, plus the fixed flag.
func (b *Bug) MarshalInfo(fixed bool) ([]byte, error) {
	info := make(map[string]json.RawMessage, len(b.raw)+1)
	for key, value := range b.raw {
		info[key] = value
	}
	rawFixed, err := json.Marshal(fixed)
	if err != nil {
		return nil, err
	}
	info["fixed"] = rawFixed
	return json.Marshal(info)
}

func (b *Bug) String() string {
	return b.BID()
}
