package actions

import (
	"fmt"
	"os"
	"strings"

	"github.com/joshdk/go-junit"
	"gopkg.in/yaml.v3"
)

// Runner labels act cannot execute. Any job requesting one of these is forced
// onto ubuntu-latest instead.
var unsupportedOS = map[string]bool{
	"windows-latest":  true,
	"windows-2022":    true,
	"windows-2019":    true,
	"windows-2016":    true,
	"macos-latest":    true,
	"macos-latest-xl": true,
	"macos-13":        true,
	"macos-13-xl":     true,
	"macos-12":        true,
	"macos-12-xl":     true,
	"macos-11":        true,
	"ubuntu-22.04":    true,
	"ubuntu-20.04":    true,
	"ubuntu-18.04":    true,
}

// A Dialect captures the build-tool specific parts of a workflow: recognizing
// test commands and locating the test reports the tool writes.
type Dialect interface {
	// BuildTool returns the name of the build tool this dialect handles.
	BuildTool() string

	// IsTestCommand reports whether the given run command executes tests.
	IsTestCommand(command string) bool

	// TestResults returns the parsed test cases the build tool wrote below repoPath.
	TestResults(repoPath string) ([]junit.Test, error)
}

// A Workflow is a parsed GitHub Actions workflow file together with the
// build-tool dialect needed to interpret it.
type Workflow struct {
	Doc  map[string]any // The parsed yaml document of the workflow
	Path string         // The path of the workflow file

	dialect Dialect

	tokens []*Token // Tokens injected into setup steps, for rate limit accounting
}

// NewWorkflow parses the workflow at path and attaches the dialect matching its
// build tool. If content is non-empty it is parsed instead of the file at path.
func NewWorkflow(path, language, content string) (*Workflow, error) {
	if content == "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		content = string(raw)
	}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		// An unparsable workflow is still a workflow, it just can't have tests
		doc = nil
	}

	return &Workflow{
		Doc:     doc,
		Path:    path,
		dialect: dialectFor(language, identifyBuildTool(doc)),
	}, nil
}

// identifyBuildTool returns the build tool whose keywords appear most often in
// the workflow's run commands, or an empty string if none appear at all.
func identifyBuildTool(doc map[string]any) string {
	keywords := map[string][]string{
		"maven":  {"maven", "mvn", "mavenw", "mvnw"},
		"gradle": {"gradle", "gradlew"},
	}

	counts := make(map[string]int)
	forEachStep(doc, func(step map[string]any) {
		run, ok := step["run"].(string)
		if !ok {
			return
		}
		for _, word := range strings.Fields(strings.ToLower(run)) {
			for tool, kws := range keywords {
				for _, kw := range kws {
					if strings.Contains(word, kw) {
						counts[tool]++
					}
				}
			}
		}
	})

	best, bestCount := "", 0
	for tool, count := range counts {
		if count > bestCount {
			best, bestCount = tool, count
		}
	}
	return best
}

func dialectFor(language, buildTool string) Dialect {
	switch {
	case strings.EqualFold(language, "java") && buildTool == "maven":
		return mavenDialect{}
	case strings.EqualFold(language, "java") && buildTool == "gradle":
		return gradleDialect{}
	}
	return unknownDialect{}
}

// BuildTool returns the name of the build tool used by this workflow.
func (w *Workflow) BuildTool() string {
	return w.dialect.BuildTool()
}

// TestResults returns the test cases of the reports the workflow's build tool
// wrote below repoPath.
func (w *Workflow) TestResults(repoPath string) ([]junit.Test, error) {
	return w.dialect.TestResults(repoPath)
}

// Name returns the name of the workflow, or an empty string if it has none.
func (w *Workflow) Name() string {
	name, _ := w.Doc["name"].(string)
	return name
}

// SetName overwrites the name of the workflow.
func (w *Workflow) SetName(name string) {
	if w.Doc == nil {
		w.Doc = make(map[string]any)
	}
	w.Doc["name"] = name
}

// HasTests reports whether any run command of the workflow is a test command.
func (w *Workflow) HasTests() bool {
	found := false
	forEachStep(w.Doc, func(step map[string]any) {
		if run, ok := step["run"].(string); ok && w.dialect.IsTestCommand(run) {
			found = true
		}
	})
	return found
}

// Actions returns the set of actions referenced by the workflow's steps.
func (w *Workflow) Actions() []ActionRef {
	seen := make(map[ActionRef]bool)
	var refs []ActionRef
	forEachStep(w.Doc, func(step map[string]any) {
		uses, ok := step["uses"].(string)
		if !ok {
			return
		}
		ref, err := ParseActionRef(uses)
		if err != nil {
			return
		}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	})
	return refs
}

// HasMatrixIncludeExclude reports whether any job has a strategy matrix with
// include or exclude entries. Such workflows cannot be reduced to a single
// configuration and are skipped.
func (w *Workflow) HasMatrixIncludeExclude() bool {
	for _, job := range w.jobs() {
		matrix, ok := jobMatrix(job)
		if !ok {
			continue
		}
		if _, ok := matrix["include"]; ok {
			return true
		}
		if _, ok := matrix["exclude"]; ok {
			return true
		}
	}
	return false
}

// InstrumentOS forces every job onto ubuntu-latest, the only runner act supports.
func (w *Workflow) InstrumentOS() {
	for _, job := range w.jobs() {
		if _, ok := job["runs-on"]; ok {
			job["runs-on"] = "ubuntu-latest"
		}
		strategy, ok := job["strategy"].(map[string]any)
		if !ok {
			continue
		}
		if osList, ok := strategy["os"].([]any); ok && len(osList) > 0 {
			strategy["os"] = []any{"ubuntu-latest"}
		}
		if matrix, ok := strategy["matrix"].(map[string]any); ok {
			if _, ok := matrix["os"]; ok {
				matrix["os"] = []any{"ubuntu-latest"}
			}
		}
		replaceUnsupportedOS(strategy)
	}
}

// replaceUnsupportedOS walks the document, replaces unsupported OS values with
// ubuntu-latest and drops unsupported entries from lists. The rewritten value
// is returned so callers can store it back in place of the original.
func replaceUnsupportedOS(doc any) any {
	switch doc := doc.(type) {
	case map[string]any:
		for key, value := range doc {
			if s, ok := value.(string); ok {
				if unsupportedOS[strings.ToLower(s)] {
					doc[key] = "ubuntu-latest"
				}
				continue
			}
			doc[key] = replaceUnsupportedOS(value)
		}
		return doc
	case []any:
		filtered := make([]any, 0, len(doc))
		for _, value := range doc {
			if s, ok := value.(string); ok {
				if unsupportedOS[strings.ToLower(s)] {
					continue
				}
				filtered = append(filtered, s)
				continue
			}
			filtered = append(filtered, replaceUnsupportedOS(value))
		}
		if len(filtered) == 0 {
			filtered = append(filtered, "ubuntu-latest")
		}
		return filtered
	}
	return doc
}

// InstrumentOnEvents reduces the workflow's triggers to push events.
func (w *Workflow) InstrumentOnEvents() {
	if _, ok := w.Doc["on"]; ok {
		w.Doc["on"] = "push"
	}
	// yaml 1.1 parsers may have serialized the "on" key as a boolean
	if _, ok := w.Doc["true"]; ok {
		delete(w.Doc, "true")
		w.Doc["on"] = "push"
	}
}

// InstrumentStrategy reduces every matrix dimension to its first entry so each
// job runs exactly one configuration.
func (w *Workflow) InstrumentStrategy() {
	for _, job := range w.jobs() {
		matrix, ok := jobMatrix(job)
		if !ok {
			continue
		}
		for key, value := range matrix {
			if list, ok := value.([]any); ok && len(list) > 0 {
				matrix[key] = []any{list[0]}
			}
		}
	}
}

// TestJobs returns the names of the jobs containing test commands.
func (w *Workflow) TestJobs() []string {
	var testJobs []string
	for name, job := range w.jobs() {
		hasTest := false
		forEachJobStep(job, func(step map[string]any) {
			if run, ok := step["run"].(string); ok && w.dialect.IsTestCommand(run) {
				hasTest = true
			}
		})
		if hasTest {
			testJobs = append(testJobs, name)
		}
	}
	return testJobs
}

// InstrumentJobs drops every job that neither contains test commands nor is
// needed, transitively, by a job that does.
func (w *Workflow) InstrumentJobs() {
	rawJobs, ok := w.Doc["jobs"].(map[string]any)
	if !ok {
		return
	}
	jobs := w.jobs()

	required := make(map[string]bool)
	var addNeeds func(name string)
	addNeeds = func(name string) {
		if required[name] {
			return
		}
		required[name] = true
		job, ok := jobs[name]
		if !ok {
			return
		}
		switch needs := job["needs"].(type) {
		case string:
			addNeeds(needs)
		case []any:
			for _, need := range needs {
				if s, ok := need.(string); ok {
					addNeeds(s)
				}
			}
		}
	}
	for _, name := range w.TestJobs() {
		addNeeds(name)
	}

	for name := range rawJobs {
		if !required[name] {
			delete(rawJobs, name)
		}
	}
}

// InstrumentCacheSteps removes every actions/cache step and cache inputs of
// other steps. act cannot execute the cache action.
// See https://github.com/nektos/act/issues/285
func (w *Workflow) InstrumentCacheSteps() {
	for _, job := range w.jobs() {
		steps, ok := job["steps"].([]any)
		if !ok {
			continue
		}
		var filtered []any
		for _, raw := range steps {
			step, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if uses, ok := step["uses"].(string); ok && strings.HasPrefix(uses, "actions/cache") {
				continue
			}
			if with, ok := step["with"].(map[string]any); ok {
				delete(with, "cache")
			}
			filtered = append(filtered, raw)
		}
		job["steps"] = filtered
	}
}

// InstrumentSetupSteps injects GitHub tokens into setup actions so they can
// query the API without being rate limited. A nil or empty pool is a no-op.
func (w *Workflow) InstrumentSetupSteps(pool *TokenPool) {
	if pool == nil || !pool.HasTokens() {
		return
	}
	w.tokens = nil

	forEachStep(w.Doc, func(step map[string]any) {
		uses, ok := step["uses"].(string)
		if !ok || !strings.Contains(uses, "setup") {
			return
		}

		token := pool.Get()
		if token == nil {
			return
		}
		if with, ok := step["with"].(map[string]any); ok {
			if _, ok := with["token"]; ok {
				return
			}
			with["token"] = token.Value
		} else {
			step["with"] = map[string]any{"token": token.Value}
		}
		w.tokens = append(w.tokens, token)
	})
}

// InstrumentOfflineExecution keeps only the steps executing tests, for runs in
// which no network is available.
func (w *Workflow) InstrumentOfflineExecution() {
	for _, job := range w.jobs() {
		var testSteps []any
		forEachJobStep(job, func(step map[string]any) {
			if run, ok := step["run"].(string); ok && w.dialect.IsTestCommand(run) {
				testSteps = append(testSteps, step)
			}
		})
		job["steps"] = testSteps
	}
}

// Tokens returns the tokens injected into the workflow by InstrumentSetupSteps.
func (w *Workflow) Tokens() []*Token {
	return w.tokens
}

// Save writes the workflow document to the given path.
func (w *Workflow) Save(path string) error {
	raw, err := yaml.Marshal(w.Doc)
	if err != nil {
		return fmt.Errorf("couldn't marshal workflow %s - %v", w.Path, err)
	}
	return os.WriteFile(path, raw, 0644)
}

// jobs returns the workflow's job documents keyed by job name. The returned
// maps share storage with the workflow document, so mutations stick.
func (w *Workflow) jobs() map[string]map[string]any {
	rawJobs, ok := w.Doc["jobs"].(map[string]any)
	if !ok {
		return nil
	}
	jobs := make(map[string]map[string]any, len(rawJobs))
	for name, raw := range rawJobs {
		if job, ok := raw.(map[string]any); ok {
			jobs[name] = job
		}
	}
	return jobs
}

func jobMatrix(rawJob any) (map[string]any, bool) {
	job, ok := rawJob.(map[string]any)
	if !ok {
		return nil, false
	}
	strategy, ok := job["strategy"].(map[string]any)
	if !ok {
		return nil, false
	}
	matrix, ok := strategy["matrix"].(map[string]any)
	return matrix, ok
}

// forEachStep calls fn for every step of every job in the document.
func forEachStep(doc map[string]any, fn func(step map[string]any)) {
	jobs, ok := doc["jobs"].(map[string]any)
	if !ok {
		return
	}
	for _, job := range jobs {
		forEachJobStep(job, fn)
	}
}

func forEachJobStep(rawJob any, fn func(step map[string]any)) {
	job, ok := rawJob.(map[string]any)
	if !ok {
		return
	}
	steps, ok := job["steps"].([]any)
	if !ok {
		return
	}
	for _, raw := range steps {
		if step, ok := raw.(map[string]any); ok {
			fn(step)
		}
	}
}
