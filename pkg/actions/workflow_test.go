package actions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const mavenWorkflow = `
name: CI
on: [push, pull_request]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - uses: actions/setup-java@v4
        with:
          java-version: "11"
          distribution: temurin
          cache: maven
      - uses: actions/cache@v3
        with:
          path: ~/.m2
      - run: mvn -B package
  lint:
    runs-on: ubuntu-latest
    steps:
      - run: echo linting
`

const gradleMatrixWorkflow = `
name: Matrix
on: push
jobs:
  test:
    runs-on: macos-latest
    strategy:
      matrix:
        os: [windows-latest, macos-latest]
        java: [8, 11, 17]
    steps:
      - uses: actions/checkout@v4
      - run: ./gradlew test
`

func TestNewWorkflow(t *testing.T) {
	t.Run("Maven workflow is recognized", func(t *testing.T) {
		workflow, err := NewWorkflow("ci.yml", "java", mavenWorkflow)
		assert.Nil(t, err, "parsing a valid workflow returned an error")

		assert.Equal(t, "maven", workflow.BuildTool(), "wrong build tool identified")
		assert.Equal(t, "CI", workflow.Name(), "wrong workflow name")
		assert.True(t, workflow.HasTests(), "workflow with mvn package not recognized as testing")
	})
	t.Run("Gradle workflow is recognized", func(t *testing.T) {
		workflow, err := NewWorkflow("matrix.yml", "java", gradleMatrixWorkflow)
		assert.Nil(t, err, "parsing a valid workflow returned an error")

		assert.Equal(t, "gradle", workflow.BuildTool(), "wrong build tool identified")
		assert.True(t, workflow.HasTests(), "workflow with gradlew test not recognized as testing")
	})
	t.Run("Workflow without build tool has no tests", func(t *testing.T) {
		workflow, err := NewWorkflow("none.yml", "java", "on: push\njobs:\n  noop:\n    steps:\n      - run: echo hi\n")
		assert.Nil(t, err, "parsing a valid workflow returned an error")

		assert.Equal(t, "unknown", workflow.BuildTool(), "workflow without build tool got one assigned")
		assert.False(t, workflow.HasTests(), "workflow without test commands reported tests")
	})
	t.Run("Unparsable workflow has no tests", func(t *testing.T) {
		workflow, err := NewWorkflow("broken.yml", "java", ":- not yaml [")
		assert.Nil(t, err, "an unparsable workflow is not an error")

		assert.False(t, workflow.HasTests(), "unparsable workflow reported tests")
	})
}

func TestInstrumentOS(t *testing.T) {
	t.Run("Runners are forced onto ubuntu-latest", func(t *testing.T) {
		workflow, err := NewWorkflow("matrix.yml", "java", gradleMatrixWorkflow)
		assert.Nil(t, err)

		workflow.InstrumentOS()

		job := workflow.jobs()["test"]
		assert.Equal(t, "ubuntu-latest", job["runs-on"], "runs-on was not forced onto ubuntu-latest")

		matrix, ok := jobMatrix(job)
		assert.True(t, ok, "job lost its matrix")
		assert.Equal(t, []any{"ubuntu-latest"}, matrix["os"], "matrix os dimension was not replaced")
	})
	t.Run("Unsupported entries are dropped from lists", func(t *testing.T) {
		workflow, err := NewWorkflow("platform.yml", "java", `
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        platform: [windows-latest, macos-13, self-hosted]
        runner: [windows-latest, macos-latest]
    steps:
      - run: mvn test
`)
		assert.Nil(t, err)

		workflow.InstrumentOS()

		matrix, ok := jobMatrix(workflow.jobs()["test"])
		assert.True(t, ok, "job lost its matrix")
		assert.Equal(t, []any{"self-hosted"}, matrix["platform"], "dropped entries lingered in the dimension")
		assert.Equal(t, []any{"ubuntu-latest"}, matrix["runner"], "an emptied dimension did not fall back to ubuntu-latest")
	})
}

func TestInstrumentOnEvents(t *testing.T) {
	workflow, err := NewWorkflow("ci.yml", "java", mavenWorkflow)
	assert.Nil(t, err)

	workflow.InstrumentOnEvents()

	assert.Equal(t, "push", workflow.Doc["on"], "triggers were not reduced to push")
	_, hasBoolKey := workflow.Doc["true"]
	assert.False(t, hasBoolKey, "yaml 1.1 boolean key survived instrumentation")
}

func TestInstrumentStrategy(t *testing.T) {
	workflow, err := NewWorkflow("matrix.yml", "java", gradleMatrixWorkflow)
	assert.Nil(t, err)

	workflow.InstrumentStrategy()

	matrix, ok := jobMatrix(workflow.jobs()["test"])
	assert.True(t, ok, "job lost its matrix")
	assert.Equal(t, []any{"windows-latest"}, matrix["os"], "os dimension was not reduced to its first entry")
	assert.Equal(t, []any{8}, matrix["java"], "java dimension was not reduced to its first entry")
}

func TestInstrumentJobs(t *testing.T) {
	t.Run("Jobs without tests are dropped", func(t *testing.T) {
		workflow, err := NewWorkflow("ci.yml", "java", mavenWorkflow)
		assert.Nil(t, err)

		assert.Equal(t, []string{"build"}, workflow.TestJobs(), "wrong test jobs identified")

		workflow.InstrumentJobs()

		jobs := workflow.jobs()
		assert.Len(t, jobs, 1, "wrong number of jobs survived instrumentation")
		assert.Contains(t, jobs, "build", "the test job was dropped")
	})
	t.Run("Needed jobs are kept transitively", func(t *testing.T) {
		workflow, err := NewWorkflow("needs.yml", "java", `
on: push
jobs:
  prepare:
    steps:
      - run: echo prepare
  compile:
    needs: prepare
    steps:
      - run: mvn compile
  test:
    needs: [compile]
    steps:
      - run: mvn test
  docs:
    steps:
      - run: echo docs
`)
		assert.Nil(t, err)

		workflow.InstrumentJobs()

		jobs := workflow.jobs()
		assert.Len(t, jobs, 3, "wrong number of jobs survived instrumentation")
		assert.Contains(t, jobs, "test", "the test job was dropped")
		assert.Contains(t, jobs, "compile", "a directly needed job was dropped")
		assert.Contains(t, jobs, "prepare", "a transitively needed job was dropped")
	})
}

func TestInstrumentCacheSteps(t *testing.T) {
	workflow, err := NewWorkflow("ci.yml", "java", mavenWorkflow)
	assert.Nil(t, err)

	workflow.InstrumentCacheSteps()

	var uses []string
	forEachStep(workflow.Doc, func(step map[string]any) {
		if u, ok := step["uses"].(string); ok {
			uses = append(uses, u)
		}
		if with, ok := step["with"].(map[string]any); ok {
			_, hasCache := with["cache"]
			assert.False(t, hasCache, "cache input survived instrumentation")
		}
	})
	assert.NotContains(t, uses, "actions/cache@v3", "cache step survived instrumentation")
	assert.Contains(t, uses, "actions/setup-java@v4", "non-cache step was dropped")
}

func TestInstrumentSetupSteps(t *testing.T) {
	t.Run("Tokens get injected into setup steps", func(t *testing.T) {
		workflow, err := NewWorkflow("ci.yml", "java", mavenWorkflow)
		assert.Nil(t, err)

		pool := &TokenPool{tokens: []*Token{{Value: "token-a", remaining: 5000}}}
		workflow.InstrumentSetupSteps(pool)

		injected := 0
		forEachStep(workflow.Doc, func(step map[string]any) {
			with, ok := step["with"].(map[string]any)
			if !ok {
				return
			}
			if token, ok := with["token"]; ok {
				injected++
				assert.Equal(t, "token-a", token, "wrong token injected")
			}
		})
		assert.Equal(t, 1, injected, "wrong number of steps got a token")
		assert.Len(t, workflow.Tokens(), 1, "injected token was not tracked")
	})
	t.Run("Empty pool is a no-op", func(t *testing.T) {
		workflow, err := NewWorkflow("ci.yml", "java", mavenWorkflow)
		assert.Nil(t, err)

		workflow.InstrumentSetupSteps(nil)
		workflow.InstrumentSetupSteps(&TokenPool{})

		forEachStep(workflow.Doc, func(step map[string]any) {
			if with, ok := step["with"].(map[string]any); ok {
				_, hasToken := with["token"]
				assert.False(t, hasToken, "a token was injected without a pool")
			}
		})
	})
}

func TestInstrumentOfflineExecution(t *testing.T) {
	workflow, err := NewWorkflow("ci.yml", "java", mavenWorkflow)
	assert.Nil(t, err)

	workflow.InstrumentOfflineExecution()

	steps, ok := workflow.jobs()["build"]["steps"].([]any)
	assert.True(t, ok, "job lost its steps")
	assert.Len(t, steps, 1, "non-test steps survived offline instrumentation")
	assert.Equal(t, "mvn -B package", steps[0].(map[string]any)["run"], "the test step was dropped")
}

func TestHasMatrixIncludeExclude(t *testing.T) {
	workflow, err := NewWorkflow("include.yml", "java", `
on: push
jobs:
  test:
    strategy:
      matrix:
        java: [8, 11]
        include:
          - java: 17
            experimental: true
    steps:
      - run: mvn test
`)
	assert.Nil(t, err)
	assert.True(t, workflow.HasMatrixIncludeExclude(), "include entry was not detected")

	plain, err := NewWorkflow("matrix.yml", "java", gradleMatrixWorkflow)
	assert.Nil(t, err)
	assert.False(t, plain.HasMatrixIncludeExclude(), "plain matrix reported include/exclude entries")
}

func TestWorkflowActions(t *testing.T) {
	workflow, err := NewWorkflow("matrix.yml", "java", gradleMatrixWorkflow)
	assert.Nil(t, err)

	refs := workflow.Actions()
	assert.Equal(t, []ActionRef{{Org: "actions", Repo: "checkout", Ref: "v4"}}, refs, "wrong actions extracted")
}

func TestWorkflowSave(t *testing.T) {
	workflow, err := NewWorkflow("ci.yml", "java", mavenWorkflow)
	assert.Nil(t, err)

	workflow.SetName("renamed")

	path := filepath.Join(t.TempDir(), "saved.yml")
	assert.Nil(t, workflow.Save(path), "saving the workflow failed")

	_, err = os.Stat(path)
	assert.Nil(t, err, "saved workflow does not exist")

	reloaded, err := NewWorkflow(path, "java", "")
	assert.Nil(t, err, "re-parsing the saved workflow failed")
	assert.Equal(t, "renamed", reloaded.Name(), "name change was not persisted")
	assert.Equal(t, "maven", reloaded.BuildTool(), "build tool changed through a save round trip")
}
