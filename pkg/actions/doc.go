/*
Package actions runs GitHub Actions workflows locally through the act runner.

[NewGitHubActions] discovers the workflows of a repository and instruments the
ones that run tests so they can execute offline inside a fixed runner image.
[GitHubActions.RunWorkflow] then invokes act on an instrumented workflow and
collects the JUnit test results the build tool produced into an [ActRun].

The package also manages the act cache directories concurrent invocations need
([CacheDirManager]) and a pool of GitHub tokens used to lift API rate limits
([TokenPool]).
*/
package actions
