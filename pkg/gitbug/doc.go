/*
Package gitbug provides a Go interface for browsing and reproducing the bugs of
the gitbug-java dataset.

A [Dataset] is loaded with [LoadDataset] and hands out [Project]-s and [Bug]-s
by their ids. A bug is reproduced in two steps:
  - [Bug.Checkout] clones the bug's repository into a work directory, checks
    out the buggy or fixed revision and applies the bug's patches.
  - [Runner.Run] replays the bug's test workflows in Docker and writes the
    aggregated results to the work directory.

A run's results are summarized in a [Report], which compares the executed
tests against the tests the bug is expected to run.
*/
package gitbug
