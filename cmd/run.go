package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitbugactions/gitbug-java/pkg/actions"
	"github.com/gitbugactions/gitbug-java/pkg/gitbug"
)

// Optional run config file, read from the working directory.
const runConfigFile = "gitbug-java.yml"

var runActCacheDir string
var runTimeout int

var runCmd = &cobra.Command{
	Use:   "run workdir",
	Short: "Run the tests of a previously checked out bug",
	Long: `Run the tests of a previously checked out bug.
The bug's test workflows are replayed offline in Docker and the aggregated
results are written to <workdir>/.gitbug-java/test-results.json.

The command exits with a non-zero code unless at least one workflow ran, no
test failed and exactly the expected tests were executed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		workdir := args[0]

		cfg, dataset := loadDataset()
		runConfig := loadRunConfig()

		if runActCacheDir != "" {
			runConfig.ActCacheDir = runActCacheDir
		}
		if runTimeout > 0 {
			runConfig.Timeout = time.Duration(runTimeout) * time.Minute
		}

		cacheDirs, err := actions.NewCacheDirManager(cacheRoot(), 1)
		if err != nil {
			logrus.Fatalf("Couldn't create act cache dirs - %v", err)
		}

		runner := &gitbug.Runner{
			Dataset: dataset,

			Config:    cfg,
			RunConfig: runConfig,

			CacheDirs: cacheDirs,
			Tokens:    actions.NewTokenPool(cfg.Tokens),
		}

		report, err := runner.Run(context.Background(), workdir)
		if err != nil {
			logrus.Fatalf("Couldn't run %s - %v", workdir, err)
		}

		report.Print(os.Stdout)
		if !report.Success() {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runActCacheDir, "act_cache_dir", "", "Use this act cache dir instead of a managed one")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "Timeout for a single workflow run in minutes")
}

// loadRunConfig reads the optional run config file, falling back to the
// defaults when it does not exist.
func loadRunConfig() *gitbug.RunConfig {
	configFile, err := os.Open(runConfigFile)
	if errors.Is(err, os.ErrNotExist) {
		return gitbug.DefaultRunConfig()
	} else if err != nil {
		logrus.Fatalf("Couldn't open %s - %v", runConfigFile, err)
	}
	defer configFile.Close()

	runConfig, err := gitbug.GetRunConfigFromConfig(configFile)
	if err != nil {
		logrus.Fatalf("Couldn't read run config from %s - %v", runConfigFile, err)
	}
	return runConfig
}

// cacheRoot returns the directory under which managed act cache dirs live.
func cacheRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		logrus.Fatalf("Couldn't determine home directory - %v", err)
	}
	return filepath.Join(home, ".gitbug-java", "act-cache")
}
