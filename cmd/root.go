package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/gitbugactions/gitbug-java/pkg/gitbug"
)

var verbosity int

var rootCmd = &cobra.Command{
	Use:   "gitbug-java",
	Short: "A benchmark of recent Java bugs, reproduced locally with GitHub Actions",
	Long:  ``,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&prefixed.TextFormatter{})

		// Set logger verbosity
		if verbosity <= 0 {
			logrus.SetLevel(logrus.WarnLevel)
		} else if verbosity == 1 {
			logrus.SetLevel(logrus.InfoLevel)
		} else if verbosity == 2 {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.TraceLevel)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase logger verbosity, can be given multiple times")
}

// loadDataset reads the environment configuration and loads the dataset it
// points at.
func loadDataset() (*gitbug.Config, *gitbug.Dataset) {
	cfg, err := gitbug.LoadConfig()
	if err != nil {
		logrus.Fatalf("Couldn't load configuration - %v", err)
	}
	dataset, err := gitbug.LoadDataset(cfg.DataDir)
	if err != nil {
		logrus.Fatalf("Couldn't load dataset from %s - %v", cfg.DataDir, err)
	}
	return cfg, dataset
}
