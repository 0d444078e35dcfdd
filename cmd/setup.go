package cmd

import (
	"context"

	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitbugactions/gitbug-java/internal/dockerutil"
	"github.com/gitbugactions/gitbug-java/pkg/actions"
	"github.com/gitbugactions/gitbug-java/pkg/gitbug"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Build the runner image and prepare the local environment",
	Long: `Build the runner image and prepare the local environment.
This builds the base Docker image bugs are reproduced in, verifies that act is
installed and pre-creates the act cache directories.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := gitbug.LoadConfig()
		if err != nil {
			logrus.Fatalf("Couldn't load configuration - %v", err)
		}

		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			logrus.Fatalf("Couldn't create docker client - %v", err)
		}
		defer cli.Close()

		if err := dockerutil.BuildBaseImage(context.Background(), cli, gitbug.BaseImage); err != nil {
			logrus.Fatalf("Couldn't build runner image - %v", err)
		}

		act := &actions.Act{
			Binary:      cfg.ActBinary,
			RunnerImage: gitbug.BaseImage,
		}
		if err := act.VerifySetup(); err != nil {
			logrus.Fatalf("Setup incomplete - %v", err)
		}

		if _, err := actions.NewCacheDirManager(cacheRoot(), 1); err != nil {
			logrus.Fatalf("Couldn't create act cache dirs - %v", err)
		}

		logrus.Info("Setup done")
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
