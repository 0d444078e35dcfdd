package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var checkoutFixed bool

var checkoutCmd = &cobra.Command{
	Use:   "checkout pid bid workdir",
	Short: "Check out a bug's repository into a work directory",
	Long: `Check out a bug's repository into a work directory.
By default the buggy revision is checked out, with the bug's test and non-code
patches applied on top. With --fixed the fixed revision is checked out instead.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		pid, bid, workdir := args[0], args[1], args[2]

		_, dataset := loadDataset()

		project := dataset.Project(pid)
		if project == nil {
			logrus.Fatalf("Unknown project id %s", pid)
		}
		bug := project.Bug(bid)
		if bug == nil {
			logrus.Fatalf("Project %s has no bug %s", pid, bid)
		}

		if err := bug.Checkout(workdir, checkoutFixed); err != nil {
			logrus.Fatalf("Couldn't check out %s - %v", bid, err)
		}
		logrus.Infof("Checked out %s into %s", bid, workdir)
	},
}

func init() {
	rootCmd.AddCommand(checkoutCmd)

	checkoutCmd.Flags().BoolVar(&checkoutFixed, "fixed", false, "Check out the fixed revision instead of the buggy one")
}
