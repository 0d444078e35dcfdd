package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var bidsPid string

var bidsCmd = &cobra.Command{
	Use:   "bids",
	Short: "List the ids of all bugs in the dataset",
	Long: `List the ids of all bugs in the dataset.
If a project id is given, only that project's bugs are listed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, dataset := loadDataset()

		pids := dataset.ProjectIDs()
		if bidsPid != "" {
			pids = []string{bidsPid}
		}

		for _, pid := range pids {
			bids, err := dataset.BugIDs(pid)
			if err != nil {
				logrus.Fatalf("Couldn't list bugs - %v", err)
			}
			for _, bid := range bids {
				fmt.Println(bid)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(bidsCmd)

	bidsCmd.Flags().StringVarP(&bidsPid, "pid", "p", "", "Only list the bugs of this project")
}
