package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pidsCmd = &cobra.Command{
	Use:   "pids",
	Short: "List the ids of all projects in the dataset",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, dataset := loadDataset()
		for _, pid := range dataset.ProjectIDs() {
			fmt.Println(pid)
		}
	},
}

func init() {
	rootCmd.AddCommand(pidsCmd)
}
