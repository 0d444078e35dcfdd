package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitbugactions/gitbug-java/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dataset over a RESTful HTTP API",
	Long: `Serve the dataset over a RESTful HTTP API.
The server exposes /pids, /bids and /bugs/:bid. Setting the port to 0 picks a
free port.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, dataset := loadDataset()

		if err := server.Serve(dataset, servePort); err != nil {
			logrus.Fatalf("Failed to start webserver - %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 40072, "The port on which to start the server")
}
