// Package server exposes a read-only HTTP API over a loaded dataset, so
// external tooling can browse projects and bugs without shelling out to the
// CLI for every query.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phayes/freeport"
	"github.com/sirupsen/logrus"

	"github.com/gitbugactions/gitbug-java/pkg/gitbug"
)

type httpServer struct {
	dataset *gitbug.Dataset
}

// Serve starts the dataset API on the given port and blocks until the server
// fails. Port 0 picks a free port.
func Serve(dataset *gitbug.Dataset, port int) error {
	if port == 0 {
		freePort, err := freeport.GetFreePort()
		if err != nil {
			return errors.Join(fmt.Errorf("couldn't find a free port"), err)
		}
		port = freePort
	}

	logrus.Infof("Serving dataset on localhost:%d", port)
	return newRouter(dataset).Run(fmt.Sprintf("localhost:%d", port))
}

func newRouter(dataset *gitbug.Dataset) *gin.Engine {
	server := &httpServer{dataset: dataset}

	router := gin.Default()

	router.GET("/pids", server.getPids)
	router.GET("/bids", server.getBids)
	router.GET("/bugs/:bid", server.getBug)

	return router
}

type bugResponse struct {
	Bid string `json:"bid"`
	Pid string `json:"pid"`

	Repository string `json:"repository"`
	CloneURL   string `json:"cloneUrl"`
	CommitHash string `json:"commitHash"`
	Language   string `json:"language"`

	ExpectedTests int `json:"expectedTests"`
}

func (h *httpServer) getPids(c *gin.Context) {
	c.JSON(http.StatusOK, h.dataset.ProjectIDs())
}

func (h *httpServer) getBids(c *gin.Context) {
	pid := c.Query("pid")
	if pid == "" {
		bids := []string{}
		for _, pid := range h.dataset.ProjectIDs() {
			projectBids, _ := h.dataset.BugIDs(pid)
			bids = append(bids, projectBids...)
		}
		c.JSON(http.StatusOK, bids)
		return
	}

	bids, err := h.dataset.BugIDs(pid)
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, bids)
}

func (h *httpServer) getBug(c *gin.Context) {
	bug := h.dataset.Bug(c.Param("bid"))
	if bug == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, bugResponse{
		Bid: bug.BID(),
		Pid: bug.PID(),

		Repository: bug.Repository,
		CloneURL:   bug.CloneURL,
		CommitHash: bug.CommitHash,
		Language:   bug.Language,

		ExpectedTests: len(bug.ExpectedTests()),
	})
}
