package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerSyncRoutes() {
	api := s.engine.Group("/api")

	sync := api.Group("/sync")
	sync.GET("/status", s.syncStatus)
	sync.POST("/run", s.syncRun)
}

func (s *Server) syncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.statusSvc.Overview(c.Request.Context()))
}

// syncRun triggers an immediate sweep. The sweep runs in the worker's
// own goroutine; the response only acknowledges the request.
func (s *Server) syncRun(c *gin.Context) {
	for _, t := range s.router.Tenants() {
		s.worker.Nudge(t.Branch.Code)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sweep requested"})
}
