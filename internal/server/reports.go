package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerReportRoutes() {
	api := s.engine.Group("/api")

	reports := api.Group("/reports")
	reports.GET("/revenue", s.revenueReport)
	reports.GET("/top-products", s.topProductsReport)
}

// sinceParam reads the report window. Defaults to the trailing 30 days.
func (s *Server) sinceParam(c *gin.Context) (time.Time, bool) {
	raw := c.Query("since")
	if raw == "" {
		return s.clock.Now().AddDate(0, 0, -30), true
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "validation_error",
			Message: "since must be RFC3339",
		}})
		return time.Time{}, false
	}
	return since, true
}

func (s *Server) revenueReport(c *gin.Context) {
	since, ok := s.sinceParam(c)
	if !ok {
		return
	}

	rows, err := s.cloud.RevenueByBranch(c.Request.Context(), since)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "branches": rows})
}

func (s *Server) topProductsReport(c *gin.Context) {
	since, ok := s.sinceParam(c)
	if !ok {
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
				Type:    "validation_error",
				Message: "limit must be between 1 and 100",
			}})
			return
		}
		limit = parsed
	}

	rows, err := s.cloud.TopProducts(c.Request.Context(), since, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "products": rows})
}
