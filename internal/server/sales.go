package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	posdomain "github.com/smallbiznis/branchledger/internal/pos/domain"
)

func (s *Server) registerSaleRoutes() {
	api := s.engine.Group("/api")

	branches := api.Group("/branches/:code")
	branches.POST("/sales", s.commitSale)
	branches.GET("/sales", s.listSales)
	branches.POST("/defects", s.reportDefect)
}

func (s *Server) commitSale(c *gin.Context) {
	var req posdomain.CommitSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "validation_error",
			Message: "invalid request body",
		}})
		return
	}

	resp, err := s.posSvc.CommitSale(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) listSales(c *gin.Context) {
	var req posdomain.ListSalesRequest
	if err := c.ShouldBindQuery(&req.Pagination); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "validation_error",
			Message: "invalid query parameters",
		}})
		return
	}

	resp, err := s.posSvc.ListSales(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) reportDefect(c *gin.Context) {
	var req posdomain.DefectReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "validation_error",
			Message: "invalid request body",
		}})
		return
	}

	if err := s.posSvc.ReportDefect(c.Request.Context(), c.Param("code"), req); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
