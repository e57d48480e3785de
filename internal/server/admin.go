package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	spindomain "github.com/smallbiznis/spinwheel/internal/spin/domain"
)

func (s *Server) AdminInventory(c *gin.Context) {
	inv, err := s.spinSvc.Inventory(c.Request.Context(), s.cfg.EventSlug)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) AdminSpins(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be an integer"))
		return
	}
	n := spindomain.DefaultListLimit
	if limit != nil {
		n = *limit
	}

	spins, err := s.spinSvc.ListSpins(c.Request.Context(), s.cfg.EventSlug, n)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, spins)
}
