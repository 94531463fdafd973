package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleV1Sync runs an incremental sync for one city and reports the result
// POST /api/v1/sync/:city
func (s *Server) handleV1Sync(c *gin.Context) {
	city := strings.TrimSpace(c.Param("city"))
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}

	sensors := 0
	inserted, err := s.syncer.UpdateCity(c.Request.Context(), city, func(done, total int) {
		sensors = total
	})
	if err != nil {
		s.log.Error("sync request failed", zap.String("city", city), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"city":     city,
			"inserted": inserted,
			"sensors":  sensors,
		},
	})
}
