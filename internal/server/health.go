package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/billingcore/internal/migration"
	"go.uber.org/zap"
)

type healthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	SchemaVersion string `json:"schema_version,omitempty"`
}

// Health reports 503 when the database is unreachable.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		resp.Status, resp.Database = "unavailable", "unreachable"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	if state, err := migration.CurrentState(ctx, s.db); err == nil && state != nil {
		resp.SchemaVersion = state.SchemaVersion
	}
	c.JSON(http.StatusOK, resp)
}
