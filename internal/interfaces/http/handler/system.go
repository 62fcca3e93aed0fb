package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/freshtable/billing/internal/infrastructure/persistence"
	"github.com/freshtable/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler handles health and info endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, db Pinger) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		db:        db,
		startTime: time.Now(),
	}
}

// poolReporter is implemented by database handles that expose pool stats
type poolReporter interface {
	PoolStats() persistence.PoolStats
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string                 `json:"name"`
	Version   string                 `json:"version"`
	GoVersion string                 `json:"go_version"`
	Uptime    string                 `json:"uptime"`
	DBPool    *persistence.PoolStats `json:"db_pool,omitempty"`
}

// GetSystemInfo returns version and uptime
// GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if pr, ok := h.db.(poolReporter); ok {
		stats := pr.PoolStats()
		info.DBPool = &stats
	}
	h.Success(c, info)
}

// Health answers 200 while the database is reachable and 503 otherwise
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeInternal, "Database is unreachable")
			return
		}
	}
	h.Success(c, gin.H{"status": "ok"})
}
