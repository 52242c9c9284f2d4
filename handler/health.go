package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixloo/pixgate/infra/response"
	"github.com/pixloo/pixgate/provider"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	pool      *pgxpool.Pool
	gateway   *provider.GatewayService
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(pool *pgxpool.Pool, gateway *provider.GatewayService) *HealthHandler {
	return &HealthHandler{
		pool:      pool,
		gateway:   gateway,
		startTime: time.Now(),
	}
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status     string          `json:"status"`
	Timestamp  time.Time       `json:"timestamp"`
	Uptime     string          `json:"uptime"`
	Database   *DatabaseHealth `json:"database"`
	Providers  []string        `json:"providers"`
	GoRoutines int             `json:"goroutines"`
}

// DatabaseHealth represents database health status
type DatabaseHealth struct {
	Connected    bool   `json:"connected"`
	ResponseTime string `json:"response_time"`
	TotalConns   int32  `json:"total_connections"`
	IdleConns    int32  `json:"idle_connections"`
	Error        string `json:"error,omitempty"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Providers:  h.gateway.ProviderNames(),
		GoRoutines: runtime.NumGoroutine(),
	}

	status.Database = h.checkDatabase(ctx)
	code := http.StatusOK
	if !status.Database.Connected {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response.WriteJSON(w, code, status)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) *DatabaseHealth {
	health := &DatabaseHealth{}

	start := time.Now()
	err := h.pool.Ping(ctx)
	health.ResponseTime = time.Since(start).String()

	if err != nil {
		health.Error = err.Error()
		return health
	}

	health.Connected = true
	stat := h.pool.Stat()
	health.TotalConns = stat.TotalConns()
	health.IdleConns = stat.IdleConns()
	return health
}
