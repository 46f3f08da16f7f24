package handler

import (
	"net/http"
	"runtime"
	"time"

	"lotorder-engine/internal/repository"
	"lotorder-engine/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	history     repository.HistoryStore
	dealerships repository.DealershipRepository
	layout      string
	startTime   time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(history repository.HistoryStore, dealerships repository.DealershipRepository, layout string) *AdminHandler {
	return &AdminHandler{
		history:     history,
		dealerships: dealerships,
		layout:      layout,
		startTime:   time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["history_layout"] = h.layout

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb": float64(memStats.HeapAlloc) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.history != nil {
		historyStats, err := h.history.GetStats(ctx)
		if err == nil {
			historyStats["status"] = "connected"
			stats["history"] = historyStats
		} else {
			stats["history"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["history"] = map[string]interface{}{"status": "not_configured"}
	}

	if h.dealerships != nil {
		if configs, err := h.dealerships.List(ctx); err == nil {
			active := 0
			for _, cfg := range configs {
				if cfg.IsActive {
					active++
				}
			}
			stats["dealerships"] = map[string]interface{}{
				"total":  len(configs),
				"active": active,
			}
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// GetHealth handles GET /api/v1/admin/health
func (h *AdminHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
