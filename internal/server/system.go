package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusHandler reports host resource usage for the diagnostics
// panel.
type SystemStatusHandler struct {
	log         zerolog.Logger
	startupTime time.Time
}

// NewSystemStatusHandler creates the system status handler.
func NewSystemStatusHandler(log zerolog.Logger) *SystemStatusHandler {
	return &SystemStatusHandler{
		log:         log.With().Str("component", "system_status").Logger(),
		startupTime: time.Now(),
	}
}

// ServeHTTP handles GET /api/system/status requests.
func (h *SystemStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"cpu_percent":    cpuPercent,
		"ram_percent":    ramPercent,
		"goroutines":     runtime.NumGoroutine(),
		"uptime_seconds": int(time.Since(h.startupTime).Seconds()),
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

// getSystemStats samples CPU and RAM usage; failures degrade to zero
// rather than erroring the endpoint.
func (h *SystemStatusHandler) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Debug().Err(err).Msg("CPU sample failed")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Debug().Err(err).Msg("Memory sample failed")
		return cpuPercent[0], 0
	}

	var cpuAvg float64
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
