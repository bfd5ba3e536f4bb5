package monitoring

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ApplicationMetrics aggregates in-process request counters. Everything is
// guarded by the package mutex; there is no external metrics backend.
type ApplicationMetrics struct {
	RequestCount   int64            `json:"request_count"`
	ErrorCount     int64            `json:"error_count"`
	ActiveRequests int64            `json:"active_requests"`
	TotalLatencyMs int64            `json:"total_latency_ms"`
	StatusCodes    map[string]int64 `json:"status_codes"`
	Endpoints      map[string]int64 `json:"endpoints"`
}

type MemoryMetrics struct {
	Alloc      uint64 `json:"alloc_mb"`
	TotalAlloc uint64 `json:"total_alloc_mb"`
	Sys        uint64 `json:"sys_mb"`
	NumGC      uint32 `json:"num_gc"`
}

type SystemMetrics struct {
	Uptime         time.Duration `json:"uptime_ns"`
	GoroutineCount int           `json:"goroutine_count"`
	CPUCount       int           `json:"cpu_count"`
	GoVersion      string        `json:"go_version"`
	MemoryUsage    MemoryMetrics `json:"memory_usage"`
}

var (
	metricsMu sync.RWMutex
	metrics   = newApplicationMetrics()
	startTime = time.Now()
)

func newApplicationMetrics() *ApplicationMetrics {
	return &ApplicationMetrics{
		StatusCodes: make(map[string]int64),
		Endpoints:   make(map[string]int64),
	}
}

func resetGlobalMetrics() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	metrics = newApplicationMetrics()
}

// MetricsMiddleware counts requests, errors, latency and per-endpoint /
// per-status totals.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metricsMu.Lock()
		metrics.ActiveRequests++
		metricsMu.Unlock()

		c.Next()

		status := c.Writer.Status()
		endpoint := c.Request.Method + " " + c.FullPath()
		latency := time.Since(start).Milliseconds()

		metricsMu.Lock()
		metrics.ActiveRequests--
		metrics.RequestCount++
		metrics.TotalLatencyMs += latency
		if status >= http.StatusBadRequest {
			metrics.ErrorCount++
		}
		metrics.StatusCodes[http.StatusText(status)]++
		metrics.Endpoints[endpoint]++
		metricsMu.Unlock()
	}
}

// GetMetrics returns a copy of the application counters.
func GetMetrics() ApplicationMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()

	out := ApplicationMetrics{
		RequestCount:   metrics.RequestCount,
		ErrorCount:     metrics.ErrorCount,
		ActiveRequests: metrics.ActiveRequests,
		TotalLatencyMs: metrics.TotalLatencyMs,
		StatusCodes:    make(map[string]int64, len(metrics.StatusCodes)),
		Endpoints:      make(map[string]int64, len(metrics.Endpoints)),
	}
	for k, v := range metrics.StatusCodes {
		out.StatusCodes[k] = v
	}
	for k, v := range metrics.Endpoints {
		out.Endpoints[k] = v
	}
	return out
}

func GetSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		Uptime:         time.Since(startTime),
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
		MemoryUsage: MemoryMetrics{
			Alloc:      bToMb(m.Alloc),
			TotalAlloc: bToMb(m.TotalAlloc),
			Sys:        bToMb(m.Sys),
			NumGC:      m.NumGC,
		},
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

func MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"application": GetMetrics(),
			"system":      GetSystemMetrics(),
			"timestamp":   time.Now().Format(time.RFC3339),
		})
	}
}
