package monitoring

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthCheckFunc func(ctx context.Context) error

type HealthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

var (
	healthMu     sync.RWMutex
	healthChecks = make(map[string]HealthCheckFunc)
)

func resetGlobalHealthChecker() {
	healthMu.Lock()
	defer healthMu.Unlock()
	healthChecks = make(map[string]HealthCheckFunc)
}

// RegisterHealthCheck adds a named probe run by the health and readiness
// handlers.
func RegisterHealthCheck(name string, check HealthCheckFunc) {
	healthMu.Lock()
	defer healthMu.Unlock()
	healthChecks[name] = check
}

// RunHealthChecks executes every registered probe with a short timeout.
func RunHealthChecks() map[string]HealthCheck {
	healthMu.RLock()
	checks := make(map[string]HealthCheckFunc, len(healthChecks))
	for name, fn := range healthChecks {
		checks[name] = fn
	}
	healthMu.RUnlock()

	results := make(map[string]HealthCheck, len(checks))
	for name, fn := range checks {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		result := HealthCheck{Name: name, Status: "healthy"}
		if err := fn(ctx); err != nil {
			result.Status = "unhealthy"
			result.Message = err.Error()
		}
		cancel()
		results[name] = result
	}
	return results
}

func allHealthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := RunHealthChecks()

		status := "healthy"
		code := http.StatusOK
		if !allHealthy(checks) {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := RunHealthChecks()

		if !allHealthy(checks) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
