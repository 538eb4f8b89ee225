package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout bounds each component probe.
const healthCheckTimeout = 5 * time.Second

// Health report statuses.
const (
	healthOK        = "ok"
	healthDegraded  = "degraded"
	healthUnhealthy = "unhealthy"
)

// HealthReport is the /api/v1/health response body.
type HealthReport struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// handleHealth probes every registered component concurrently.
// Any failing required component makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.checkHealth(r.Context())

	status := http.StatusOK
	if report.Status == healthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) checkHealth(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:     healthOK,
		Version:    s.version,
		Components: make(map[string]string, len(s.checks)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, check := range s.checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			err := check.Checker.HealthCheck(checkCtx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				report.Components[check.Name] = healthOK
				return nil
			}

			report.Components[check.Name] = err.Error()
			if !check.Optional {
				report.Status = healthUnhealthy
			} else if report.Status == healthOK {
				report.Status = healthDegraded
			}
			s.logger.Warn("health check failed", "component", check.Name, "error", err)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Probes record failures instead of returning them

	return report
}
