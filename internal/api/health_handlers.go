package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-ingest/internal/domain"
)

// Component states, worst last.
const (
	healthHealthy   = "healthy"
	healthDegraded  = "degraded"
	healthUnhealthy = "unhealthy"
)

var healthRank = map[string]int{healthHealthy: 0, healthDegraded: 1, healthUnhealthy: 2}

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports the database, search index, synthesis engine and event stream. Optional components that are switched off report degraded.",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"healthy, degraded or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Time the probe took"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Worst component status"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{
		Status: healthHealthy,
		Components: map[string]ComponentHealth{
			"database":  s.checkDatabase(ctx),
			"search":    s.checkSearchIndex(),
			"synthesis": s.checkSynthesis(ctx),
			"sse":       s.checkSSEManager(),
		},
	}
	for _, c := range resp.Components {
		if healthRank[c.Status] > healthRank[resp.Status] {
			resp.Status = c.Status
		}
	}
	return &HealthOutput{Body: resp}, nil
}

// probe times fn and turns its error into an unhealthy component.
func probe(failure string, fn func() (string, error)) ComponentHealth {
	start := time.Now()
	msg, err := fn()
	c := ComponentHealth{Status: healthHealthy, Latency: time.Since(start).String(), Message: msg}
	if err != nil {
		c.Status = healthUnhealthy
		c.Message = failure
	}
	return c
}

func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.store == nil {
		return ComponentHealth{Status: healthDegraded, Message: "database not configured"}
	}
	return probe("database unreachable", func() (string, error) {
		return "", s.store.Ping(ctx)
	})
}

// checkSearchIndex reports the document count. Ingestion works without
// search, so a disabled index is only degraded.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services == nil || !s.services.Search.Enabled() {
		return ComponentHealth{Status: healthDegraded, Message: "search disabled"}
	}
	return probe("search index unreachable", func() (string, error) {
		n, err := s.services.Search.DocumentCount()
		return fmt.Sprintf("%d documents", n), err
	})
}

// checkSynthesis reports whether manuscripts can be voiced and how many
// books are waiting on the engine.
func (s *Server) checkSynthesis(ctx context.Context) ComponentHealth {
	if s.services == nil || s.services.Synthesis == nil {
		return ComponentHealth{Status: healthDegraded, Message: "synthesis disabled"}
	}
	if s.store == nil {
		return ComponentHealth{Status: healthHealthy}
	}
	return probe("job table unreadable", func() (string, error) {
		books, err := s.store.ListBooksByStatus(ctx, domain.StatusProcessing)
		return plural(len(books), "book", "books") + " processing", err
	})
}

func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: healthDegraded, Message: "event stream not configured"}
	}
	return ComponentHealth{Status: healthHealthy, Message: formatSSEStatus(s.sseManager.ClientCount())}
}

func formatSSEStatus(count int) string {
	if count == 0 {
		return "no connected clients"
	}
	return plural(count, "connected client", "connected clients")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
