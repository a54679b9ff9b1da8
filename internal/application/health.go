package application

import (
	"context"

	"github.com/jobrunner/catena/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	catalog *CatalogService
}

// NewHealthService creates a new health service.
func NewHealthService(catalogService *CatalogService) *HealthService {
	return &HealthService{
		catalog: catalogService,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true // Basic health check
}

// IsReady returns true if the service is ready to accept requests. The
// catalog must have composed at least once, even if some members failed.
func (s *HealthService) IsReady(_ context.Context) bool {
	return s.catalog.HasComposed()
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	components := map[string]string{
		"source": "ok",
	}

	return input.HealthDetails{
		Healthy:           s.IsHealthy(ctx),
		Ready:             s.IsReady(ctx),
		MembersComposed:   s.catalog.MemberCount(),
		CompositionErrors: s.catalog.LastErrors(),
		Components:        components,
	}
}
