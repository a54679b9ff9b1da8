// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/catena/internal/catalog"
)

// CatalogReader defines the primary port for catalog reads.
type CatalogReader interface {
	// Roots returns the ids of the top-level catalog members.
	Roots() []string

	// Member returns one catalog member by id.
	Member(id string) (*catalog.Member, bool)

	// Members returns all catalog members ordered by id.
	Members() []*catalog.Member
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy           bool              // Overall health status
	Ready             bool              // Catalog composed at least once
	MembersComposed   int               // Number of composed catalog members
	CompositionErrors int               // Errors during the last composition
	Components        map[string]string // Component statuses
}
