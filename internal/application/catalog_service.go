// Package application contains the application services.
package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ows/csw"
	"github.com/jobrunner/catena/internal/ows/wfs"
	"github.com/jobrunner/catena/internal/ows/wms"
	"github.com/jobrunner/catena/internal/ows/wmts"
	"github.com/jobrunner/catena/internal/ows/wps"
	"github.com/jobrunner/catena/internal/ports/output"
)

// CatalogService composes the catalog: it reads every definition file
// the source lists, registers the declared members, and expands the
// ones that point at OGC endpoints.
type CatalogService struct {
	registry *catalog.Registry
	source   output.DefinitionSource
	client   *fetch.Client
	metrics  output.MetricsCollector
	logger   *slog.Logger

	mu         sync.RWMutex
	roots      []string
	composedAt time.Time
	lastErrors int
}

// ComposeStats contains statistics from one composition run.
type ComposeStats struct {
	Members int
	Errors  int
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	registry *catalog.Registry,
	source output.DefinitionSource,
	client *fetch.Client,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		registry: registry,
		source:   source,
		client:   client,
		metrics:  metrics,
		logger:   logger,
	}
}

// Compose reads all definition files and (re)composes the catalog. One
// member's failure is logged and counted; its siblings still compose.
// The failed member keeps its definition stratum so it stays visible in
// the tree with whatever the file declared.
func (s *CatalogService) Compose(ctx context.Context) (ComposeStats, error) {
	s.logger.Info("composing catalog")

	objects, err := s.source.List(ctx)
	if err != nil {
		return ComposeStats{}, fmt.Errorf("listing catalog definitions: %w", err)
	}

	stats := ComposeStats{}
	var roots []string
	for _, obj := range objects {
		def, err := s.readDefinition(ctx, obj.Key)
		if err != nil {
			s.logger.Error("skipping definition file", "key", obj.Key, "error", err)
			stats.Errors++
			continue
		}
		for _, member := range def.Catalog {
			id := s.composeMember(ctx, "", member, &stats)
			roots = append(roots, id)
		}
	}

	stats.Members = s.registry.Len()
	s.metrics.SetMembersComposed(stats.Members)

	s.mu.Lock()
	s.roots = roots
	s.composedAt = time.Now()
	s.lastErrors = stats.Errors
	s.mu.Unlock()

	s.logger.Info("catalog composed",
		"definitions", len(objects),
		"members", stats.Members,
		"errors", stats.Errors,
	)
	return stats, nil
}

// readDefinition opens and parses one definition file.
func (s *CatalogService) readDefinition(ctx context.Context, key string) (*Definition, error) {
	rc, err := s.source.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return ParseDefinition(data)
}

// composeMember registers one declared member and expands it by type.
// Returns the member id; expansion failures are counted on stats.
func (s *CatalogService) composeMember(ctx context.Context, parentID string, def MemberDefinition, stats *ComposeStats) string {
	id := def.Name
	if parentID != "" {
		id = catalog.MemberID(parentID, def.Name)
	}
	typ := catalog.Type(def.Type)
	member, _ := s.registry.GetOrCreate(id, typ)
	member.SetStratum(catalog.StratumDefinition, def.traits())

	if err := s.expand(ctx, member, def, stats); err != nil {
		s.logger.Error("member composition failed", "member", id, "type", def.Type, "error", err)
		s.metrics.IncCompositionErrors(def.Type)
		stats.Errors++
	}
	return id
}

// expand fills the member's capabilities stratum (and, for groups, its
// children) from the remote service.
func (s *CatalogService) expand(ctx context.Context, member *catalog.Member, def MemberDefinition, stats *ComposeStats) error {
	switch catalog.Type(def.Type) {
	case catalog.TypeGroup:
		var children []string
		for _, child := range def.Members {
			children = append(children, s.composeMember(ctx, member.ID, child, stats))
		}
		member.SetChildren(children)
		return nil

	case catalog.TypeWMSGroup:
		return wms.LoadGroup(ctx, s.client, s.registry, member, s.logger)
	case catalog.TypeWFSGroup:
		return wfs.LoadGroup(ctx, s.client, s.registry, member, s.logger)
	case catalog.TypeWMTSGroup:
		return wmts.LoadGroup(ctx, s.client, s.registry, member, s.logger)
	case catalog.TypeCSWGroup:
		return csw.LoadGroup(ctx, s.client, s.registry, member, s.cswOptions(def), s.logger)

	case catalog.TypeWMS:
		return wms.LoadItem(ctx, s.client, member, wms.ItemOptions{})
	case catalog.TypeWFS:
		return wfs.LoadItem(ctx, s.client, member)
	case catalog.TypeWMTS:
		return wmts.LoadItem(ctx, s.client, member)
	case catalog.TypeWPS:
		_, err := wps.LoadItem(ctx, s.client, member)
		return err

	case catalog.TypeSOS:
		// SOS carries no capabilities stratum; its requests are built on
		// demand from the definition traits.
		return nil

	case catalog.TypeEsriMapServer, catalog.TypeKML, catalog.TypeGeoJSON, catalog.TypeCSV:
		// Plain data references: nothing to fetch at composition time.
		return nil

	default:
		return fmt.Errorf("unknown member type %q", def.Type)
	}
}

func (s *CatalogService) cswOptions(def MemberDefinition) csw.Options {
	opts := csw.Options{
		MaxPages: def.MaxPages,
		Metrics:  s.metrics,
	}
	if def.Domain != nil {
		opts.Domain = &csw.DomainSpecification{
			DomainPropertyName: def.Domain.PropertyName,
			HierarchySeparator: def.Domain.HierarchySeparator,
			QueryPropertyName:  def.Domain.QueryPropertyName,
		}
	}
	return opts
}

// Roots returns the ids of the top-level catalog members.
func (s *CatalogService) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.roots...)
}

// Member returns one catalog member by id.
func (s *CatalogService) Member(id string) (*catalog.Member, bool) {
	return s.registry.Get(id)
}

// Members returns all catalog members ordered by id.
func (s *CatalogService) Members() []*catalog.Member {
	return s.registry.List()
}

// MemberCount returns the number of registered members.
func (s *CatalogService) MemberCount() int {
	return s.registry.Len()
}

// HasComposed reports whether the catalog was composed at least once.
func (s *CatalogService) HasComposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.composedAt.IsZero()
}

// ComposedAt returns the time of the last composition.
func (s *CatalogService) ComposedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.composedAt
}

// LastErrors returns the error count of the last composition.
func (s *CatalogService) LastErrors() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErrors
}
