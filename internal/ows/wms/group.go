package wms

import (
	"context"
	"log/slog"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
)

// LoadGroup is the load entry point for a WMS catalog group: it fetches
// the capabilities document once and creates or updates one catalog
// member per layer, preserving the document's layer hierarchy. Grouping
// nodes (layers with a Title but no Name) become nested groups; named
// layers become items. Shared traits (hidden, proxy, cache duration)
// propagate from the group to every child.
//
// One child's failure is logged and skipped; remaining siblings are
// still composed.
func LoadGroup(ctx context.Context, client *fetch.Client, registry *catalog.Registry, group *catalog.Member, logger *slog.Logger) error {
	traits := group.Traits()
	if traits.URL == "" {
		return &domain.ConfigError{Member: group.ID, Field: "url", Message: "a WMS group needs a url"}
	}

	caps, err := FetchCapabilities(ctx, client, traits.URL, traits.CacheDuration)
	if err != nil {
		return err
	}

	group.SetStratum(catalog.StratumCapabilities, catalog.Traits{
		Name:        caps.ServiceTitle,
		Description: caps.ServiceAbstract,
		Keywords:    caps.ServiceKeywords,
	})

	c := &groupComposer{
		caps:     caps,
		registry: registry,
		logger:   logger,
		shared: catalog.Traits{
			URL:           traits.URL,
			Hidden:        traits.Hidden,
			UseProxy:      traits.UseProxy,
			CacheDuration: traits.CacheDuration,
		},
	}

	var children []string
	for _, layer := range caps.RootLayers {
		// A single un-named root layer is the usual WMS envelope; its
		// children are the interesting part.
		if !layer.HasName() && len(caps.RootLayers) == 1 {
			for _, child := range layer.Children {
				if id, ok := c.compose(group.ID, child); ok {
					children = append(children, id)
				}
			}
			continue
		}
		if id, ok := c.compose(group.ID, layer); ok {
			children = append(children, id)
		}
	}
	group.SetChildren(children)
	return nil
}

type groupComposer struct {
	caps     *Capabilities
	registry *catalog.Registry
	logger   *slog.Logger
	shared   catalog.Traits
}

// compose creates or updates the member for one layer subtree. Returns
// the member id and false when the layer could not be composed.
func (c *groupComposer) compose(parentID string, layer *Layer) (string, bool) {
	if layer.HasName() {
		return c.composeItem(parentID, layer)
	}
	if layer.Title == "" || len(layer.Children) == 0 {
		// Neither requestable nor a grouping node; nothing to show.
		return "", false
	}
	return c.composeSubGroup(parentID, layer)
}

func (c *groupComposer) composeItem(parentID string, layer *Layer) (string, bool) {
	id := catalog.MemberID(parentID, layer.Name)
	member, _ := c.registry.GetOrCreate(id, catalog.TypeWMS)

	definition := c.shared
	definition.Name = layer.Title
	definition.Layers = layer.Name
	member.SetStratum(catalog.StratumDefinition, definition)

	stratum := NewItemStratum(c.caps, ItemOptions{
		URL:    c.shared.URL,
		Layers: []string{layer.Name},
	})
	if len(stratum.Layers()) == 0 {
		c.logger.Warn("skipping wms layer: not resolvable in its own capabilities",
			"layer", layer.Name, "parent", parentID)
		return "", false
	}
	member.SetStratum(catalog.StratumCapabilities, stratum.Traits())
	return id, true
}

func (c *groupComposer) composeSubGroup(parentID string, layer *Layer) (string, bool) {
	id := catalog.MemberID(parentID, layer.Title)
	member, _ := c.registry.GetOrCreate(id, catalog.TypeGroup)

	definition := c.shared
	definition.Name = layer.Title
	definition.Description = layer.Abstract
	member.SetStratum(catalog.StratumDefinition, definition)

	var children []string
	for _, child := range layer.Children {
		if childID, ok := c.compose(id, child); ok {
			children = append(children, childID)
		}
	}
	member.SetChildren(children)
	return id, true
}
