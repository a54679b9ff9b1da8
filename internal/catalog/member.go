package catalog

import "sync"

// Type identifies what kind of dataset or group a member represents.
type Type string

// Member types.
const (
	TypeGroup         Type = "group"
	TypeWMSGroup      Type = "wms-group"
	TypeWFSGroup      Type = "wfs-group"
	TypeWMTSGroup     Type = "wmts-group"
	TypeCSWGroup      Type = "csw-group"
	TypeWMS           Type = "wms"
	TypeWFS           Type = "wfs"
	TypeWMTS          Type = "wmts"
	TypeWPS           Type = "wps"
	TypeSOS           Type = "sos"
	TypeEsriMapServer Type = "esri-mapServer"
	TypeKML           Type = "kml"
	TypeGeoJSON       Type = "geojson"
	TypeCSV           Type = "csv"
)

// Member is one node of the catalog tree. Groups carry child member ids;
// items are leaf datasets. Trait values live in named strata composed by
// precedence; the composed result is cached and invalidated whenever a
// stratum is replaced.
type Member struct {
	ID   string
	Type Type

	mu       sync.RWMutex
	strata   map[StratumID]Traits
	children []string

	version       uint64
	composed      Traits
	composedValid bool
}

// NewMember creates a member with no strata.
func NewMember(id string, typ Type) *Member {
	return &Member{
		ID:     id,
		Type:   typ,
		strata: make(map[StratumID]Traits),
	}
}

// IsGroup reports whether the member holds children.
func (m *Member) IsGroup() bool {
	switch m.Type {
	case TypeGroup, TypeWMSGroup, TypeWFSGroup, TypeWMTSGroup, TypeCSWGroup:
		return true
	}
	return false
}

// SetStratum replaces one stratum wholesale and invalidates the composed
// cache. Writers must only replace strata they own.
func (m *Member) SetStratum(id StratumID, t Traits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strata[id] = t
	m.version++
	m.composedValid = false
}

// Stratum returns a copy of the named stratum.
func (m *Member) Stratum(id StratumID) (Traits, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.strata[id]
	return t, ok
}

// Traits composes all strata by precedence. The result is cached until a
// stratum changes.
func (m *Member) Traits() Traits {
	m.mu.RLock()
	if m.composedValid {
		t := m.composed
		m.mu.RUnlock()
		return t
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.composedValid {
		var out Traits
		for _, id := range strataOrder {
			if t, ok := m.strata[id]; ok {
				out = merge(out, t)
			}
		}
		m.composed = out
		m.composedValid = true
	}
	return m.composed
}

// Version increments every time a stratum is replaced. Collaborators use
// it to notice recomposition.
func (m *Member) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// SetChildren replaces the ordered child id list of a group.
func (m *Member) SetChildren(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children = append([]string(nil), ids...)
}

// AddChild appends a child id if not already present.
func (m *Member) AddChild(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.children {
		if c == id {
			return
		}
	}
	m.children = append(m.children, id)
}

// Children returns the ordered child id list.
func (m *Member) Children() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.children...)
}
