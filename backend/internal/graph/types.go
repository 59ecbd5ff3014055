package graph

import (
	"encoding/json"
	"sort"
)

// ============================================================================
// Referral Graph Types
// ============================================================================

// Coords is a latitude/longitude pair
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceResult is one raw record returned by the place search
type PlaceResult struct {
	Name             string          `json:"name,omitempty"`
	FormattedAddress string          `json:"formatted_address,omitempty"`
	PlaceID          string          `json:"place_id,omitempty"`
	Location         Coords          `json:"location"`
	Types            []string        `json:"types,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"` // provider payload, kept verbatim
}

// LegendEntry labels the table row a primary institution was read from
type LegendEntry struct {
	Label    string `json:"label"`
	RowIndex int    `json:"row_index"`
}

// Legend is the ordered list of legend entries of one graph
type Legend []LegendEntry

// Institution is a node of the referral graph
type Institution struct {
	Name       string            `json:"name"`
	Coords     *Coords           `json:"coords"`
	Geocoding  []PlaceResult     `json:"geocoding"`
	Neighbours map[string]RowSet `json:"neighbours"`
	Legend     *Legend           `json:"legend"` // shared by every institution of a graph
}

// NeighbourNames returns the neighbour names in sorted order
func (i *Institution) NeighbourNames() []string {
	names := make([]string, 0, len(i.Neighbours))
	for name := range i.Neighbours {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CoordStats counts how many institutions have coordinates
type CoordStats struct {
	Total      int `json:"total"`
	WithCoords int `json:"with_coords"`
}

// Complete reports whether every institution has coordinates
func (s CoordStats) Complete() bool {
	return s.WithCoords == s.Total
}

// Graph maps institution names to institutions. Iteration order is the
// order in which names were first added.
type Graph struct {
	order  []string
	nodes  map[string]*Institution
	legend *Legend
}

// New creates an empty graph
func New() *Graph {
	legend := Legend{}
	return &Graph{
		nodes:  make(map[string]*Institution),
		legend: &legend,
	}
}

// Ensure returns the institution called name, creating it if absent
func (g *Graph) Ensure(name string) *Institution {
	if inst, ok := g.nodes[name]; ok {
		return inst
	}
	inst := &Institution{
		Name:       name,
		Neighbours: make(map[string]RowSet),
		Legend:     g.legend,
	}
	g.nodes[name] = inst
	g.order = append(g.order, name)
	return inst
}

// Get looks up an institution by name
func (g *Graph) Get(name string) (*Institution, bool) {
	inst, ok := g.nodes[name]
	return inst, ok
}

// Len returns the number of institutions
func (g *Graph) Len() int {
	return len(g.order)
}

// Names returns institution names in iteration order
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

// Institutions returns the institutions in iteration order
func (g *Graph) Institutions() []*Institution {
	result := make([]*Institution, 0, len(g.order))
	for _, name := range g.order {
		result = append(result, g.nodes[name])
	}
	return result
}

// Legend returns the graph legend
func (g *Graph) Legend() Legend {
	return *g.legend
}

// SetLegend replaces the legend and shares it with every institution
func (g *Graph) SetLegend(legend Legend) {
	shared := append(Legend{}, legend...)
	g.legend = &shared
	for _, inst := range g.nodes {
		inst.Legend = g.legend
	}
}

// Connect records that row asserted a relationship between a and b, in
// both directions. Both institutions must exist. a == b is kept as a
// self loop.
func (g *Graph) Connect(a, b string, row int) {
	g.link(a, b, row)
	g.link(b, a, row)
}

func (g *Graph) link(from, to string, row int) {
	inst := g.nodes[from]
	rows, ok := inst.Neighbours[to]
	if !ok {
		rows = NewRowSet()
		inst.Neighbours[to] = rows
	}
	rows.Add(row)
}

// CoordStats reports coordinate coverage
func (g *Graph) CoordStats() CoordStats {
	stats := CoordStats{Total: len(g.order)}
	for _, inst := range g.nodes {
		if inst.Coords != nil {
			stats.WithCoords++
		}
	}
	return stats
}

// Clone returns a deep copy with its own shared legend
func (g *Graph) Clone() *Graph {
	clone := New()
	clone.SetLegend(g.Legend())
	for _, name := range g.order {
		src := g.nodes[name]
		dst := clone.Ensure(name)
		if src.Coords != nil {
			c := *src.Coords
			dst.Coords = &c
		}
		if src.Geocoding != nil {
			dst.Geocoding = make([]PlaceResult, len(src.Geocoding))
			for i, r := range src.Geocoding {
				r.Types = append([]string(nil), r.Types...)
				r.Raw = append(json.RawMessage(nil), r.Raw...)
				dst.Geocoding[i] = r
			}
		}
		for neighbour, rows := range src.Neighbours {
			dst.Neighbours[neighbour] = rows.Clone()
		}
	}
	return clone
}
