package graph

// Connection is one relationship between two located institutions
type Connection struct {
	From       string `json:"from"`
	To         string `json:"to"`
	FromCoords Coords `json:"from_coords"`
	ToCoords   Coords `json:"to_coords"`
	Rows       []int  `json:"rows"`
}

// Connections lists every relationship once, skipping those where either
// end has no coordinates. From is the institution that comes first in
// iteration order.
func (g *Graph) Connections() []Connection {
	result := []Connection{}
	built := make(map[[2]string]bool)

	for _, name := range g.order {
		inst := g.nodes[name]
		if inst.Coords == nil {
			continue
		}
		for _, neighbour := range inst.NeighbourNames() {
			other := g.nodes[neighbour]
			if other == nil || other.Coords == nil {
				continue
			}
			if built[[2]string{name, neighbour}] || built[[2]string{neighbour, name}] {
				continue
			}
			built[[2]string{name, neighbour}] = true

			result = append(result, Connection{
				From:       name,
				To:         neighbour,
				FromCoords: *inst.Coords,
				ToCoords:   *other.Coords,
				Rows:       inst.Neighbours[neighbour].Sorted(),
			})
		}
	}
	return result
}
