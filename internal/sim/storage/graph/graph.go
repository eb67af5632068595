// Package graph links controller and relay nodes into an undirected network
// and answers reachability queries over it.
package graph

import "hivenet.ai/internal/sim/voxel"

type Kind uint8

const (
	KindController Kind = iota + 1
	KindRelay
)

func (k Kind) String() string {
	switch k {
	case KindController:
		return "controller"
	case KindRelay:
		return "relay"
	}
	return "unknown"
}

// Node is the capability set shared by controllers and relays.
type Node interface {
	Pos() voxel.Vec3i
	Kind() Kind
	// Chests lists the node's registered chests in registration order.
	Chests() []voxel.Vec3i
	Edges() *Edges
}

// Edges is an explicit set of linked node positions. Links are never
// inferred from geometry.
type Edges struct {
	set map[voxel.Vec3i]struct{}
}

func (e *Edges) Add(p voxel.Vec3i) {
	if e.set == nil {
		e.set = map[voxel.Vec3i]struct{}{}
	}
	e.set[p] = struct{}{}
}

func (e *Edges) Remove(p voxel.Vec3i) { delete(e.set, p) }

func (e *Edges) Has(p voxel.Vec3i) bool {
	_, ok := e.set[p]
	return ok
}

func (e *Edges) Len() int { return len(e.set) }

func (e *Edges) List() []voxel.Vec3i { return voxel.SortedKeys(e.set) }

func (e *Edges) Clear() { e.set = nil }

type Graph struct {
	nodes  map[voxel.Vec3i]Node
	loaded func(voxel.Vec3i) bool
}

func New() *Graph {
	return &Graph{nodes: map[voxel.Vec3i]Node{}}
}

// SetLoadedFunc makes traversal skip nodes in unloaded regions.
func (g *Graph) SetLoadedFunc(f func(voxel.Vec3i) bool) { g.loaded = f }

func (g *Graph) Add(n Node) { g.nodes[n.Pos()] = n }

// Resolve returns the live node at p. Unknown or unloaded positions fail.
func (g *Graph) Resolve(p voxel.Vec3i) (Node, bool) {
	n, ok := g.nodes[p]
	if !ok || n == nil {
		return nil, false
	}
	if g.loaded != nil && !g.loaded(p) {
		return nil, false
	}
	return n, true
}

// Remove deletes the node at p and drops every edge pointing at it. It
// returns the positions it was linked to.
func (g *Graph) Remove(p voxel.Vec3i) []voxel.Vec3i {
	n, ok := g.nodes[p]
	if !ok {
		return nil
	}
	peers := n.Edges().List()
	for _, q := range peers {
		if m, ok := g.nodes[q]; ok {
			m.Edges().Remove(p)
		}
	}
	n.Edges().Clear()
	delete(g.nodes, p)
	return peers
}

// Connect links a and b on both sides. Both nodes must resolve.
func (g *Graph) Connect(a, b voxel.Vec3i) bool {
	if a == b {
		return false
	}
	na, ok := g.Resolve(a)
	if !ok {
		return false
	}
	nb, ok := g.Resolve(b)
	if !ok {
		return false
	}
	na.Edges().Add(b)
	nb.Edges().Add(a)
	return true
}

// Disconnect removes the link on both sides. A dangling edge on a known node
// is still removed when the other side no longer exists.
func (g *Graph) Disconnect(a, b voxel.Vec3i) bool {
	removed := false
	if na, ok := g.nodes[a]; ok && na.Edges().Has(b) {
		na.Edges().Remove(b)
		removed = true
	}
	if nb, ok := g.nodes[b]; ok && nb.Edges().Has(a) {
		nb.Edges().Remove(a)
		removed = true
	}
	return removed
}

func (g *Graph) Neighbors(p voxel.Vec3i) []voxel.Vec3i {
	n, ok := g.nodes[p]
	if !ok {
		return nil
	}
	return n.Edges().List()
}

// ReachableNodes walks breadth-first from start. Nodes that fail to resolve
// are skipped, not treated as errors.
func (g *Graph) ReachableNodes(start voxel.Vec3i) []Node {
	first, ok := g.Resolve(start)
	if !ok {
		return nil
	}
	visited := map[voxel.Vec3i]bool{start: true}
	queue := []Node{first}
	var out []Node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		for _, q := range n.Edges().List() {
			if visited[q] {
				continue
			}
			visited[q] = true
			m, ok := g.Resolve(q)
			if !ok {
				continue
			}
			queue = append(queue, m)
		}
	}
	return out
}

// ReachableChests unions the chest registries of every node reachable from
// start, start's own chests first.
func (g *Graph) ReachableChests(start voxel.Vec3i) []voxel.Vec3i {
	var out []voxel.Vec3i
	seen := map[voxel.Vec3i]struct{}{}
	for _, n := range g.ReachableNodes(start) {
		for _, c := range n.Chests() {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func (g *Graph) Len() int { return len(g.nodes) }
