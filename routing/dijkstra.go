package routing

import (
	"container/heap"
	"context"
	"fmt"
	"log"
)

// ctxCheckInterval is how many settled nodes pass between context checks.
const ctxCheckInterval = 1024

// EdgeCost is the derived cost and risk of one edge for one query.
type EdgeCost struct {
	Cost float64
	Risk float64
}

// CostMap holds per-query edge costs next to the shared topology. Edges
// without an entry are not traversable.
type CostMap map[EdgeID]EdgeCost

// Path is the result of a shortest-path search.
type Path struct {
	Nodes []int64
	Edges []*Edge
	Cost  float64
}

func (p *Path) Distance() float64 {
	total := 0.0
	for _, e := range p.Edges {
		total += e.Distance
	}
	return total
}

type PriorityQueueItem struct {
	NodeID   int64
	Priority float64
	Index    int
}

type PriorityQueue []*PriorityQueueItem

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	return pq[i].Priority < pq[j].Priority
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*PriorityQueueItem)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	*pq = old[0 : n-1]
	return item
}

// ShortestPath runs Dijkstra from start to end weighted by costs. Among
// parallel edges the cheapest one is taken. Costs must be non-negative.
func ShortestPath(ctx context.Context, g *Graph, costs CostMap, start, end int64) (*Path, error) {
	if _, ok := g.Nodes[start]; !ok {
		return nil, fmt.Errorf("%w: start node %d", ErrNodeNotFound, start)
	}
	if _, ok := g.Nodes[end]; !ok {
		return nil, fmt.Errorf("%w: end node %d", ErrNodeNotFound, end)
	}

	distances := map[int64]float64{start: 0}
	previous := make(map[int64]*Edge)
	visited := make(map[int64]bool)

	pq := &PriorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &PriorityQueueItem{NodeID: start, Priority: 0})

	settled := 0
	for pq.Len() > 0 {
		current := heap.Pop(pq).(*PriorityQueueItem)
		u := current.NodeID
		if visited[u] {
			continue
		}
		visited[u] = true
		settled++

		if settled%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if u == end {
			break
		}

		for _, edge := range g.Edges[u] {
			c, ok := costs[edge.ID()]
			if !ok || visited[edge.ToID] {
				continue
			}
			if _, ok := g.Nodes[edge.ToID]; !ok {
				continue
			}
			newDist := distances[u] + c.Cost
			if old, seen := distances[edge.ToID]; !seen || newDist < old {
				distances[edge.ToID] = newDist
				previous[edge.ToID] = edge
				heap.Push(pq, &PriorityQueueItem{NodeID: edge.ToID, Priority: newDist})
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !visited[end] {
		return nil, fmt.Errorf("%w: from node %d to node %d", ErrNoPathFound, start, end)
	}

	var edges []*Edge
	for current := end; current != start; {
		edge, ok := previous[current]
		if !ok {
			return nil, fmt.Errorf("%w: path reconstruction failed at node %d", ErrNoPathFound, current)
		}
		edges = append(edges, edge)
		current = edge.FromID
	}
	reverseEdges(edges)

	nodes := make([]int64, 0, len(edges)+1)
	nodes = append(nodes, start)
	for _, e := range edges {
		nodes = append(nodes, e.ToID)
	}

	log.Printf("Dijkstra path found: %d nodes, %d settled, cost %.2f", len(nodes), settled, distances[end])
	return &Path{Nodes: nodes, Edges: edges, Cost: distances[end]}, nil
}

// TotalRisk is the length-weighted risk of the given edges.
func TotalRisk(edges []*Edge, costs CostMap) float64 {
	total := 0.0
	for _, e := range edges {
		total += costs[e.ID()].Risk * e.Distance
	}
	return total
}

func reverseEdges(edges []*Edge) {
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
}
