package semantic

import (
	"sort"

	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// adjacency is the active-edge subgraph, indexed by source table.
type adjacency map[string][]types.ERDEdge

func buildAdjacency(erd *types.ERDModel) adjacency {
	adj := make(adjacency)
	for _, e := range erd.Edges {
		if !e.Active {
			continue
		}
		adj[e.Source.String()] = append(adj[e.Source.String()], e)
		// Edges are usable in either direction for reachability; the
		// reverse direction flips the rendered join type for outer joins
		// so the original source/target ordering of the predicate holds.
		adj[e.Target.String()] = append(adj[e.Target.String()], reverseEdge(e))
	}
	return adj
}

func reverseEdge(e types.ERDEdge) types.ERDEdge {
	jt := e.JoinType
	switch jt {
	case types.JoinLeft:
		jt = types.JoinRight
	case types.JoinRight:
		jt = types.JoinLeft
	}
	return types.ERDEdge{
		Source:      e.Target,
		Target:      e.Source,
		SourceCol:   e.TargetCol,
		TargetCol:   e.SourceCol,
		Cardinality: e.Cardinality,
		JoinType:    jt,
		Active:      e.Active,
	}
}

// PlanJoins computes an ordered list of join steps connecting anchor to
// every table in required, via breadth-first search over the active-edge
// subgraph. Tie-break among equal-length paths prefers the smaller max
// cardinality along the path, then lexicographic table name.
func PlanJoins(erd *types.ERDModel, anchor types.TableRef, required []types.TableRef) ([]types.JoinStep, error) {
	needed := make(map[string]types.TableRef)
	for _, t := range required {
		if t.String() != anchor.String() {
			needed[t.String()] = t
		}
	}
	if len(needed) == 0 {
		return nil, nil
	}

	adj := buildAdjacency(erd)

	type pathState struct {
		steps    []types.JoinStep
		maxCard  int
		lastName string
	}

	best := make(map[string]pathState)
	best[anchor.String()] = pathState{}

	// BFS by path length; within each frontier, edges are explored in a
	// deterministic (lexicographic target) order so ties resolve
	// predictably without a priority queue.
	frontier := []string{anchor.String()}
	visited := map[string]bool{anchor.String(): true}

	for len(frontier) > 0 && len(needed) > 0 {
		var next []string
		sort.Strings(frontier)
		for _, cur := range frontier {
			curState := best[cur]
			edges := append([]types.ERDEdge(nil), adj[cur]...)
			sort.Slice(edges, func(i, j int) bool { return edges[i].Target.String() < edges[j].Target.String() })
			for _, e := range edges {
				targetKey := e.Target.String()
				cardRank := types.CardinalityRank(e.Cardinality)
				candMax := cardRank
				if cardRank < curState.maxCard {
					candMax = curState.maxCard
				}
				if e.JoinType == types.JoinCross {
					continue // cross joins require an explicit opt-in handled by the caller
				}
				cand := pathState{
					steps: append(append([]types.JoinStep(nil), curState.steps...), types.JoinStep{
						JoinType:  e.JoinType,
						Table:     e.Target,
						Predicate: e.Source.String() + "." + e.SourceCol + " = " + e.Target.String() + "." + e.TargetCol,
					}),
					maxCard:  candMax,
					lastName: targetKey,
				}
				if !visited[targetKey] {
					visited[targetKey] = true
					best[targetKey] = cand
					next = append(next, targetKey)
				} else if existing, ok := best[targetKey]; ok && len(cand.steps) == len(existing.steps) {
					if cand.maxCard < existing.maxCard || (cand.maxCard == existing.maxCard && targetKey < existing.lastName) {
						best[targetKey] = cand
					}
				}
				delete(needed, targetKey)
			}
		}
		frontier = next
	}

	if len(needed) > 0 {
		var unreachable []string
		for _, t := range needed {
			unreachable = append(unreachable, t.String())
		}
		sort.Strings(unreachable)
		return nil, errors.NewUnreachableTables(unreachable)
	}

	// Merge per-target shortest paths into one ordered step list, sorted
	// by path length then target name so repeated planning over the same
	// inputs always renders the same join order.
	type keyed struct {
		key  string
		path pathState
	}
	var all []keyed
	for _, t := range required {
		if t.String() == anchor.String() {
			continue
		}
		all = append(all, keyed{key: t.String(), path: best[t.String()]})
	}
	sort.Slice(all, func(i, j int) bool {
		if len(all[i].path.steps) != len(all[j].path.steps) {
			return len(all[i].path.steps) < len(all[j].path.steps)
		}
		return all[i].key < all[j].key
	})

	seen := map[string]bool{anchor.String(): true}
	var ordered []types.JoinStep
	for _, k := range all {
		for _, step := range k.path.steps {
			if seen[step.Table.String()] {
				continue
			}
			seen[step.Table.String()] = true
			ordered = append(ordered, step)
		}
	}
	return ordered, nil
}
