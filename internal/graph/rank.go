package graph

import (
	"math"
	"sort"

	"github.com/phobologic/sitebuild/internal/model"
)

// Ranked is an asset with its import centrality.
type Ranked struct {
	Asset *model.Asset
	Rank  float64
}

// Rank applies PageRank over the script and style import edges and returns
// those assets sorted by rank descending, ties by path. An asset imported by
// many others ranks high.
func (g *Graph) Rank() []Ranked {
	nodes := make(map[string]struct{}, len(g.scripts)+len(g.styles))
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)

	for _, group := range []map[string]*model.Asset{g.scripts, g.styles} {
		for p, a := range group {
			nodes[p] = struct{}{}
			for _, c := range a.Children() {
				outEdges[p] = append(outEdges[p], c.Path)
				outDegree[p]++
			}
		}
	}
	if len(nodes) == 0 {
		return nil
	}

	var ranks map[string]float64
	if len(outEdges) == 0 {
		uniform := 1.0 / float64(len(nodes))
		ranks = make(map[string]float64, len(nodes))
		for n := range nodes {
			ranks[n] = uniform
		}
	} else {
		ranks = pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)
	}

	out := make([]Ranked, 0, len(nodes))
	for p := range nodes {
		out = append(out, Ranked{Asset: g.assets[p], Rank: ranks[p]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].Asset.Path < out[j].Asset.Path
	})
	return out
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges
		for src, targets := range outEdges {
			deg := float64(outDegree[src])
			contrib := alpha * rank[src] / deg
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		// Check convergence
		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}
