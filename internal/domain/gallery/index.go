package gallery

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/coder/hnsw"

	"github.com/okian/rollcall/internal/domain/model"
)

// HNSW graph parameters.
const (
	hnswMaxNeighbors = 16
	hnswEfSearch     = 64
)

// Index proposes nearest-neighbour candidates for large galleries. Results
// are approximate; callers re-rank them with exact distances.
type Index struct {
	graph *hnsw.Graph[int]
	k     int
	// exact maps an embedding's bit pattern to its first gallery position.
	exact map[string]int
}

func buildIndex(entries []Entry, k int) *Index {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.EfSearch = hnswEfSearch
	g.Distance = hnsw.EuclideanDistance

	exact := make(map[string]int, len(entries))
	for i, e := range entries {
		g.Add(hnsw.MakeNode(i, []float32(e.Embedding)))
		if _, ok := exact[vectorKey(e.Embedding)]; !ok {
			exact[vectorKey(e.Embedding)] = i
		}
	}
	return &Index{graph: g, k: k, exact: exact}
}

func vectorKey(v model.Embedding) string {
	buf := make([]byte, 0, 4*len(v))
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return string(buf)
}

// Exact returns the first gallery position holding exactly q.
func (ix *Index) Exact(q model.Embedding) (int, bool) {
	if ix == nil {
		return 0, false
	}
	i, ok := ix.exact[vectorKey(q)]
	return i, ok
}

// Candidates returns gallery positions near q, ascending.
func (ix *Index) Candidates(q model.Embedding) []int {
	if ix == nil || ix.graph == nil || ix.graph.Len() == 0 {
		return nil
	}
	nodes := ix.graph.Search([]float32(q), ix.k)
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key
	}
	sort.Ints(out)
	return out
}
