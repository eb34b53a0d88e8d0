package recognize

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-tracker/internal/identity"
)

// HNSW index parameters for face embedding centroids.
const (
	// indexMaxNeighbors (M) is the maximum number of neighbors per node.
	indexMaxNeighbors = 16
)

// Index is an in-memory HNSW index over template centroids, used to answer
// "which enrolled identity is nearest to this embedding" without scanning
// every template.
type Index struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[string]
	byName     map[string]*identity.Template
	namesByKey []string
}

// NewIndex builds an index from enrolled templates.
func NewIndex(templates []*identity.Template) *Index {
	idx := &Index{byName: make(map[string]*identity.Template, len(templates))}
	if len(templates) == 0 {
		return idx
	}

	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	for _, t := range templates {
		if len(t.Centroid) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(t.Name, t.Centroid))
		idx.byName[t.Name] = t
	}
	idx.graph = g
	return idx
}

// NearestMatch is one identity candidate returned by Nearest.
type NearestMatch struct {
	Template *identity.Template
	Distance float64
}

// Nearest returns the k enrolled identities closest to the query embedding,
// ordered by cosine distance.
func (idx *Index) Nearest(query []float32, k int) ([]NearestMatch, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil {
		return nil, errors.New("index is empty")
	}

	neighbors := idx.graph.Search(query, k)
	out := make([]NearestMatch, 0, len(neighbors))
	for _, n := range neighbors {
		t, ok := idx.byName[n.Key]
		if !ok {
			continue
		}
		out = append(out, NearestMatch{
			Template: t,
			// Recompute exact distance; hnsw search order is approximate.
			Distance: CosineDistance(query, n.Value),
		})
	}
	return out, nil
}

// Len returns the number of indexed identities.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byName)
}
