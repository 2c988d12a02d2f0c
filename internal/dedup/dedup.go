// Package dedup folds candidates from different sources that describe the
// same real-world event into clusters, and resolves each cluster into one
// canonical event.
//
// Pairwise comparison is quadratic, so candidates are first partitioned into
// blocks by category, geohash cell, and time bucket; only candidates sharing
// a block are compared. Clustering is transitive: if A matches B and B
// matches C, all three fold together even when A and C score below the
// threshold on their own.
//
// Every stage iterates candidates in canonical key order, so the same input
// set always produces the same clusters and the same canonical events.
package dedup

import (
	"fmt"
	"sort"
	"time"

	"github.com/mmcloughlin/geohash"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// Options holds the dedup tuning knobs sourced from config.
type Options struct {
	Threshold   float64 // pairwise similarity at or above this links two candidates
	TitleWeight float64
	GeoWeight   float64
	TimeWeight  float64

	MergeRadiusKM   float64
	MergeTimeWindow time.Duration

	GeohashPrecision uint          // blocking cell size; 3 is roughly 156km
	TimeBucket       time.Duration // blocking and identity time granularity

	CorroborationBonus int // confidence bonus per extra distinct source type
}

// Deduper clusters and merges one cycle's candidates.
type Deduper struct {
	opts Options
}

func New(opts Options) *Deduper {
	return &Deduper{opts: opts}
}

// Cluster is a group of candidates attributed to one real-world event,
// ordered by canonical key.
type Cluster struct {
	Members []domain.Candidate
}

// Clusters partitions candidates into blocks, scores pairs within each
// block, and returns the transitive closure of above-threshold matches.
// Singleton clusters are normal: most candidates have no counterpart.
func (d *Deduper) Clusters(candidates []domain.Candidate) []Cluster {
	ordered := append([]domain.Candidate(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Raw.Key() < ordered[j].Raw.Key()
	})

	uf := newUnionFind(len(ordered))

	// blocks maps each blocking key to the candidate indexes that emitted it.
	blocks := make(map[string][]int)
	for i, cand := range ordered {
		for _, key := range d.blockingKeys(cand) {
			blocks[key] = append(blocks[key], i)
		}
	}

	blockKeys := make([]string, 0, len(blocks))
	for key := range blocks {
		blockKeys = append(blockKeys, key)
	}
	sort.Strings(blockKeys)

	for _, key := range blockKeys {
		members := blocks[key]
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				if uf.find(a) == uf.find(b) {
					continue
				}
				if d.similarity(ordered[a], ordered[b]) >= d.opts.Threshold {
					uf.union(a, b)
				}
			}
		}
	}

	groups := make(map[int][]domain.Candidate)
	for i, cand := range ordered {
		root := uf.find(i)
		groups[root] = append(groups[root], cand)
	}

	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	clusters := make([]Cluster, 0, len(groups))
	for _, root := range roots {
		clusters = append(clusters, Cluster{Members: groups[root]})
	}
	return clusters
}

// blockingKeys returns the candidate's category+cell+bucket keys. Each
// candidate also emits its neighboring geohash cells and the following time
// bucket, so near-boundary pairs still land in a shared block. Every
// candidate additionally emits one coarser cell: country-centroid fallbacks
// can sit several fine cells from the true position, and the coarse tier is
// where they meet exact readings. Keys only propose comparisons; the
// similarity threshold decides matches.
func (d *Deduper) blockingKeys(cand domain.Candidate) []string {
	bucket := cand.Observed.UTC().Truncate(d.opts.TimeBucket).Unix()
	next := cand.Observed.UTC().Add(d.opts.TimeBucket).Truncate(d.opts.TimeBucket).Unix()

	own := []string{"none"}
	cells := []string{"none"}
	if cand.Location.Precision != domain.PrecisionNone {
		fine := geohash.EncodeWithPrecision(cand.Location.Lat, cand.Location.Lon, d.opts.GeohashPrecision)
		coarse := geohash.EncodeWithPrecision(cand.Location.Lat, cand.Location.Lon, d.coarsePrecision())

		own = []string{fine, coarse}
		cells = append([]string{fine, coarse}, geohash.Neighbors(fine)...)
		if cand.Location.Precision == domain.PrecisionCountry {
			cells = append(cells, geohash.Neighbors(coarse)...)
		}
	}

	keys := make([]string, 0, len(cells)+len(own))
	for _, cell := range cells {
		keys = append(keys, fmt.Sprintf("%s|%s|%d", cand.Category, cell, bucket))
	}
	// Own cells only for the next bucket; neighbors there add little.
	for _, cell := range own {
		keys = append(keys, fmt.Sprintf("%s|%s|%d", cand.Category, cell, next))
	}
	return keys
}

func (d *Deduper) coarsePrecision() uint {
	if d.opts.GeohashPrecision <= 1 {
		return 1
	}
	return d.opts.GeohashPrecision - 1
}

// unionFind is a plain disjoint-set with path compression.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union links two sets, keeping the smaller root so cluster grouping stays
// stable under input order.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
