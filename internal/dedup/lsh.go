package dedup

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultBandCount partitions signatures into 5 bands. Changing the band
// count shifts the false-negative/false-positive balance of banding, so it
// stays configurable but defaulted.
const DefaultBandCount = 5

// Match is one similar item returned by an index query.
type Match struct {
	ID         string
	Similarity float64
}

// IndexStats summarizes index shape for health inspection.
type IndexStats struct {
	Buckets       int     `json:"buckets"`
	Items         int     `json:"items"`
	AvgBucketSize float64 `json:"avg_bucket_size"`
	MaxBucketSize int     `json:"max_bucket_size"`
}

// Index buckets MinHash signatures by band so that a query only compares
// against items sharing at least one band, instead of the whole corpus. Any
// pair with an identical band is guaranteed to be found; pairs sharing no
// band are never compared.
type Index struct {
	numBands    int
	rowsPerBand int
	buckets     map[string][]string
	sigs        map[string][]uint32
}

// NewIndex builds an empty index. numBands <= 0 selects DefaultBandCount;
// rows per band is the ceiling of SignatureLength/numBands, with the final
// band absorbing the remainder.
func NewIndex(numBands int) *Index {
	if numBands <= 0 {
		numBands = DefaultBandCount
	}
	if numBands > SignatureLength {
		numBands = SignatureLength
	}

	return &Index{
		numBands:    numBands,
		rowsPerBand: (SignatureLength + numBands - 1) / numBands,
		buckets:     make(map[string][]string),
		sigs:        make(map[string][]uint32),
	}
}

// Add indexes one item under every band key of its signature. Signatures of
// the wrong length are treated as corrupt and skipped so a bad persisted row
// can never break a refresh.
func (x *Index) Add(id string, sig []uint32) {
	if x == nil || id == "" || len(sig) != SignatureLength {
		return
	}
	if _, exists := x.sigs[id]; exists {
		return
	}

	x.sigs[id] = sig
	for _, key := range x.bandKeys(sig) {
		x.buckets[key] = append(x.buckets[key], id)
	}
}

// FindSimilar unions the buckets the query signature lands in, dedupes the
// candidates by identity, excludes the query's own identity, and returns the
// candidates whose exact signature Jaccard meets the threshold, best first.
func (x *Index) FindSimilar(id string, sig []uint32, threshold float64) []Match {
	if x == nil || len(sig) != SignatureLength || len(x.sigs) == 0 {
		return nil
	}

	candidates := make(map[string]struct{})
	for _, key := range x.bandKeys(sig) {
		for _, candidateID := range x.buckets[key] {
			if candidateID == id {
				continue
			}
			candidates[candidateID] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for candidateID := range candidates {
		candidateSig, ok := x.sigs[candidateID]
		if !ok {
			continue
		}
		similarity, err := Jaccard(sig, candidateSig)
		if err != nil {
			continue
		}
		if similarity >= threshold {
			matches = append(matches, Match{ID: candidateID, Similarity: similarity})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}

// IsDuplicate reports whether any indexed item meets the threshold against
// the query signature.
func (x *Index) IsDuplicate(id string, sig []uint32, threshold float64) bool {
	return len(x.FindSimilar(id, sig, threshold)) > 0
}

// Stats reports bucket shape for the stats surfaces.
func (x *Index) Stats() IndexStats {
	if x == nil {
		return IndexStats{}
	}

	stats := IndexStats{
		Buckets: len(x.buckets),
		Items:   len(x.sigs),
	}

	total := 0
	for _, bucket := range x.buckets {
		total += len(bucket)
		if len(bucket) > stats.MaxBucketSize {
			stats.MaxBucketSize = len(bucket)
		}
	}
	if stats.Buckets > 0 {
		stats.AvgBucketSize = float64(total) / float64(stats.Buckets)
	}
	return stats
}

func (x *Index) bandKeys(sig []uint32) []string {
	keys := make([]string, 0, x.numBands)
	for band := 0; band < x.numBands; band++ {
		start := band * x.rowsPerBand
		if start >= len(sig) {
			break
		}
		end := start + x.rowsPerBand
		if end > len(sig) {
			end = len(sig)
		}

		rows := make([]string, 0, end-start)
		for _, v := range sig[start:end] {
			rows = append(rows, strconv.FormatUint(uint64(v), 10))
		}
		keys = append(keys, fmt.Sprintf("band%d:%s", band, strings.Join(rows, "-")))
	}
	return keys
}
