package qdrant

import (
	"hash/fnv"
	"math"
	"sort"

	"github.com/kirillkom/pulse-assistant/internal/infrastructure/search/analysis"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	docBM25K1      = 1.2
	maxSparseTerms = 256
)

// encodeSparseDocument produces saturated term frequencies; Qdrant applies IDF at query time.
func encodeSparseDocument(text string) sparseVector {
	return termFreqToSparse(termFreq(analysis.Terms(text)), true)
}

// encodeSparseQuery weights each distinct query term once.
func encodeSparseQuery(query string) sparseVector {
	return termFreqToSparse(termFreq(analysis.Terms(query)), false)
}

func termFreq(tokens []string) map[uint32]float64 {
	tf := make(map[uint32]float64, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		tf[hashToken(token)]++
	}
	return tf
}

func termFreqToSparse(tf map[uint32]float64, saturate bool) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	if len(indices) > maxSparseTerms {
		sort.Slice(indices, func(i, j int) bool {
			if tf[indices[i]] != tf[indices[j]] {
				return tf[indices[i]] > tf[indices[j]]
			}
			return indices[i] < indices[j]
		})
		indices = indices[:maxSparseTerms]
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		weight := 1.0
		if saturate {
			f := tf[idx]
			weight = (f * (docBM25K1 + 1.0)) / (f + docBM25K1)
		}
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}
	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}
