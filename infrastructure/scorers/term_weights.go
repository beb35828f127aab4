package scorers

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ahrav/go-matcher/internal/domain"
)

// weightEpsilon drops weights that carry no discriminating information,
// such as tokens present in every corpus sequence (idf == 0).
const weightEpsilon = 1e-12

// TermWeightModel maps token counts to TF-IDF weights derived from corpus
// document frequencies. It is immutable once built and safe for concurrent
// use.
//
// The weight of a token with count c is c * log2(N / df), where N is the
// number of corpus sequences and df the number of sequences containing the
// token. Tokens never seen in the corpus weigh 0.
type TermWeightModel struct {
	numDocs   int
	idf       map[int]float64
	normalize bool
}

// NewTermWeightModel fits document frequencies over every bag of the
// corpus. Each token's postings are tracked as a roaring bitmap of corpus
// sequence indices, so df is the bitmap cardinality.
func NewTermWeightModel(corpus []domain.TokenBag, normalize bool) *TermWeightModel {
	postings := make(map[int]*roaring.Bitmap)
	for i, bag := range corpus {
		for id := range bag {
			bm, ok := postings[id]
			if !ok {
				bm = roaring.New()
				postings[id] = bm
			}
			bm.Add(uint32(i))
		}
	}

	n := float64(len(corpus))
	idf := make(map[int]float64, len(postings))
	for id, bm := range postings {
		idf[id] = math.Log2(n / float64(bm.GetCardinality()))
	}

	return &TermWeightModel{
		numDocs:   len(corpus),
		idf:       idf,
		normalize: normalize,
	}
}

// NumDocs returns the number of corpus sequences the model was fitted on.
func (m *TermWeightModel) NumDocs() int { return m.numDocs }

// IDF returns the inverse document frequency of a token ID, 0 if unseen.
func (m *TermWeightModel) IDF(id int) float64 { return m.idf[id] }

// Weigh transforms a bag into a sparse weighted vector. Entries with
// negligible weight are omitted; a missing ID reads as weight 0.
func (m *TermWeightModel) Weigh(bag domain.TokenBag) SparseVector {
	ids := bag.IDs()
	vec := SparseVector{
		IDs:     make([]int, 0, len(ids)),
		Weights: make([]float64, 0, len(ids)),
	}
	for _, id := range ids {
		w := float64(bag[id]) * m.idf[id]
		if math.Abs(w) <= weightEpsilon {
			continue
		}
		vec.IDs = append(vec.IDs, id)
		vec.Weights = append(vec.Weights, w)
	}

	if m.normalize && vec.Len() > 0 {
		norm := math.Sqrt(Dot(vec, vec))
		for i := range vec.Weights {
			vec.Weights[i] /= norm
		}
	}
	return vec
}

// SparseVector is a weighted bag with IDs in ascending order. Summing in
// ID order keeps dot products bit-for-bit reproducible.
type SparseVector struct {
	IDs     []int
	Weights []float64
}

// Len returns the number of non-zero entries.
func (v SparseVector) Len() int { return len(v.IDs) }

// Weight returns the weight of id, 0 when absent.
func (v SparseVector) Weight(id int) float64 {
	lo := sort.SearchInts(v.IDs, id)
	if lo < len(v.IDs) && v.IDs[lo] == id {
		return v.Weights[lo]
	}
	return 0
}

// Dot returns the inner product of a and b. IDs present on only one side
// contribute nothing.
func Dot(a, b SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.IDs) && j < len(b.IDs) {
		switch {
		case a.IDs[i] < b.IDs[j]:
			i++
		case a.IDs[i] > b.IDs[j]:
			j++
		default:
			sum += a.Weights[i] * b.Weights[j]
			i++
			j++
		}
	}
	return sum
}
