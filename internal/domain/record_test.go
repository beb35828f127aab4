package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureVector_Put(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		kept  bool
	}{
		{name: "positive score kept", score: 0.42, kept: true},
		{name: "zero dropped", score: 0, kept: false},
		{name: "negative dropped", score: -1.5, kept: false},
		{name: "NaN dropped", score: math.NaN(), kept: false},
		{name: "positive infinity dropped", score: math.Inf(1), kept: false},
		{name: "negative infinity dropped", score: math.Inf(-1), kept: false},
		{name: "smallest positive kept", score: math.SmallestNonzeroFloat64, kept: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := make(FeatureVector)
			assert.Equal(t, tt.kept, fv.Put("tfidf", tt.score))
			assert.Equal(t, !tt.kept, fv.Empty())
		})
	}
}

func TestNewGroupScores(t *testing.T) {
	gs := NewGroupScores([]string{"g1", "g2"})

	require.Len(t, gs, 2)
	assert.NotNil(t, gs["g1"])
	assert.Empty(t, gs["g2"])
}

func TestNewMetadataRecord(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	groups := NewGroupScores([]string{"g1"})

	rec := NewMetadataRecord("d1", "Conf/2024", groups, now)

	assert.Equal(t, "d1", rec.DocumentID)
	assert.Equal(t, "Conf/2024/-/Paper_Metadata", rec.Invitation)
	assert.Equal(t, []string{"Conf/2024"}, rec.Readers)
	assert.Equal(t, []string{"Conf/2024"}, rec.Writers)
	assert.Equal(t, []string{"Conf/2024"}, rec.Signatures)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, now, rec.UpdatedAt)
	assert.Empty(t, rec.ID, "store assigns the ID")
}

func TestMetadataRecord_ReplaceGroups(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := NewMetadataRecord("d1", "Conf", GroupScores{"g1": {"c1": {"tfidf": 1}}}, created)
	rec.ID = "note-1"
	rec.Readers = []string{"everyone"}

	later := created.Add(time.Hour)
	rec.ReplaceGroups(GroupScores{"g2": {}}, later)

	assert.Equal(t, "note-1", rec.ID)
	assert.Equal(t, []string{"everyone"}, rec.Readers)
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, later, rec.UpdatedAt)
	assert.Equal(t, GroupScores{"g2": {}}, rec.Groups)
}

func TestMetadataRecord_Clone(t *testing.T) {
	rec := NewMetadataRecord("d1", "Conf", GroupScores{"g1": {"c1": {"tfidf": 1}}}, time.Now())

	c := rec.Clone()
	c.Groups["g1"]["c1"]["tfidf"] = 2
	c.Readers[0] = "other"

	assert.Equal(t, 1.0, rec.Groups["g1"]["c1"]["tfidf"], "clone must not alias groups")
	assert.Equal(t, "Conf", rec.Readers[0], "clone must not alias readers")

	var nilRec *MetadataRecord
	assert.Nil(t, nilRec.Clone())
}

func TestTokenBag(t *testing.T) {
	b := NewTokenBag()
	b.Add(3, 2)
	b.Add(1, 1)
	b.Add(3, 1)
	b.Add(7, 0)
	b.Add(8, -2)

	assert.Equal(t, 3, b[3])
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 4, b.Total())
	assert.Equal(t, []int{1, 3}, b.IDs())

	other := TokenBag{1: 4, 9: 1}
	b.Merge(other)
	assert.Equal(t, TokenBag{1: 5, 3: 3, 9: 1}, b)
}

func TestDocumentRecords(t *testing.T) {
	docs := []Document{
		{ID: "d1", Content: "alpha", Keywords: []string{"k"}},
		{ID: "d2", Content: "beta"},
	}

	records := DocumentRecords(docs)

	require.Len(t, records, 2)
	assert.True(t, records[0].Tagged())
	assert.Equal(t, "d2", records[1].DocumentID)
	assert.Equal(t, []string{"k"}, records[0].Keywords)
	assert.False(t, DocumentRecord{Content: "x"}.Tagged())
	assert.False(t, ArchiveRecord{Content: "x"}.Tagged())
}
