package testutils

import "github.com/ahrav/go-matcher/internal/domain"

// ExampleNamespace is the venue namespace used by fixtures.
const ExampleNamespace = "Venue.org/2026/Conference"

// ExampleDocuments returns the two reference submissions.
func ExampleDocuments() []domain.Document {
	return []domain.Document{
		{ID: "D1", Content: "alpha beta", Keywords: []string{"alpha"}},
		{ID: "D2", Content: "beta gamma", Keywords: []string{"gamma"}},
	}
}

// ExampleArchives returns the archive of the reference candidate C1.
func ExampleArchives() []domain.ArchiveRecord {
	return []domain.ArchiveRecord{
		{CandidateID: "C1", Content: "alpha alpha gamma", Keywords: []string{"alpha", "gamma"}},
	}
}

// ExampleGroups returns the single reference group G1 = {C1}.
func ExampleGroups() []domain.Group {
	return []domain.Group{{ID: "G1", Members: []string{"C1"}}}
}

// ReviewerCorpus is a larger fixture with overlapping groups, an untagged
// background record and a candidate without any archive.
type ReviewerCorpus struct {
	Documents []domain.Document
	Archives  []domain.ArchiveRecord
	Groups    []domain.Group
}

// NewReviewerCorpus builds the ReviewerCorpus fixture.
func NewReviewerCorpus() ReviewerCorpus {
	return ReviewerCorpus{
		Documents: []domain.Document{
			{ID: "paper-1", Content: "Sparse attention for long context transformers", Keywords: []string{"transformers", "attention"}},
			{ID: "paper-2", Content: "Graph neural networks for molecule property prediction", Keywords: []string{"graph neural networks"}},
			{ID: "paper-3", Content: "Convex optimization with stochastic gradients", Keywords: []string{"optimisation"}},
		},
		Archives: []domain.ArchiveRecord{
			{CandidateID: "~Ada_Lovelace1", Content: "Efficient transformers with sparse attention patterns", Keywords: []string{"transformers"}},
			{CandidateID: "~Ada_Lovelace1", Content: "Long context language modelling"},
			{CandidateID: "~Alan_Turing1", Content: "Message passing graph neural networks for chemistry", Keywords: []string{"graph neural networks"}},
			{CandidateID: "~Grace_Hopper1", Content: "Stochastic gradient methods in convex optimization", Keywords: []string{"optimization"}},
			{Content: "An unrelated survey of compiler construction"},
		},
		Groups: []domain.Group{
			{ID: "Venue.org/2026/Conference/Reviewers", Members: []string{"~Ada_Lovelace1", "~Alan_Turing1", "~Grace_Hopper1", "~Nobody1"}},
			{ID: "Venue.org/2026/Conference/Area_Chairs", Members: []string{"~Grace_Hopper1"}},
		},
	}
}
