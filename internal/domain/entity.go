// Package domain contains pure, dependency-free domain models and types
// for the matcher: documents, candidates, groups and metadata records.
package domain

// Document represents a submission that candidates are matched against.
// Each document has a unique identifier and its raw textual content.
type Document struct {
	// ID uniquely identifies this document (the forum of a submission).
	ID string `json:"id"`

	// Content contains the full text used to build the document's token bag.
	Content string `json:"content"`

	// Keywords are author-supplied subject keywords. They are optional and
	// only consumed by keyword based scorers.
	Keywords []string `json:"keywords,omitempty"`
}

// DocumentRecord is a single training record fed to a scorer's fit phase.
// A record without a DocumentID contributes to corpus statistics only and
// never becomes a queryable token bag.
type DocumentRecord struct {
	// Content is the text to tokenize.
	Content string `json:"content"`

	// DocumentID ties the record to a document. Empty means untagged.
	DocumentID string `json:"document_id,omitempty"`

	// Keywords optionally carries the document's subject keywords.
	Keywords []string `json:"keywords,omitempty"`
}

// Tagged reports whether the record belongs to a document.
func (r DocumentRecord) Tagged() bool { return r.DocumentID != "" }

// ArchiveRecord holds text authored by a candidate, such as an abstract of a
// previously published paper. Several records may share one CandidateID;
// their token counts accumulate.
type ArchiveRecord struct {
	// Content is the archived text to tokenize.
	Content string `json:"content"`

	// CandidateID ties the record to a candidate. Empty means untagged.
	CandidateID string `json:"candidate_id,omitempty"`

	// Keywords optionally lists the candidate's declared expertise.
	Keywords []string `json:"keywords,omitempty"`
}

// Tagged reports whether the record belongs to a candidate.
func (r ArchiveRecord) Tagged() bool { return r.CandidateID != "" }

// Group is a named set of candidates sharing a matching context, for
// example the program committee of a venue. Membership between groups may
// overlap.
type Group struct {
	// ID uniquely identifies the group.
	ID string `json:"id"`

	// Members lists candidate IDs in a stable order.
	Members []string `json:"members"`
}

// DocumentRecords converts documents into tagged fit records.
func DocumentRecords(docs []Document) []DocumentRecord {
	records := make([]DocumentRecord, len(docs))
	for i, d := range docs {
		records[i] = DocumentRecord{Content: d.Content, DocumentID: d.ID, Keywords: d.Keywords}
	}
	return records
}

// RankedCandidate pairs a candidate with its score for one document.
type RankedCandidate struct {
	CandidateID string  `json:"candidate_id"`
	Score       float64 `json:"score"`
}
