package domain

import (
	"math"
	"time"
)

// MetadataInvitationSuffix is appended to a namespace to form the invitation
// under which new metadata records are posted.
const MetadataInvitationSuffix = "/-/Paper_Metadata"

// FeatureVector maps a feature (scorer) name to a strictly positive score
// for one candidate and one document. A score that is zero, negative or not
// a finite number carries no signal and is never stored.
type FeatureVector map[string]float64

// Put stores score under name when it is a positive finite number and
// reports whether it was kept.
func (fv FeatureVector) Put(name string, score float64) bool {
	if !(score > 0) || math.IsInf(score, 0) {
		return false
	}
	fv[name] = score
	return true
}

// Empty reports whether the vector carries no feature.
func (fv FeatureVector) Empty() bool { return len(fv) == 0 }

// CandidateScores maps a candidate ID to its feature vector within a group.
type CandidateScores map[string]FeatureVector

// GroupScores maps a group ID to the candidate scores for that group.
type GroupScores map[string]CandidateScores

// NewGroupScores builds a structure with one empty candidate mapping for
// every group ID.
func NewGroupScores(groupIDs []string) GroupScores {
	gs := make(GroupScores, len(groupIDs))
	for _, id := range groupIDs {
		gs[id] = make(CandidateScores)
	}
	return gs
}

// MetadataRecord is the persisted aggregation result for one document.
// Groups is rebuilt as a whole on every aggregation pass; the identity and
// ownership fields are kept from the stored record when one exists.
type MetadataRecord struct {
	// ID is the store-assigned identifier. Empty until first persisted.
	ID string `json:"id,omitempty"`

	// DocumentID is the document (forum) the record describes.
	DocumentID string `json:"document_id"`

	// Invitation names the namespace-scoped channel the record was posted to.
	Invitation string `json:"invitation"`

	// Readers, Writers and Signatures carry ownership and visibility.
	Readers    []string `json:"readers"`
	Writers    []string `json:"writers"`
	Signatures []string `json:"signatures"`

	// Groups holds group ID -> candidate ID -> feature vector.
	Groups GroupScores `json:"groups"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMetadataRecord creates a record for documentID with default ownership
// scoped to namespace.
func NewMetadataRecord(documentID, namespace string, groups GroupScores, now time.Time) *MetadataRecord {
	return &MetadataRecord{
		DocumentID: documentID,
		Invitation: namespace + MetadataInvitationSuffix,
		Readers:    []string{namespace},
		Writers:    []string{namespace},
		Signatures: []string{namespace},
		Groups:     groups,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ReplaceGroups swaps the record's group scores for groups and bumps
// UpdatedAt. No other field is touched.
func (r *MetadataRecord) ReplaceGroups(groups GroupScores, now time.Time) {
	r.Groups = groups
	r.UpdatedAt = now
}

// Clone returns a deep copy of the record.
func (r *MetadataRecord) Clone() *MetadataRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Readers = append([]string(nil), r.Readers...)
	c.Writers = append([]string(nil), r.Writers...)
	c.Signatures = append([]string(nil), r.Signatures...)
	if r.Groups != nil {
		c.Groups = make(GroupScores, len(r.Groups))
		for gid, cands := range r.Groups {
			cc := make(CandidateScores, len(cands))
			for cid, fv := range cands {
				v := make(FeatureVector, len(fv))
				for k, s := range fv {
					v[k] = s
				}
				cc[cid] = v
			}
			c.Groups[gid] = cc
		}
	}
	return &c
}
