// Package store provides the document, archive and group sources and the
// metadata record stores the matcher reads from and writes to.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
)

var (
	_ ports.DocumentSource = (*Memory)(nil)
	_ ports.ArchiveSource  = (*Memory)(nil)
	_ ports.GroupSource    = (*Memory)(nil)
	_ ports.RecordStore    = (*Memory)(nil)
)

// Memory keeps documents, archives, groups and metadata records in memory.
// It is safe for concurrent use. Every value going in or out is copied, so
// callers never share state with the store.
type Memory struct {
	mu        sync.RWMutex
	docOrder  []string
	documents map[string]domain.Document
	archives  []domain.ArchiveRecord
	groups    map[string]domain.Group
	records   map[string]*domain.MetadataRecord
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		documents: make(map[string]domain.Document),
		groups:    make(map[string]domain.Group),
		records:   make(map[string]*domain.MetadataRecord),
	}
}

// AddDocuments adds or replaces documents. A replaced document keeps its
// place in the listing order.
func (m *Memory) AddDocuments(docs ...domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		if _, ok := m.documents[d.ID]; !ok {
			m.docOrder = append(m.docOrder, d.ID)
		}
		m.documents[d.ID] = cloneDocument(d)
	}
}

// AddArchives appends archive records.
func (m *Memory) AddArchives(records ...domain.ArchiveRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.Keywords = append([]string(nil), r.Keywords...)
		m.archives = append(m.archives, r)
	}
}

// AddGroups adds or replaces groups.
func (m *Memory) AddGroups(groups ...domain.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range groups {
		g.Members = append([]string(nil), g.Members...)
		m.groups[g.ID] = g
	}
}

// Documents implements ports.DocumentSource.
func (m *Memory) Documents(ctx context.Context, ids []string) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(ids) == 0 {
		ids = m.docOrder
	}
	out := make([]domain.Document, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if d, ok := m.documents[id]; ok {
			out = append(out, cloneDocument(d))
		}
	}
	return out, nil
}

// Archives implements ports.ArchiveSource.
func (m *Memory) Archives(ctx context.Context) ([]domain.ArchiveRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ArchiveRecord, len(m.archives))
	for i, r := range m.archives {
		r.Keywords = append([]string(nil), r.Keywords...)
		out[i] = r
	}
	return out, nil
}

// Groups implements ports.GroupSource.
func (m *Memory) Groups(ctx context.Context, ids []string) ([]domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Group, 0, len(ids))
	for _, id := range ids {
		g, ok := m.groups[id]
		if !ok {
			return nil, fmt.Errorf("group %s: %w", id, ports.ErrNotFound)
		}
		g.Members = append([]string(nil), g.Members...)
		out = append(out, g)
	}
	return out, nil
}

// GetByDocumentIDs implements ports.RecordStore.
func (m *Memory) GetByDocumentIDs(ctx context.Context, documentIDs []string) ([]*domain.MetadataRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.MetadataRecord, 0, len(documentIDs))
	seen := make(map[string]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := m.records[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Put implements ports.RecordStore. A record without an ID takes the ID of
// the stored record for the same document, or a new ID derived from its
// invitation and document ID.
func (m *Memory) Put(ctx context.Context, record *domain.MetadataRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("record: %w", domain.ErrEmptyValue)
	}
	if record.DocumentID == "" {
		return fmt.Errorf("record document ID: %w", domain.ErrEmptyValue)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		if prev, ok := m.records[record.DocumentID]; ok {
			record.ID = prev.ID
		} else {
			record.ID = RecordID(record.Invitation, record.DocumentID)
		}
	}
	m.records[record.DocumentID] = record.Clone()
	return nil
}

// Records returns copies of every stored record ordered by document ID.
func (m *Memory) Records() []*domain.MetadataRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.MetadataRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

// load replaces every stored record.
func (m *Memory) load(records []*domain.MetadataRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*domain.MetadataRecord, len(records))
	for _, rec := range records {
		if rec != nil && rec.DocumentID != "" {
			m.records[rec.DocumentID] = rec.Clone()
		}
	}
}

func cloneDocument(d domain.Document) domain.Document {
	d.Keywords = append([]string(nil), d.Keywords...)
	return d
}
