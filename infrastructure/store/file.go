package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/ahrav/go-matcher/internal/domain"
	"github.com/ahrav/go-matcher/internal/ports"
)

var _ ports.RecordStore = (*File)(nil)

// Input is the on-disk form of the matcher inputs. Input files are JSON and
// may carry comments and trailing commas.
type Input struct {
	Documents []domain.Document      `json:"documents"`
	Archives  []domain.ArchiveRecord `json:"archives"`
	Groups    []domain.Group         `json:"groups"`
}

// LoadInput reads an input file.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return ParseInput(data)
}

// ParseInput decodes an input document. Unknown fields are rejected. Every
// document or group without an ID is reported in one *domain.ValidationError.
func ParseInput(data []byte) (*Input, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()

	var in Input
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	verr := domain.NewValidationError("input")
	for i, d := range in.Documents {
		if d.ID == "" {
			verr.Add(fmt.Errorf("documents[%d] ID: %w", i, domain.ErrEmptyValue))
		}
	}
	for i, g := range in.Groups {
		if g.ID == "" {
			verr.Add(fmt.Errorf("groups[%d] ID: %w", i, domain.ErrEmptyValue))
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return &in, nil
}

// Import adds every document, archive and group of in to m.
func (m *Memory) Import(in *Input) {
	m.AddDocuments(in.Documents...)
	m.AddArchives(in.Archives...)
	m.AddGroups(in.Groups...)
}

// FileOptions tunes the snapshot format of a File store.
type FileOptions struct {
	Codec       Codec
	Compression Compression
}

// File is a Memory store whose metadata records are persisted to a
// snapshot file after every Put. The snapshot is replaced atomically, so a
// crash leaves either the old or the new set of records.
type File struct {
	*Memory

	path string
	opts FileOptions
	// writeMu serializes snapshot writes.
	writeMu sync.Mutex
}

// OpenFile opens the snapshot at path, loading its records when it exists.
func OpenFile(path string, opts FileOptions) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path: %w", domain.ErrEmptyValue)
	}
	if opts.Codec == "" {
		opts.Codec = CodecJSON
	}
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}

	f := &File{Memory: NewMemory(), path: filepath.Clean(path), opts: opts}

	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	records, err := decodeSnapshot(data, opts.Codec, opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", f.path, err)
	}
	f.load(records)
	return f, nil
}

// Path returns the snapshot location.
func (f *File) Path() string { return f.path }

// Put stores record and rewrites the snapshot.
func (f *File) Put(ctx context.Context, record *domain.MetadataRecord) error {
	if err := f.Memory.Put(ctx, record); err != nil {
		return err
	}
	return f.Flush()
}

// Flush writes every stored record to the snapshot file.
func (f *File) Flush() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	data, err := encodeSnapshot(f.Records(), f.opts.Codec, f.opts.Compression)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
