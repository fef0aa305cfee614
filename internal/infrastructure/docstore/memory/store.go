// internal/infrastructure/docstore/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/your-org/commerce-session/internal/domain/docstore"
)

// Store is an in-process document store used for local development and tests
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]any

	// FailWrites makes every write return this error when set
	FailWrites error
	// FailReads makes every read return this error when set
	FailReads error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{docs: make(map[string]map[string]any)}
}

// Put seeds a document, replacing any existing one
func (s *Store) Put(path string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = docstore.Merge(nil, data)
}

// GetDocument returns a copy of the document at path
func (s *Store) GetDocument(ctx context.Context, path string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	if err := docstore.ValidatePath(path); err != nil {
		return docstore.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads != nil {
		return docstore.Document{}, s.FailReads
	}

	data, ok := s.docs[path]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{Path: path, Data: docstore.Merge(nil, data)}, nil
}

// SetDocumentMerge merges patch into the document at path
func (s *Store) SetDocumentMerge(ctx context.Context, path string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docstore.ValidatePath(path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}

	s.docs[path] = docstore.Merge(s.docs[path], patch)
	return nil
}

// QueryByField returns the documents directly inside collection whose field equals value
func (s *Store) QueryByField(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}

	var out []docstore.Document
	for path, data := range s.docs {
		if docstore.Collection(path) != collection {
			continue
		}
		if docstore.Matches(data, field, value) {
			out = append(out, docstore.Document{Path: path, Data: docstore.Merge(nil, data)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// RunAtomicBatch applies ops under the store lock, all or nothing
func (s *Store) RunAtomicBatch(ctx context.Context, ops []docstore.Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}

	current := make(map[string]map[string]any)
	for _, p := range docstore.Paths(ops) {
		if d, ok := s.docs[p]; ok {
			current[p] = d
		}
	}

	writes, err := docstore.Plan(current, ops)
	if err != nil {
		return err
	}
	for _, w := range writes {
		s.docs[w.Path] = w.Result
	}
	return nil
}

// Len returns the number of stored documents
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
