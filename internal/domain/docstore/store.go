// internal/domain/docstore/store.go
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by GetDocument when the path has no document
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by RunAtomicBatch when a precondition no longer holds
	ErrConflict = errors.New("batch precondition failed")
)

// LimitError is returned by RunAtomicBatch when an increment would pass its bound
type LimitError struct {
	Path    string
	Field   string
	Current int64
	Max     int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("increment of %s.%s beyond limit %d (current %d)", e.Path, e.Field, e.Max, e.Current)
}

// Document is a stored document with its full path
type Document struct {
	Path string
	Data map[string]any
}

// ID returns the last path segment
func (d Document) ID() string {
	return d.Path[strings.LastIndex(d.Path, "/")+1:]
}

// Store is the narrow remote document store contract.
// Implementations must apply RunAtomicBatch all-or-nothing.
type Store interface {
	GetDocument(ctx context.Context, path string) (Document, error)
	SetDocumentMerge(ctx context.Context, path string, patch map[string]any) error
	QueryByField(ctx context.Context, collection, field string, value any) ([]Document, error)
	RunAtomicBatch(ctx context.Context, ops []Op) error
}

// Increment adds Delta to a numeric field, treating a missing document or field as zero.
// A non-nil Max rejects the batch when the result would exceed it.
type Increment struct {
	Path  string
	Field string
	Delta int64
	Max   *int64
}

// Set merges Patch into the document at Path, creating it when missing
type Set struct {
	Path  string
	Patch map[string]any
}

// Require holds when the field currently equals Equals; a nil Equals also matches
// a missing field or document, and numeric values compare by value
type Require struct {
	Path   string
	Field  string
	Equals any
}

// Op is one batch operation; exactly one member is set
type Op struct {
	Increment *Increment
	Set       *Set
	Require   *Require
}

// IncrementOp builds an increment operation
func IncrementOp(path, field string, delta int64, max *int64) Op {
	return Op{Increment: &Increment{Path: path, Field: field, Delta: delta, Max: max}}
}

// SetOp builds a merge-set operation
func SetOp(path string, patch map[string]any) Op {
	return Op{Set: &Set{Path: path, Patch: patch}}
}

// RequireOp builds a precondition
func RequireOp(path, field string, equals any) Op {
	return Op{Require: &Require{Path: path, Field: field, Equals: equals}}
}

// Paths returns the distinct document paths touched by ops, in first-seen order
func Paths(ops []Op) []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range ops {
		p := op.path()
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func (o Op) path() string {
	switch {
	case o.Increment != nil:
		return o.Increment.Path
	case o.Set != nil:
		return o.Set.Path
	case o.Require != nil:
		return o.Require.Path
	}
	return ""
}

// Validate rejects malformed batches before any backend work
func Validate(ops []Op) error {
	if len(ops) == 0 {
		return errors.New("empty batch")
	}
	for i, op := range ops {
		n := 0
		if op.Increment != nil {
			n++
		}
		if op.Set != nil {
			n++
		}
		if op.Require != nil {
			n++
		}
		if n != 1 {
			return fmt.Errorf("batch op %d: exactly one operation must be set", i)
		}
		if err := ValidatePath(op.path()); err != nil {
			return fmt.Errorf("batch op %d: %w", i, err)
		}
	}
	return nil
}

// ValidatePath checks a document path has an even number of non-empty segments
func ValidatePath(path string) error {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return fmt.Errorf("invalid document path %q", path)
	}
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid document path %q", path)
		}
	}
	return nil
}

// Collection returns the collection segment that contains the document
func Collection(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}
