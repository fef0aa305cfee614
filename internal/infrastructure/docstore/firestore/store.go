// internal/infrastructure/docstore/firestore/store.go
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store is the Cloud Firestore remote backend
type Store struct {
	client *firestore.Client
	log    *logrus.Entry
}

// NewClient creates a Firestore client; an empty credentialsFile uses application default credentials
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// NewStore creates a new Firestore document store
func NewStore(client *firestore.Client, log *logrus.Logger) *Store {
	return &Store{
		client: client,
		log:    log.WithField("component", "firestore"),
	}
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

// Health performs a cheap read to verify connectivity
func (s *Store) Health(ctx context.Context) error {
	iter := s.client.Collections(ctx)
	_, err := iter.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore health check failed: %w", err)
	}
	return nil
}

// GetDocument reads the document at path
func (s *Store) GetDocument(ctx context.Context, path string) (docstore.Document, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return docstore.Document{}, err
	}

	snap, err := s.client.Doc(path).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("failed to get document %s: %w", path, err)
	}
	return docstore.Document{Path: path, Data: snap.Data()}, nil
}

// SetDocumentMerge merges patch into the document at path, creating it when missing
func (s *Store) SetDocumentMerge(ctx context.Context, path string, patch map[string]any) error {
	if err := docstore.ValidatePath(path); err != nil {
		return err
	}
	if _, err := s.client.Doc(path).Set(ctx, patch, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to set document %s: %w", path, err)
	}
	return nil
}

// QueryByField returns the documents in collection whose field equals value
func (s *Store) QueryByField(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	snaps, err := s.client.Collection(collection).Where(field, "==", value).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}

	out := make([]docstore.Document, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, docstore.Document{
			Path: collection + "/" + snap.Ref.ID,
			Data: snap.Data(),
		})
	}
	return out, nil
}

// RunAtomicBatch reads every touched document inside one transaction, plans the batch
// against that snapshot and writes the results. Firestore retries the transaction on
// contention; a transaction that keeps aborting surfaces as docstore.ErrConflict.
func (s *Store) RunAtomicBatch(ctx context.Context, ops []docstore.Op) error {
	if err := docstore.Validate(ops); err != nil {
		return err
	}
	paths := docstore.Paths(ops)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current := make(map[string]map[string]any, len(paths))
		for _, p := range paths {
			snap, err := tx.Get(s.client.Doc(p))
			if status.Code(err) == codes.NotFound {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", p, err)
			}
			current[p] = snap.Data()
		}

		writes, err := docstore.Plan(current, ops)
		if err != nil {
			return err
		}

		for _, w := range writes {
			if err := tx.Set(s.client.Doc(w.Path), w.Result); err != nil {
				return fmt.Errorf("failed to stage %s: %w", w.Path, err)
			}
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.Aborted:
		s.log.WithError(err).Info("Batch transaction aborted after retries")
		return docstore.ErrConflict
	default:
		return err
	}
}
