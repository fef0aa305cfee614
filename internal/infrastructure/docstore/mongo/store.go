// internal/infrastructure/docstore/mongo/store.go
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/commerce-session/internal/domain/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentsCollection holds every document keyed by its full path
const DocumentsCollection = "documents"

type record struct {
	Path       string `bson:"_id"`
	Collection string `bson:"collection"`
	Data       bson.M `bson:"data"`
}

// Store is the MongoDB remote backend
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	log        *logrus.Entry
}

// NewStore creates a new MongoDB document store
func NewStore(db *mongo.Database, log *logrus.Logger) *Store {
	return &Store{
		client:     db.Client(),
		collection: db.Collection(DocumentsCollection),
		log:        log.WithField("component", "mongo"),
	}
}

// CreateIndexes creates the collection lookup index
func (s *Store) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "collection", Value: 1}},
		},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Health pings the server
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// GetDocument reads the document at path
func (s *Store) GetDocument(ctx context.Context, path string) (docstore.Document, error) {
	if err := docstore.ValidatePath(path); err != nil {
		return docstore.Document{}, err
	}

	data, err := s.find(ctx, path)
	if err != nil {
		return docstore.Document{}, err
	}
	if data == nil {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{Path: path, Data: data}, nil
}

// SetDocumentMerge merges patch into the document at path, creating it when missing
func (s *Store) SetDocumentMerge(ctx context.Context, path string, patch map[string]any) error {
	if err := docstore.ValidatePath(path); err != nil {
		return err
	}

	update := bson.M{"$set": setFields(path, patch)}
	opts := options.Update().SetUpsert(true)
	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": path}, update, opts); err != nil {
		return fmt.Errorf("failed to set document %s: %w", path, err)
	}
	return nil
}

// QueryByField returns the documents directly inside collection whose field equals value
func (s *Store) QueryByField(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	filter := bson.M{
		"collection":    collection,
		"data." + field: value,
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	defer cursor.Close(ctx)

	var out []docstore.Document
	for cursor.Next(ctx) {
		var rec record
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", collection, err)
		}
		out = append(out, docstore.Document{Path: rec.Path, Data: normalizeMap(rec.Data)})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	return out, nil
}

// RunAtomicBatch plans the batch against documents read inside a multi-document
// transaction and applies it with $set and $inc. Write conflicts that outlive the
// driver's retries surface as docstore.ErrConflict.
func (s *Store) RunAtomicBatch(ctx context.Context, ops []docstore.Op) error {
	if err := docstore.Validate(ops); err != nil {
		return err
	}
	paths := docstore.Paths(ops)

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		current := make(map[string]map[string]any, len(paths))
		for _, p := range paths {
			data, err := s.find(sc, p)
			if err != nil {
				return nil, err
			}
			if data != nil {
				current[p] = data
			}
		}

		writes, err := docstore.Plan(current, ops)
		if err != nil {
			return nil, err
		}

		for _, w := range writes {
			if _, err := s.collection.UpdateOne(sc, bson.M{"_id": w.Path}, batchUpdate(w), options.Update().SetUpsert(true)); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", w.Path, err)
			}
		}
		return nil, nil
	})

	if err == nil {
		return nil
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorLabel("TransientTransactionError") {
		s.log.WithError(err).Info("Batch transaction conflicted")
		return docstore.ErrConflict
	}
	return err
}

func (s *Store) find(ctx context.Context, path string) (map[string]any, error) {
	var rec record
	err := s.collection.FindOne(ctx, bson.M{"_id": path}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}
	data := normalizeMap(rec.Data)
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func setFields(path string, patch map[string]any) bson.M {
	set := bson.M{"collection": docstore.Collection(path)}
	for k, v := range patch {
		set["data."+k] = v
	}
	return set
}

func batchUpdate(w docstore.Write) bson.M {
	set := setFields(w.Path, w.Sets)
	inc := bson.M{}
	for field, delta := range w.Deltas {
		if _, ok := w.Sets[field]; ok {
			set["data."+field] = w.Result[field]
			continue
		}
		inc["data."+field] = delta
	}

	update := bson.M{"$set": set}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update
}

// normalizeMap converts driver decoding types into plain Go values
func normalizeMap(m bson.M) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeMap(t)
	case bson.D:
		return normalizeMap(t.Map())
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Decimal128:
		return t.String()
	default:
		return v
	}
}
