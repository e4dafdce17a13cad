package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo stores each kind in its own collection of the given database.
type Mongo struct {
	db  *mongo.Database
	now func() time.Time
}

// NewMongo wraps an already connected database handle.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// ConnectMongo dials uri and pings the primary before returning the store
// together with the client that owns the connection pool.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, *mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongo(client.Database(database)), client, nil
}

func (m *Mongo) collection(kind Kind) *mongo.Collection {
	return m.db.Collection(string(kind))
}

// Get returns a document by id.
func (m *Mongo) Get(ctx context.Context, kind Kind, id string) (*Document, error) {
	var doc Document
	err := m.collection(kind).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.Kind = kind
	return &doc, nil
}

// Find returns matching documents ordered by creation time.
func (m *Mongo) Find(ctx context.Context, kind Kind, q Query) ([]*Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := m.collection(kind).Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cur.Close(ctx)

	docs := make([]*Document, 0)
	for cur.Next(ctx) {
		var doc Document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		doc.Kind = kind
		docs = append(docs, &doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func mongoFilter(q Query) bson.D {
	filter := bson.D{}
	switch q.State {
	case Active:
		filter = append(filter, bson.E{Key: "deleted", Value: false})
	case Trashed:
		filter = append(filter, bson.E{Key: "deleted", Value: true})
	}
	if q.IDs != nil {
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: q.IDs}}})
	}
	for k, v := range q.Attrs {
		filter = append(filter, bson.E{Key: "attrs." + k, Value: v})
	}
	return filter
}

// Insert persists a new document with revision 1.
func (m *Mongo) Insert(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("document is required")
	}

	now := m.now()
	next := doc.Clone()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	next.Revision = 1

	if _, err := m.collection(doc.Kind).InsertOne(ctx, next); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrExists
		}
		return fmt.Errorf("insert document: %w", err)
	}

	doc.CreatedAt = next.CreatedAt
	doc.UpdatedAt = next.UpdatedAt
	doc.Revision = 1
	return nil
}

// Save replaces the document when the stored revision still matches.
func (m *Mongo) Save(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("document is required")
	}

	next := doc.Clone()
	next.Revision = doc.Revision + 1
	next.UpdatedAt = m.now()

	coll := m.collection(doc.Kind)
	res, err := coll.ReplaceOne(ctx, bson.D{
		{Key: "_id", Value: doc.ID},
		{Key: "revision", Value: doc.Revision},
	}, next)
	if err != nil {
		return fmt.Errorf("replace document: %w", err)
	}

	if res.MatchedCount == 0 {
		n, err := coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: doc.ID}})
		if err != nil {
			return fmt.Errorf("check document: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}

	doc.Revision = next.Revision
	doc.UpdatedAt = next.UpdatedAt
	return nil
}

// Delete physically removes documents.
func (m *Mongo) Delete(ctx context.Context, kind Kind, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := m.collection(kind).DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return res.DeletedCount, nil
}
