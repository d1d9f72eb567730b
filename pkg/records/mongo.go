package records

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/dagplanner/pkg/dag"
)

// MongoConfig selects the MongoDB deployment and collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps records in a MongoDB collection keyed by record id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to cfg.URI and ensures the listing index exists.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "dagplanner"
	}
	if cfg.Collection == "" {
		cfg.Collection = "records"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("records: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("records: ping mongo: %w", err)
	}
	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "layer_type", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("records: create index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

// Save upserts r.
func (s *MongoStore) Save(ctx context.Context, r *Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	r.FileName = FileName(r.LayerType, r.ID)
	if raw, err := bson.Marshal(r); err == nil {
		r.SizeBytes = int64(len(raw))
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, options.Replace().SetUpsert(true))
	return err
}

// List returns the records of one layer, newest first.
func (s *MongoStore) List(ctx context.Context, layer dag.Layer) ([]Record, error) {
	return s.find(ctx, bson.M{"layer_type": string(layer)})
}

// ListAll returns every record grouped by layer.
func (s *MongoStore) ListAll(ctx context.Context) (map[dag.Layer][]Record, error) {
	recs, err := s.find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	return group(recs), nil
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the record with id.
func (s *MongoStore) Get(ctx context.Context, id string) (*Record, error) {
	var r Record
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes the record with id.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)
