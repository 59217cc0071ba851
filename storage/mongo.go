package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	runCollection   = "run-metadata"
	videoCollection = "videos"

	// runMetadataID is the fixed key of the singleton run-state document.
	runMetadataID = "fetch_metadata"
)

// MongoStore implements RunStore and VideoStore on MongoDB.
type MongoStore struct {
	client *mongo.Client
	runs   *mongo.Collection
	videos *mongo.Collection
}

// Connect dials the MongoDB deployment at uri and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "ping mongodb")
	}
	return client, nil
}

// NewMongoStore creates a store over the given database.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client: client,
		runs:   db.Collection(runCollection),
		videos: db.Collection(videoCollection),
	}
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// GetRunMetadata loads the singleton run-state document.
func (s *MongoStore) GetRunMetadata(ctx context.Context) (*RunMetadata, error) {
	var m RunMetadata
	err := s.runs.FindOne(ctx, bson.M{"_id": runMetadataID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get run metadata")
	}
	return &m, nil
}

// SaveRunMetadata upserts the singleton run-state document.
func (s *MongoStore) SaveRunMetadata(ctx context.Context, m *RunMetadata) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.runs.ReplaceOne(ctx, bson.M{"_id": runMetadataID}, m, opts)
	return errors.Wrap(err, "save run metadata")
}

// ExistingIDs reports which of the given video IDs already have documents.
func (s *MongoStore) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.videos.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find existing videos")
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode video id")
		}
		existing[doc.ID] = struct{}{}
	}
	return existing, errors.Wrap(cur.Err(), "iterate existing videos")
}

// CommitBatch merge-upserts one batch of documents in a single bulk write.
// Each document updates only the fields ingestion owns; userTags is written
// only for first-sighting records, so manual edits survive re-ingestion.
func (s *MongoStore) CommitBatch(ctx context.Context, docs []VideoDoc) error {
	if len(docs) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		fields, err := recordFields(doc)
		if err != nil {
			return err
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc.Record.VideoID}).
			SetUpdate(bson.M{"$set": fields}).
			SetUpsert(true))
	}

	_, err := s.videos.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return errors.Wrap(err, "bulk write videos")
}

// recordFields flattens a queued record into the $set document for a
// merge-upsert, dropping the immutable key and deciding userTags presence.
func recordFields(doc VideoDoc) (bson.M, error) {
	raw, err := bson.Marshal(doc.Record)
	if err != nil {
		return nil, errors.Wrap(err, "marshal video record")
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "unmarshal video record")
	}

	delete(fields, "_id")
	delete(fields, "userTags")
	if doc.InitUserTags {
		fields["userTags"] = bson.A{}
	}
	return fields, nil
}
