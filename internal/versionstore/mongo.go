package versionstore

import (
	"context"
	"errors"
	"fmt"

	"sop-assistant/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "sop_versions"

// MongoRepository stores one document per version.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection(CollectionName)}
}

// EnsureIndexes creates the lookup indexes used by commit and current reads.
// content_hash is deliberately not unique; see Store.Commit.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "content_hash", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "version_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create %s indexes: %w", CollectionName, err)
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Version, error) {
	var v models.Version
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *MongoRepository) FindByHash(ctx context.Context, hash string) (*models.Version, error) {
	return r.findOne(ctx, bson.M{"content_hash": hash}, options.FindOne().SetProjection(bson.M{"sections": 0}))
}

func (r *MongoRepository) Insert(ctx context.Context, v *models.Version) error {
	_, err := r.collection.InsertOne(ctx, v)
	return err
}

func (r *MongoRepository) Latest(ctx context.Context) (*models.Version, error) {
	return r.findOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *MongoRepository) Get(ctx context.Context, versionID string) (*models.Version, error) {
	return r.findOne(ctx, bson.M{"version_id": versionID})
}

func (r *MongoRepository) List(ctx context.Context, limit int) ([]models.Version, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var versions []models.Version
	if err := cursor.All(ctx, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}
