package tenant

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository provides persistence for site records. Lookup misses return
// (nil, nil); callers decide whether that is an error.
type Repository interface {
	Create(ctx context.Context, s *Site) error
	GetBySecret(ctx context.Context, secret string) (*Site, error)
	GetBySlug(ctx context.Context, slug string) (*Site, error)
	ListByOwner(ctx context.Context, ownerSub string) ([]*Site, error)
	UpdateSecret(ctx context.Context, slug, secret string) error
	SetDomains(ctx context.Context, slug string, domains []Domain) error
	Delete(ctx context.Context, slug string) error
}

// MongoRepository implements Repository using a Mongo collection.
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates the repository and ensures the unique indexes on
// slug and secret that back tenant resolution.
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	for _, key := range []string{"slug", "secret"} {
		idx := mongo.IndexModel{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
		col.Indexes().CreateOne(context.Background(), idx)
	}
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, s *Site) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.ID == "" {
		s.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) GetBySecret(ctx context.Context, secret string) (*Site, error) {
	return r.findOne(ctx, bson.M{"secret": secret})
}

func (r *MongoRepository) GetBySlug(ctx context.Context, slug string) (*Site, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*Site, error) {
	var s Site
	if err := r.col.FindOne(ctx, filter).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) ListByOwner(ctx context.Context, ownerSub string) ([]*Site, error) {
	cur, err := r.col.Find(ctx, bson.M{"ownerSub": ownerSub})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Site{}
	for cur.Next(ctx) {
		var s Site
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}

func (r *MongoRepository) UpdateSecret(ctx context.Context, slug, secret string) error {
	set := bson.M{"secret": secret, "updatedAt": time.Now().UTC()}
	res, err := r.col.UpdateOne(ctx, bson.M{"slug": slug}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) SetDomains(ctx context.Context, slug string, domains []Domain) error {
	set := bson.M{"domains": domains, "updatedAt": time.Now().UTC()}
	res, err := r.col.UpdateOne(ctx, bson.M{"slug": slug}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, slug string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"slug": slug})
	return err
}
