package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/pkg/encoding"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the record store: users, registration forms and payments
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// NewMongoStore connects and pings the deployment before returning
func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", database)
	return &MongoStore{client: client, db: client.Database(database), logger: logger}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) FindUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, s.db.Collection(models.CollectionUsers), bson.M{"_id": id})
}

func (s *MongoStore) FindForm(ctx context.Context, id primitive.ObjectID) (*models.Form, error) {
	return findOne[models.Form](ctx, s.db.Collection(models.CollectionForms), bson.M{"_id": id})
}

func (s *MongoStore) FindPayment(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	return findOne[models.Payment](ctx, s.db.Collection(models.CollectionPayments), bson.M{"_id": id})
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	return findAll[models.User](ctx, s.db.Collection(models.CollectionUsers), bson.M{}, byCreation())
}

func (s *MongoStore) ListForms(ctx context.Context) ([]models.Form, error) {
	return findAll[models.Form](ctx, s.db.Collection(models.CollectionForms), bson.M{}, byCreation())
}

func (s *MongoStore) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return findAll[models.Payment](ctx, s.db.Collection(models.CollectionPayments), bson.M{}, byCreation())
}

func (s *MongoStore) FormsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Form, error) {
	return findAll[models.Form](ctx, s.db.Collection(models.CollectionForms), bson.M{"ownerId": ownerID}, byCreation())
}

// VerifiedPaymentForOwner returns the most recent verified payment. One per
// owner is expected but not enforced, hence the sort
func (s *MongoStore) VerifiedPaymentForOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.Payment, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return findOne[models.Payment](ctx, s.db.Collection(models.CollectionPayments),
		bson.M{"ownerId": ownerID, "status": models.PaymentStatusVerified}, opts)
}

// UpdateByID applies a $set and reports whether a document matched
func (s *MongoStore) UpdateByID(ctx context.Context, collection string, id primitive.ObjectID, set map[string]any) (bool, error) {
	if !models.KnownCollection(collection) {
		return false, fmt.Errorf("%w: %s", models.ErrUnsupportedCollection, collection)
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": withUpdatedAt(set)})
	if err != nil {
		return false, fmt.Errorf("update %s %s: %w", collection, id.Hex(), err)
	}
	return res.MatchedCount > 0, nil
}

// UpdateUserByEmail matches case-insensitively: stored emails predate the
// normalization rule and may still carry mixed case
func (s *MongoStore) UpdateUserByEmail(ctx context.Context, email string, set map[string]any) (bool, error) {
	normalized := encoding.NormalizeEmail(email)
	if normalized == "" {
		return false, nil
	}
	opts := options.Update().SetCollation(&options.Collation{Locale: "en", Strength: 2})
	res, err := s.db.Collection(models.CollectionUsers).UpdateOne(ctx,
		bson.M{"email": normalized}, bson.M{"$set": withUpdatedAt(set)}, opts)
	if err != nil {
		return false, fmt.Errorf("update user by email: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	err := coll.FindOne(ctx, filter, opts...).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", coll.Name(), err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

func byCreation() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
}

func withUpdatedAt(set map[string]any) bson.M {
	out := make(bson.M, len(set)+1)
	for k, v := range set {
		out[k] = v
	}
	if _, ok := out["updatedAt"]; !ok {
		out["updatedAt"] = time.Now().UTC()
	}
	return out
}
