package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	cartsCollection    = "carts"
	countersCollection = "counters"
	cartsCounterID     = "carts"
)

type mongoRepository struct {
	carts    *mongo.Collection
	counters *mongo.Collection
}

// nextID hands out sequential numeric ids from a counter document so that
// records keep the integer ids clients expect.
func (m *mongoRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": cartsCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate cart id: %w", err)
	}
	return counter.Seq, nil
}

func (m *mongoRepository) CreateCart(ctx context.Context, cart *domain.RemoteCart) error {
	id, err := m.nextID(ctx)
	if err != nil {
		return err
	}
	cart.ID = id

	if _, err := m.carts.InsertOne(ctx, cart); err != nil {
		return fmt.Errorf("failed to insert cart: %w", err)
	}
	return nil
}

func (m *mongoRepository) GetCartByID(ctx context.Context, id int64) (*domain.RemoteCart, error) {
	var cart domain.RemoteCart

	err := m.carts.FindOne(ctx, bson.M{"_id": id}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

func (m *mongoRepository) ListCartsByUserID(ctx context.Context, userID int64) ([]domain.RemoteCart, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := m.carts.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	defer cursor.Close(ctx)

	carts := make([]domain.RemoteCart, 0)
	if err := cursor.All(ctx, &carts); err != nil {
		return nil, fmt.Errorf("failed to decode carts: %w", err)
	}
	return carts, nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}

	_, err := m.carts.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *mongoRepository) Close(ctx context.Context) error {
	return m.carts.Database().Client().Disconnect(ctx)
}

// OpenMongoRepository returns a repository over db with its indexes in place.
func OpenMongoRepository(ctx context.Context, db *mongo.Database) (CartRecordRepository, error) {
	repo := &mongoRepository{
		carts:    db.Collection(cartsCollection),
		counters: db.Collection(countersCollection),
	}
	if err := repo.CreateIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}
