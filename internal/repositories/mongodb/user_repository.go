package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/repositories"
)

// Compile-time check to ensure UserRepository implements the interface
var _ repositories.UserRepository = (*UserRepository)(nil)

// UserRepository handles MongoDB operations for User
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

// FindByClerkID finds a user by its identity provider id
func (r *UserRepository) FindByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"clerkId": clerkID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindDisplayName resolves the announced name of a user. An unknown user
// yields the synthesized fallback name together with ErrNotFound.
func (r *UserRepository) FindDisplayName(ctx context.Context, userID string) (models.DisplayName, error) {
	user, err := r.FindByClerkID(ctx, userID)
	if err != nil {
		return models.DisplayNameOf(nil, userID), err
	}
	return models.DisplayNameOf(user, userID), nil
}
