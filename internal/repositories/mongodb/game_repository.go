package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/repositories"
)

// Compile-time check to ensure GameRepository implements the interface
var _ repositories.GameRepository = (*GameRepository)(nil)

// GameRepository handles MongoDB operations for games
type GameRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewGameRepository creates a new GameRepository
func NewGameRepository(db *mongo.Database) *GameRepository {
	return &GameRepository{
		collection: db.Collection("games"),
		now:        time.Now,
	}
}

// Create inserts a new game in WAITING state
func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	now := r.now()
	if game.ID.IsZero() {
		game.ID = primitive.NewObjectID()
	}
	if game.Status == "" {
		game.Status = models.GameStatusWaiting
	}
	if game.DrawnNumbers == nil {
		game.DrawnNumbers = []int{}
	}
	if game.WinningRules == nil {
		game.WinningRules = []models.WinningRule{}
	}
	game.Prizes = game.FlattenPrizes()
	game.Version = 1
	game.CreatedAt = now
	game.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, game)
	return err
}

// FindByID finds a game by ID
func (r *GameRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Game, error) {
	var game models.Game
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&game)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	if game.DrawnNumbers == nil {
		game.DrawnNumbers = []int{}
	}
	return &game, nil
}

// FindByStatus finds games in the given status, newest first
func (r *GameRepository) FindByStatus(ctx context.Context, status models.GameStatus) ([]*models.Game, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := r.collection.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var games []*models.Game
	if err := cursor.All(ctx, &games); err != nil {
		return nil, err
	}
	if games == nil {
		games = []*models.Game{}
	}
	return games, nil
}

// Save replaces the whole document if nobody else wrote it since it was loaded
func (r *GameRepository) Save(ctx context.Context, game *models.Game) error {
	expected := game.Version
	doc := *game
	doc.Version = expected + 1
	doc.UpdatedAt = r.now()

	res, err := r.collection.ReplaceOne(ctx, versionFilter(game.ID, expected), &doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, game.ID)
	}
	game.Version = doc.Version
	game.UpdatedAt = doc.UpdatedAt
	return nil
}

// UpdateFields sets the given fields under the same version guard as Save
func (r *GameRepository) UpdateFields(ctx context.Context, game *models.Game, fields map[string]interface{}) error {
	now := r.now()
	set := bson.M{"updatedAt": now}
	for k, v := range fields {
		set[k] = v
	}
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}

	res, err := r.collection.UpdateOne(ctx, versionFilter(game.ID, game.Version), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrConflict(ctx, game.ID)
	}
	game.Version++
	game.UpdatedAt = now
	return nil
}

// EnsureIndexes creates the indexes queried by the engine
func (r *GameRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

// versionFilter matches id at the expected version. Games created by the
// web app carry no version field and decode as version 0.
func versionFilter(id primitive.ObjectID, expected int64) bson.M {
	if expected == 0 {
		return bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"version": 0},
				bson.M{"version": bson.M{"$exists": false}},
			},
		}
	}
	return bson.M{"_id": id, "version": expected}
}

func (r *GameRepository) missOrConflict(ctx context.Context, id primitive.ObjectID) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return repositories.ErrVersionConflict
}
