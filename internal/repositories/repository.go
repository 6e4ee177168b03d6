package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/tambola-backend/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned when a versioned write lost against a concurrent writer
	ErrVersionConflict = errors.New("version conflict")
)

// GameRepository defines the interface for game record operations.
// Save and UpdateFields are optimistic: they only apply when the stored version
// equals game.Version, and bump the version on success.
type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Game, error)
	FindByStatus(ctx context.Context, status models.GameStatus) ([]*models.Game, error)
	Save(ctx context.Context, game *models.Game) error
	UpdateFields(ctx context.Context, game *models.Game, fields map[string]interface{}) error
	EnsureIndexes(ctx context.Context) error
}

// TicketRepository defines the read side of tickets used by the engine plus bulk creation for seeding
type TicketRepository interface {
	CreateMany(ctx context.Context, tickets []*models.Ticket) error
	FindActiveByGame(ctx context.Context, gameID primitive.ObjectID) ([]*models.Ticket, error)
	FindActiveHolderIDs(ctx context.Context, gameID primitive.ObjectID) ([]string, error)
	CountByGame(ctx context.Context, gameID primitive.ObjectID) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

// UserRepository resolves player display names
type UserRepository interface {
	FindByClerkID(ctx context.Context, clerkID string) (*models.User, error)
	FindDisplayName(ctx context.Context, userID string) (models.DisplayName, error)
}
