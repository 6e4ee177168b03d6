package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/repositories"
)

// Compile-time check to ensure TicketRepository implements the interface
var _ repositories.TicketRepository = (*TicketRepository)(nil)

// TicketRepository handles MongoDB operations for tickets
type TicketRepository struct {
	collection *mongo.Collection
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db *mongo.Database) *TicketRepository {
	return &TicketRepository{
		collection: db.Collection("tickets"),
	}
}

// CreateMany inserts tickets in one batch
func (r *TicketRepository) CreateMany(ctx context.Context, tickets []*models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, len(tickets))
	for i, t := range tickets {
		if t.ID.IsZero() {
			t.ID = primitive.NewObjectID()
		}
		if t.Status == "" {
			t.Status = models.TicketStatusPending
		}
		t.CreatedAt = now
		t.UpdatedAt = now
		docs[i] = t
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}
	return nil
}

// FindActiveByGame returns the ACTIVE tickets of a game ordered by ticket number
func (r *TicketRepository) FindActiveByGame(ctx context.Context, gameID primitive.ObjectID) ([]*models.Ticket, error) {
	filter := bson.M{"gameId": gameID, "status": models.TicketStatusActive}
	opts := options.Find().SetSort(bson.D{{Key: "ticketNumber", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tickets []*models.Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	return tickets, nil
}

// FindActiveHolderIDs returns the distinct users holding an ACTIVE ticket
func (r *TicketRepository) FindActiveHolderIDs(ctx context.Context, gameID primitive.ObjectID) ([]string, error) {
	filter := bson.M{"gameId": gameID, "status": models.TicketStatusActive}
	values, err := r.collection.Distinct(ctx, "userId", filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// CountByGame counts every ticket of a game regardless of status
func (r *TicketRepository) CountByGame(ctx context.Context, gameID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"gameId": gameID})
}

// EnsureIndexes creates the unique ticket number index and the lookup indexes
func (r *TicketRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "gameId", Value: 1}, {Key: "ticketNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "gameId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	return err
}
