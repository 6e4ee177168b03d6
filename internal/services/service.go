package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/tambola-backend/internal/models"
)

// GameSessionService defines the live game operations. Every operation on a
// game runs inside that game's critical section.
type GameSessionService interface {
	// GetGame returns the current record of a game and whether it is auto-playing
	GetGame(ctx context.Context, gameID primitive.ObjectID) (*GameSnapshot, error)

	// Start moves a WAITING game to LIVE and notifies its ticket holders
	Start(ctx context.Context, gameID primitive.ObjectID) error

	// StartAutoPlay (re)starts periodic draws and makes the game LIVE
	StartAutoPlay(ctx context.Context, gameID primitive.ObjectID) error

	// StopAutoPlay cancels periodic draws; safe when none are running
	StopAutoPlay(ctx context.Context, gameID primitive.ObjectID) error

	// Pause freezes draws without cancelling the auto-play timer
	Pause(ctx context.Context, gameID primitive.ObjectID) error

	// Resume moves a PAUSED game back to LIVE
	Resume(ctx context.Context, gameID primitive.ObjectID) error

	// End closes a LIVE or PAUSED game
	End(ctx context.Context, gameID primitive.ObjectID) error

	// ManualDraw calls an admin chosen number
	ManualDraw(ctx context.Context, gameID primitive.ObjectID, number int) (*DrawOutcome, error)

	// Shutdown cancels every auto-play timer owned by this service
	Shutdown()
}

// Broadcaster fans events out to the members of a game room or to individual users
type Broadcaster interface {
	BroadcastToRoom(gameID string, event models.Event)
	SendToUsers(userIDs []string, event models.Event)
}

// AutoPlayScheduler owns one periodic task per game
type AutoPlayScheduler interface {
	Start(gameID string, interval time.Duration, task func()) error
	Stop(gameID string) bool
	Active(gameID string) bool
}

// GameSnapshot is the read model returned to HTTP clients
type GameSnapshot struct {
	Game           *models.Game `json:"game"`
	AutoPlayActive bool         `json:"autoPlayActive"`
}

// DrawOutcome summarizes a committed draw
type DrawOutcome struct {
	Number      int                         `json:"number"`
	Drawn       []int                       `json:"drawnNumbers"`
	Winners     []models.WinnerAnnouncement `json:"winners"`
	Closed      bool                        `json:"closed"`
	CloseReason models.CloseReason          `json:"closeReason,omitempty"`
}
