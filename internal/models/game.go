package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GameStatus represents the lifecycle state of a game
type GameStatus string

const (
	GameStatusWaiting GameStatus = "WAITING"
	GameStatusLive    GameStatus = "LIVE"
	GameStatusPaused  GameStatus = "PAUSED"
	GameStatusClosed  GameStatus = "CLOSED"
)

// MaxNumber is the highest number in the draw pool
const MaxNumber = 90

// CloseReason explains why a game was closed
type CloseReason string

const (
	CloseReasonAllNumbersDrawn    CloseReason = "all_numbers_drawn"
	CloseReasonAllPrizesWon       CloseReason = "all_prizes_won"
	CloseReasonWinnerLimitReached CloseReason = "winner_limit_reached"
	CloseReasonManualEnd          CloseReason = "manual_end"
)

// AutoClose holds the automatic closing policy of a game
type AutoClose struct {
	Enabled             bool `bson:"enabled" json:"enabled"`
	AfterWinners        int  `bson:"afterWinners" json:"afterWinners"`
	CurrentTotalWinners int  `bson:"currentTotalWinners" json:"currentTotalWinners"`
}

// DefaultAutoClose returns the policy applied to games created without one
func DefaultAutoClose() AutoClose {
	return AutoClose{Enabled: false, AfterWinners: 1, CurrentTotalWinners: 0}
}

// Game is the authoritative record of one game instance
type Game struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string             `bson:"name" json:"name"`
	Status       GameStatus         `bson:"status" json:"status"`
	TicketXPCost int                `bson:"ticketXpCost" json:"ticketXpCost"`
	TotalTickets int                `bson:"totalTickets" json:"totalTickets"`
	SoldTickets  int                `bson:"soldTickets" json:"soldTickets"`
	CreatedBy    string             `bson:"createdBy" json:"createdBy"`
	DrawnNumbers []int              `bson:"drawnNumbers" json:"drawnNumbers"`
	Prizes       []Prize            `bson:"prizes" json:"prizes"` // flattened copy of the rules' prizes
	WinningRules []WinningRule      `bson:"winningRules" json:"winningRules"`
	AutoClose    AutoClose          `bson:"autoClose" json:"autoClose"`
	CloseReason  CloseReason        `bson:"closeReason,omitempty" json:"closeReason,omitempty"`
	ClosedAt     *time.Time         `bson:"closedAt,omitempty" json:"closedAt,omitempty"`
	Version      int64              `bson:"version" json:"version"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsClosed reports whether the game reached its terminal state
func (g *Game) IsClosed() bool {
	return g.Status == GameStatusClosed
}

// IsDrawable reports whether numbers may be drawn in the current state
func (g *Game) IsDrawable() bool {
	return g.Status == GameStatusLive || g.Status == GameStatusPaused
}

// FlattenPrizes returns every rule's prizes in rule order
func (g *Game) FlattenPrizes() []Prize {
	prizes := []Prize{}
	for _, rule := range g.WinningRules {
		prizes = append(prizes, rule.Prizes...)
	}
	return prizes
}

// Clone returns a deep copy that can be mutated without touching g
func (g *Game) Clone() *Game {
	c := *g
	c.DrawnNumbers = append([]int(nil), g.DrawnNumbers...)
	if c.DrawnNumbers == nil {
		c.DrawnNumbers = []int{}
	}
	c.Prizes = clonePrizes(g.Prizes)
	c.WinningRules = CloneRules(g.WinningRules)
	if g.ClosedAt != nil {
		t := *g.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
