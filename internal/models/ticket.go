package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ticket grid dimensions
const (
	TicketRows       = 3
	TicketColumns    = 9
	NumbersPerRow    = 5
	NumbersPerTicket = TicketRows * NumbersPerRow
)

// TicketStatus represents the booking state of a ticket
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "PENDING"
	TicketStatusActive   TicketStatus = "ACTIVE"
	TicketStatusRejected TicketStatus = "REJECTED"
)

// TicketGrid is a 3x9 grid where nil marks a blank cell
type TicketGrid [][]*int

// NewGrid builds a grid from literal values, 0 meaning blank
func NewGrid(cells [TicketRows][TicketColumns]int) TicketGrid {
	grid := make(TicketGrid, TicketRows)
	for r := range cells {
		grid[r] = make([]*int, TicketColumns)
		for c, v := range cells[r] {
			if v != 0 {
				n := v
				grid[r][c] = &n
			}
		}
	}
	return grid
}

// RowValues returns the non-blank values of row r, left to right
func (g TicketGrid) RowValues(r int) []int {
	if r < 0 || r >= len(g) {
		return nil
	}
	values := make([]int, 0, NumbersPerRow)
	for _, cell := range g[r] {
		if cell != nil {
			values = append(values, *cell)
		}
	}
	return values
}

// Values returns every non-blank value, row by row
func (g TicketGrid) Values() []int {
	values := make([]int, 0, NumbersPerTicket)
	for r := range g {
		values = append(values, g.RowValues(r)...)
	}
	return values
}

// ColumnRange returns the inclusive value range allowed in column c
func ColumnRange(c int) (int, int) {
	switch c {
	case 0:
		return 1, 9
	case TicketColumns - 1:
		return 80, 90
	default:
		return c * 10, c*10 + 9
	}
}

// Validate checks the shape and column conventions of the grid
func (g TicketGrid) Validate() bool {
	if len(g) != TicketRows {
		return false
	}
	seen := map[int]bool{}
	for _, row := range g {
		if len(row) != TicketColumns {
			return false
		}
		count := 0
		for c, cell := range row {
			if cell == nil {
				continue
			}
			lo, hi := ColumnRange(c)
			if *cell < lo || *cell > hi || seen[*cell] {
				return false
			}
			seen[*cell] = true
			count++
		}
		if count != NumbersPerRow {
			return false
		}
	}
	return true
}

// Ticket is one booked slot of a game
type Ticket struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	GameID       primitive.ObjectID `bson:"gameId" json:"gameId"`
	UserID       string             `bson:"userId" json:"userId"`
	TicketNumber int                `bson:"ticketNumber" json:"ticketNumber"`
	Numbers      TicketGrid         `bson:"numbers" json:"numbers"`
	Status       TicketStatus       `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
