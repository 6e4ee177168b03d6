package utils

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/tambola-backend/internal/models"
)

// TicketGenerator produces simplified Tambola tickets: five random columns
// per row, values inside the column range, unique and ascending per column.
type TicketGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTicketGenerator creates a generator with a fixed seed
func NewTicketGenerator(seed int64) *TicketGenerator {
	return &TicketGenerator{rng: rand.New(rand.NewSource(seed))}
}

// NewRandomTicketGenerator creates a generator seeded from the clock
func NewRandomTicketGenerator() *TicketGenerator {
	return NewTicketGenerator(time.Now().UnixNano())
}

// Grid generates one ticket grid
func (g *TicketGenerator) Grid() models.TicketGrid {
	g.mu.Lock()
	defer g.mu.Unlock()

	var cells [models.TicketRows][models.TicketColumns]int
	used := make([]map[int]bool, models.TicketColumns)
	for c := range used {
		used[c] = map[int]bool{}
	}

	for r := 0; r < models.TicketRows; r++ {
		cols := g.rng.Perm(models.TicketColumns)[:models.NumbersPerRow]
		for _, c := range cols {
			lo, hi := models.ColumnRange(c)
			n := lo + g.rng.Intn(hi-lo+1)
			for used[c][n] {
				n = lo + g.rng.Intn(hi-lo+1)
			}
			used[c][n] = true
			cells[r][c] = n
		}
	}

	// Columns read top to bottom in ascending order
	for c := 0; c < models.TicketColumns; c++ {
		var values []int
		for r := 0; r < models.TicketRows; r++ {
			if cells[r][c] != 0 {
				values = append(values, cells[r][c])
			}
		}
		sort.Ints(values)
		i := 0
		for r := 0; r < models.TicketRows; r++ {
			if cells[r][c] != 0 {
				cells[r][c] = values[i]
				i++
			}
		}
	}

	return models.NewGrid(cells)
}

// Tickets generates one ACTIVE ticket per holder, numbered from firstNumber
func (g *TicketGenerator) Tickets(gameID primitive.ObjectID, holders []string, firstNumber int) []*models.Ticket {
	now := time.Now().UTC()
	tickets := make([]*models.Ticket, 0, len(holders))
	for i, holder := range holders {
		tickets = append(tickets, &models.Ticket{
			GameID:       gameID,
			UserID:       holder,
			TicketNumber: firstNumber + i,
			Numbers:      g.Grid(),
			Status:       models.TicketStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return tickets
}
