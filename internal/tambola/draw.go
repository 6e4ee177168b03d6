package tambola

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/ArowuTest/tambola-backend/internal/models"
)

// ErrExhausted is returned once all numbers of the pool are drawn
var ErrExhausted = errors.New("all numbers drawn")

// Drawer picks the next number of a game
type Drawer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewDrawer creates a Drawer seeded with seed
func NewDrawer(seed int64) *Drawer {
	return &Drawer{rnd: rand.New(rand.NewSource(seed))}
}

// NewRandomDrawer creates a Drawer seeded from the wall clock
func NewRandomDrawer() *Drawer {
	return NewDrawer(time.Now().UnixNano())
}

// Next returns a uniformly random number not present in drawn
func (d *Drawer) Next(drawn []int) (int, error) {
	set := NewDrawnSet(drawn)
	if set.Len() >= models.MaxNumber {
		return 0, ErrExhausted
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		n := d.rnd.Intn(models.MaxNumber) + 1
		if !set.Has(n) {
			return n, nil
		}
	}
}

// ValidateManualNumber checks an admin supplied number against drawn
func ValidateManualNumber(n int, drawn []int) error {
	if n < 1 || n > models.MaxNumber {
		return OutOfRange(n)
	}
	if NewDrawnSet(drawn).Has(n) {
		return DuplicateNumber(n)
	}
	return nil
}
