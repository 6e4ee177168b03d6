package tambola

import "github.com/ArowuTest/tambola-backend/internal/models"

// DrawnSet is a membership table indexed by number
type DrawnSet [models.MaxNumber + 1]bool

// NewDrawnSet builds a set from a drawn sequence, ignoring out of range values
func NewDrawnSet(drawn []int) *DrawnSet {
	var s DrawnSet
	for _, n := range drawn {
		if n >= 1 && n <= models.MaxNumber {
			s[n] = true
		}
	}
	return &s
}

// Has reports whether n was drawn
func (s *DrawnSet) Has(n int) bool {
	return n >= 1 && n <= models.MaxNumber && s[n]
}

// Len returns the number of distinct drawn values
func (s *DrawnSet) Len() int {
	count := 0
	for _, ok := range s {
		if ok {
			count++
		}
	}
	return count
}

// Matches evaluates rule against a ticket grid
func Matches(rule models.RuleType, grid models.TicketGrid, drawn *DrawnSet) bool {
	switch rule {
	case models.RuleEarlyFive:
		return EarlyFive(grid, drawn)
	case models.RuleTopLine:
		return Line(grid, 0, drawn)
	case models.RuleMiddleLine:
		return Line(grid, 1, drawn)
	case models.RuleBottomLine:
		return Line(grid, 2, drawn)
	case models.RuleFullHouse:
		return FullHouse(grid, drawn)
	case models.RuleCorners:
		return Corners(grid, drawn)
	}
	return false
}

// EarlyFive is true once any five numbers of the ticket are drawn
func EarlyFive(grid models.TicketGrid, drawn *DrawnSet) bool {
	marked := 0
	for _, n := range grid.Values() {
		if drawn.Has(n) {
			marked++
			if marked >= 5 {
				return true
			}
		}
	}
	return false
}

// Line is true when every number of row r is drawn
func Line(grid models.TicketGrid, r int, drawn *DrawnSet) bool {
	return allDrawn(grid.RowValues(r), drawn)
}

// FullHouse is true when every number on the ticket is drawn
func FullHouse(grid models.TicketGrid, drawn *DrawnSet) bool {
	return allDrawn(grid.Values(), drawn)
}

// Corners checks the outermost numbers of the top and bottom rows
func Corners(grid models.TicketGrid, drawn *DrawnSet) bool {
	top := grid.RowValues(0)
	bottom := grid.RowValues(len(grid) - 1)
	if len(grid) < models.TicketRows || len(top) == 0 || len(bottom) == 0 {
		return false
	}
	corners := []int{top[0], top[len(top)-1], bottom[0], bottom[len(bottom)-1]}
	return allDrawn(corners, drawn)
}

// an empty cell set never matches
func allDrawn(values []int, drawn *DrawnSet) bool {
	if len(values) == 0 {
		return false
	}
	for _, n := range values {
		if !drawn.Has(n) {
			return false
		}
	}
	return true
}
