package tambola

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ArowuTest/tambola-backend/internal/models"
)

// rows: 4 23 41 62 85 | 12 35 47 56 74 | 7 28 59 66 90
func sampleGrid() models.TicketGrid {
	return models.NewGrid([3][9]int{
		{4, 0, 23, 0, 41, 0, 62, 0, 85},
		{0, 12, 0, 35, 47, 56, 0, 74, 0},
		{7, 0, 28, 0, 0, 59, 66, 0, 90},
	})
}

func TestLine_TopLineLiteralRow(t *testing.T) {
	grid := models.NewGrid([3][9]int{
		{1, 0, 0, 22, 0, 0, 0, 0, 80},
		{},
		{},
	})

	assert.True(t, Matches(models.RuleTopLine, grid, NewDrawnSet([]int{1, 22, 80})))
	assert.False(t, Matches(models.RuleTopLine, grid, NewDrawnSet([]int{1, 22})))
}

func TestEarlyFive(t *testing.T) {
	grid := sampleGrid()

	// spread across rows on purpose
	assert.True(t, EarlyFive(grid, NewDrawnSet([]int{4, 12, 90, 47, 66})))
	assert.False(t, EarlyFive(grid, NewDrawnSet([]int{4, 12, 90, 47})))
	assert.False(t, EarlyFive(grid, NewDrawnSet([]int{1, 2, 3, 5, 6, 8})))
}

func TestLines(t *testing.T) {
	grid := sampleGrid()
	drawn := NewDrawnSet([]int{12, 35, 47, 56, 74, 4, 23})

	assert.False(t, Matches(models.RuleTopLine, grid, drawn))
	assert.True(t, Matches(models.RuleMiddleLine, grid, drawn))
	assert.False(t, Matches(models.RuleBottomLine, grid, drawn))
	assert.True(t, Matches(models.RuleBottomLine, grid, NewDrawnSet([]int{7, 28, 59, 66, 90})))
}

func TestFullHouse(t *testing.T) {
	grid := sampleGrid()
	all := grid.Values()

	assert.True(t, FullHouse(grid, NewDrawnSet(all)))
	assert.False(t, FullHouse(grid, NewDrawnSet(all[:14])))
}

func TestCorners(t *testing.T) {
	grid := sampleGrid()

	assert.True(t, Corners(grid, NewDrawnSet([]int{4, 85, 7, 90})))
	assert.False(t, Corners(grid, NewDrawnSet([]int{4, 85, 7})))
	assert.False(t, Corners(grid, NewDrawnSet([]int{4, 23, 41, 62, 85})))
}

func TestCorners_SingleCellRows(t *testing.T) {
	grid := models.NewGrid([3][9]int{
		{0, 0, 0, 33, 0, 0, 0, 0, 0},
		{},
		{0, 0, 0, 0, 0, 0, 0, 77, 0},
	})

	assert.True(t, Corners(grid, NewDrawnSet([]int{33, 77})))
	assert.False(t, Corners(grid, NewDrawnSet([]int{33})))
}

func TestMatches_EmptyAndUnknown(t *testing.T) {
	empty := models.NewGrid([3][9]int{})
	drawn := NewDrawnSet([]int{1, 2, 3, 4, 5})

	for _, rule := range models.RuleTypes {
		assert.False(t, Matches(rule, empty, drawn), string(rule))
	}
	assert.False(t, Matches(models.RuleType("DIAGONAL"), sampleGrid(), NewDrawnSet(sampleGrid().Values())))
}

func TestDrawnSet(t *testing.T) {
	s := NewDrawnSet([]int{0, 1, 1, 90, 91, -3})

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(1))
	assert.True(t, s.Has(90))
	assert.False(t, s.Has(91))
	assert.False(t, s.Has(0))
}
