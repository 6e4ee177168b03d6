package utils

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/repositories"
)

// ImportResult summarizes a ticket import
type ImportResult struct {
	TotalRows   int      `json:"totalRows"`
	Imported    int      `json:"imported"`
	GameTickets int64    `json:"gameTickets"` // after the import
	Errors      []string `json:"errors"`
}

// TicketImporter loads pre-generated tickets from CSV.
//
// Expected columns (case-insensitive): "Ticket Number", "User ID", "Numbers"
// and optionally "Status". Numbers holds the 27 cells of the grid in row-major
// order separated by spaces or semicolons, with 0 marking a blank cell.
type TicketImporter struct {
	tickets repositories.TicketRepository
}

// NewTicketImporter creates a new TicketImporter
func NewTicketImporter(tickets repositories.TicketRepository) *TicketImporter {
	return &TicketImporter{tickets: tickets}
}

// Import reads r and stores every valid row as a ticket of gameID
func (i *TicketImporter) Import(ctx context.Context, gameID primitive.ObjectID, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	numberIdx := findColumnIndex(header, []string{"Ticket Number", "TicketNumber", "Number"})
	userIdx := findColumnIndex(header, []string{"User ID", "UserID", "User"})
	gridIdx := findColumnIndex(header, []string{"Numbers", "Grid", "Cells"})
	statusIdx := findColumnIndex(header, []string{"Status"})
	if numberIdx == -1 || userIdx == -1 || gridIdx == -1 {
		return nil, errors.New("CSV must contain Ticket Number, User ID and Numbers columns")
	}

	result := &ImportResult{Errors: []string{}}
	var batch []*models.Ticket
	now := time.Now().UTC()

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		result.TotalRows++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", result.TotalRows, err))
			continue
		}

		ticketNumber, err := strconv.Atoi(strings.TrimSpace(row[numberIdx]))
		if err != nil || ticketNumber <= 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: invalid ticket number %q", result.TotalRows, row[numberIdx]))
			continue
		}

		userID := strings.TrimSpace(row[userIdx])
		if userID == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: missing user id", result.TotalRows))
			continue
		}

		grid, err := ParseGrid(row[gridIdx])
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", result.TotalRows, err))
			continue
		}

		status := models.TicketStatusActive
		if statusIdx != -1 && strings.TrimSpace(row[statusIdx]) != "" {
			status = models.TicketStatus(strings.ToUpper(strings.TrimSpace(row[statusIdx])))
			switch status {
			case models.TicketStatusActive, models.TicketStatusPending, models.TicketStatusRejected:
			default:
				result.Errors = append(result.Errors, fmt.Sprintf("Row %d: unknown status %q", result.TotalRows, row[statusIdx]))
				continue
			}
		}

		batch = append(batch, &models.Ticket{
			GameID:       gameID,
			UserID:       userID,
			TicketNumber: ticketNumber,
			Numbers:      grid,
			Status:       status,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if len(batch) > 0 {
		if err := i.tickets.CreateMany(ctx, batch); err != nil {
			return result, fmt.Errorf("failed to store tickets: %w", err)
		}
	}
	result.Imported = len(batch)

	total, err := i.tickets.CountByGame(ctx, gameID)
	if err != nil {
		return result, fmt.Errorf("failed to count tickets: %w", err)
	}
	result.GameTickets = total
	return result, nil
}

// ParseGrid parses 27 row-major cells, 0 meaning blank
func ParseGrid(value string) (models.TicketGrid, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ';' || r == '\t' || r == '|'
	})
	if len(fields) != models.TicketRows*models.TicketColumns {
		return nil, fmt.Errorf("expected %d cells, got %d", models.TicketRows*models.TicketColumns, len(fields))
	}

	var cells [models.TicketRows][models.TicketColumns]int
	for idx, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid cell %q", f)
		}
		cells[idx/models.TicketColumns][idx%models.TicketColumns] = n
	}

	grid := models.NewGrid(cells)
	if !grid.Validate() {
		return nil, errors.New("grid violates ticket layout")
	}
	return grid, nil
}

// findColumnIndex finds the index of a column by possible names
func findColumnIndex(header []string, possibleNames []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, name := range possibleNames {
			if strings.ToLower(name) == h {
				return i
			}
		}
	}
	return -1
}
