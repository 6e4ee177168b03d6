package tambola

import (
	"sort"
	"time"

	"github.com/ArowuTest/tambola-backend/internal/models"
)

// Result is the outcome of one evaluation pass
type Result struct {
	// Rules is a deep copy of the input with newly claimed prizes applied
	Rules         []models.WinningRule
	Announcements []models.WinnerAnnouncement
	// NewWinners is the number of prize slots claimed by this pass
	NewWinners int
	// Inconsistencies counts matching tickets that found no open prize in an incomplete rule
	Inconsistencies int
}

// Evaluate scans active tickets against every incomplete rule using the full drawn set.
// Rules are visited in configured order and tickets by ascending ticket number, so the
// same inputs always produce the same assignments. Claimed prizes are never reassigned.
func Evaluate(tickets []*models.Ticket, rules []models.WinningRule, drawn []int, wonAt time.Time) Result {
	res := Result{
		Rules:         models.CloneRules(rules),
		Announcements: []models.WinnerAnnouncement{},
	}
	set := NewDrawnSet(drawn)
	ordered := SortTickets(tickets)

	for ri := range res.Rules {
		rule := &res.Rules[ri]
		if rule.IsCompleted {
			continue
		}
		for _, ticket := range ordered {
			if ticket.Status != models.TicketStatusActive {
				continue
			}
			ticketID := ticket.ID.Hex()
			if rule.HasWinningTicket(ticketID) {
				continue
			}
			if !Matches(rule.Type, ticket.Numbers, set) {
				continue
			}
			pi := rule.FirstOpenPrize()
			if pi < 0 {
				res.Inconsistencies++
				continue
			}

			at := wonAt
			prize := &rule.Prizes[pi]
			prize.Status = models.PrizeStatusWon
			prize.Winner = ticket.UserID
			prize.WinnerTicketID = ticketID
			prize.WonAt = &at
			if prize.RuleType == "" {
				prize.RuleType = rule.Type
			}
			rule.CurrentWinners++
			if rule.CurrentWinners >= rule.MaxWinners {
				rule.IsCompleted = true
			}
			res.NewWinners++
			res.Announcements = append(res.Announcements, models.WinnerAnnouncement{
				WinnerID:     ticket.UserID,
				TicketID:     ticketID,
				TicketNumber: ticket.TicketNumber,
				PrizeName:    prize.Name,
				PrizeAmount:  prize.Amount,
				XPPoints:     prize.XPPoints,
				RuleType:     rule.Type,
				RuleIndex:    ri,
				PrizeIndex:   pi,
			})
			if rule.IsCompleted {
				break
			}
		}
	}
	return res
}

// SortTickets returns tickets ordered by ticket number, then id
func SortTickets(tickets []*models.Ticket) []*models.Ticket {
	ordered := make([]*models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t != nil {
			ordered = append(ordered, t)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].TicketNumber != ordered[j].TicketNumber {
			return ordered[i].TicketNumber < ordered[j].TicketNumber
		}
		return ordered[i].ID.Hex() < ordered[j].ID.Hex()
	})
	return ordered
}

// AllRulesCompleted reports whether at least one rule exists and every rule is completed
func AllRulesCompleted(rules []models.WinningRule) bool {
	if len(rules) == 0 {
		return false
	}
	for _, r := range rules {
		if !r.IsCompleted {
			return false
		}
	}
	return true
}

// AutoCloseReason decides whether the auto-close policy ends the game.
// Completing every rule takes precedence over the winner limit.
func AutoCloseReason(rules []models.WinningRule, policy models.AutoClose) (models.CloseReason, bool) {
	if !policy.Enabled {
		return "", false
	}
	if AllRulesCompleted(rules) {
		return models.CloseReasonAllPrizesWon, true
	}
	if policy.AfterWinners > 0 && policy.CurrentTotalWinners >= policy.AfterWinners {
		return models.CloseReasonWinnerLimitReached, true
	}
	return "", false
}
