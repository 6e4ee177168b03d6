package models

import "time"

// RuleType names a winning pattern
type RuleType string

const (
	RuleEarlyFive  RuleType = "EARLY_FIVE"
	RuleTopLine    RuleType = "TOP_LINE"
	RuleMiddleLine RuleType = "MIDDLE_LINE"
	RuleBottomLine RuleType = "BOTTOM_LINE"
	RuleFullHouse  RuleType = "FULL_HOUSE"
	RuleCorners    RuleType = "CORNERS"
)

// RuleTypes lists every supported pattern
var RuleTypes = []RuleType{RuleEarlyFive, RuleTopLine, RuleMiddleLine, RuleBottomLine, RuleFullHouse, RuleCorners}

// Valid reports whether t is a supported pattern
func (t RuleType) Valid() bool {
	for _, rt := range RuleTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// PrizeStatus represents whether a prize slot has been claimed
type PrizeStatus string

const (
	PrizeStatusOpen PrizeStatus = "OPEN"
	PrizeStatusWon  PrizeStatus = "WON"
)

// Prize is one awardable slot within a winning rule
type Prize struct {
	Name           string      `bson:"name" json:"name"`
	XPPoints       int         `bson:"xpPoints" json:"xpPoints"`
	Amount         float64     `bson:"amount,omitempty" json:"amount,omitempty"`
	Position       int         `bson:"position" json:"position"`
	RuleType       RuleType    `bson:"ruleType" json:"ruleType"`
	Status         PrizeStatus `bson:"status" json:"status"`
	Winner         string      `bson:"winner,omitempty" json:"winner,omitempty"`
	WinnerTicketID string      `bson:"winnerTicketId,omitempty" json:"winnerTicketId,omitempty"`
	WinnerName     string      `bson:"winnerName,omitempty" json:"winnerName,omitempty"`
	WinnerEmail    string      `bson:"winnerEmail,omitempty" json:"winnerEmail,omitempty"`
	WonAt          *time.Time  `bson:"wonAt,omitempty" json:"wonAt,omitempty"`
}

// WinningRule configures a pattern and its prize slots
type WinningRule struct {
	Type           RuleType `bson:"type" json:"type"`
	MaxWinners     int      `bson:"maxWinners" json:"maxWinners"`
	CurrentWinners int      `bson:"currentWinners" json:"currentWinners"`
	IsCompleted    bool     `bson:"isCompleted" json:"isCompleted"`
	Prizes         []Prize  `bson:"prizes" json:"prizes"`
}

// HasWinningTicket reports whether ticketID already holds a prize of this rule
func (r *WinningRule) HasWinningTicket(ticketID string) bool {
	for _, p := range r.Prizes {
		if p.Status == PrizeStatusWon && p.WinnerTicketID == ticketID {
			return true
		}
	}
	return false
}

// IsOpen reports whether the slot can still be claimed; a missing status counts as OPEN
func (p *Prize) IsOpen() bool {
	return p.Status != PrizeStatusWon
}

// FirstOpenPrize returns the index of the lowest-position open prize, or -1
func (r *WinningRule) FirstOpenPrize() int {
	idx := -1
	for i := range r.Prizes {
		p := &r.Prizes[i]
		if !p.IsOpen() {
			continue
		}
		if idx < 0 || p.Position < r.Prizes[idx].Position {
			idx = i
		}
	}
	return idx
}

// CloneRules deep copies a rule set
func CloneRules(rules []WinningRule) []WinningRule {
	if rules == nil {
		return nil
	}
	out := make([]WinningRule, len(rules))
	for i, r := range rules {
		out[i] = r
		out[i].Prizes = clonePrizes(r.Prizes)
	}
	return out
}

func clonePrizes(prizes []Prize) []Prize {
	if prizes == nil {
		return nil
	}
	out := make([]Prize, len(prizes))
	for i, p := range prizes {
		out[i] = p
		if p.WonAt != nil {
			t := *p.WonAt
			out[i].WonAt = &t
		}
	}
	return out
}
