package models

// Outbound event names
const (
	EventNumberCalled      = "number-called"
	EventGameStatusChanged = "game-status-changed"
	EventAutoPlayStarted   = "auto-play-started"
	EventAutoPlayStopped   = "auto-play-stopped"
	EventWinnerDetected    = "winner-detected"
	EventGameClosed        = "game-closed"
	EventPlayerJoined      = "player-joined"
	EventGameStarted       = "game-started"
	EventGameNotification  = "game-notification"
	EventError             = "error"
)

// Event is the envelope of every message pushed to clients
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NumberCalled announces a drawn number together with the full sequence
type NumberCalled struct {
	Number       int   `json:"number"`
	DrawnNumbers []int `json:"drawnNumbers"`
	Timestamp    int64 `json:"timestamp"`
	IsManual     bool  `json:"isManual"`
}

// GameStatusChanged announces a state machine transition
type GameStatusChanged struct {
	GameID string     `json:"gameId,omitempty"`
	Status GameStatus `json:"status"`
}

// AutoPlay is the payload of auto-play-started and auto-play-stopped
type AutoPlay struct {
	GameID string `json:"gameId"`
}

// WinnerAnnouncement is produced once per prize slot claimed by a draw
type WinnerAnnouncement struct {
	WinnerName   string   `json:"winnerName"`
	WinnerEmail  string   `json:"winnerEmail"`
	WinnerID     string   `json:"winnerId"`
	TicketID     string   `json:"ticketId"`
	TicketNumber int      `json:"ticketNumber"`
	PrizeName    string   `json:"prizeName"`
	PrizeAmount  float64  `json:"prizeAmount"`
	XPPoints     int      `json:"xpPoints"`
	RuleType     RuleType `json:"ruleType"`

	RuleIndex  int `json:"-"`
	PrizeIndex int `json:"-"`
}

// GameClosed announces the terminal transition
type GameClosed struct {
	GameID       string      `json:"gameId,omitempty"`
	Reason       CloseReason `json:"reason"`
	TotalWinners *int        `json:"totalWinners,omitempty"`
	TotalNumbers *int        `json:"totalNumbers,omitempty"`
}

// PlayerJoined is sent to a room when a new member joins
type PlayerJoined struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// GameStarted is sent to the room when a game goes live
type GameStarted struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

// GameNotification is sent to individual ticket holders
type GameNotification struct {
	Type          string   `json:"type"`
	GameID        string   `json:"gameId"`
	Message       string   `json:"message"`
	TicketHolders []string `json:"ticketHolders,omitempty"`
}

// ErrorMessage is sent only to the client whose command failed
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
