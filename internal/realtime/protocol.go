package realtime

import (
	"bytes"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/tambola-backend/internal/tambola"
)

// Inbound command names
const (
	CmdJoinGame        = "join-game"
	CmdLeaveGame       = "leave-game"
	CmdStartGame       = "start-game"
	CmdStartAutoPlay   = "start-auto-play"
	CmdStopAutoPlay    = "stop-auto-play"
	CmdPauseGame       = "pause-game"
	CmdResumeGame      = "resume-game"
	CmdEndGame         = "end-game"
	CmdAdminCallNumber = "admin-call-number"
)

// Command is the envelope of every client message
type Command struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type gameRef struct {
	GameID string `json:"gameId"`
}

type callNumber struct {
	GameID string `json:"gameId"`
	Number *int   `json:"number"`
}

// DecodeCommand parses a raw client frame
func DecodeCommand(raw []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, tambola.InvalidPayload("malformed message")
	}
	if cmd.Event == "" {
		return nil, tambola.InvalidPayload("missing event name")
	}
	return &cmd, nil
}

// ParseGameRef accepts either a bare id string or {"gameId": id}
func ParseGameRef(data json.RawMessage) (primitive.ObjectID, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return primitive.NilObjectID, tambola.InvalidPayload("gameId is required")
	}
	var id string
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return primitive.NilObjectID, tambola.InvalidPayload("gameId must be a string")
		}
	} else {
		var ref gameRef
		if err := json.Unmarshal(trimmed, &ref); err != nil {
			return primitive.NilObjectID, tambola.InvalidPayload("malformed game reference")
		}
		id = ref.GameID
	}
	return parseGameID(id)
}

// ParseCallNumber decodes an admin-call-number payload
func ParseCallNumber(data json.RawMessage) (primitive.ObjectID, int, error) {
	var req callNumber
	if err := json.Unmarshal(data, &req); err != nil {
		return primitive.NilObjectID, 0, tambola.InvalidPayload("malformed call request")
	}
	id, err := parseGameID(req.GameID)
	if err != nil {
		return primitive.NilObjectID, 0, err
	}
	if req.Number == nil {
		return primitive.NilObjectID, 0, tambola.InvalidPayload("number is required")
	}
	return id, *req.Number, nil
}

func parseGameID(id string) (primitive.ObjectID, error) {
	if id == "" {
		return primitive.NilObjectID, tambola.InvalidPayload("gameId is required")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, tambola.InvalidPayload("invalid gameId %q", id)
	}
	return oid, nil
}
