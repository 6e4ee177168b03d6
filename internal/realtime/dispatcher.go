package realtime

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/services"
	"github.com/ArowuTest/tambola-backend/internal/tambola"
)

// GameController is the subset of the session service driven by socket commands
type GameController interface {
	Start(ctx context.Context, gameID primitive.ObjectID) error
	StartAutoPlay(ctx context.Context, gameID primitive.ObjectID) error
	StopAutoPlay(ctx context.Context, gameID primitive.ObjectID) error
	Pause(ctx context.Context, gameID primitive.ObjectID) error
	Resume(ctx context.Context, gameID primitive.ObjectID) error
	End(ctx context.Context, gameID primitive.ObjectID) error
	ManualDraw(ctx context.Context, gameID primitive.ObjectID, number int) (*services.DrawOutcome, error)
}

// Dispatcher routes decoded commands to the hub or the game controller
type Dispatcher struct {
	hub    *Hub
	games  GameController
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(hub *Hub, games GameController, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, games: games, logger: logger}
}

// Dispatch executes cmd on behalf of c. Returned errors are meant for c only.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, cmd *Command) error {
	switch cmd.Event {
	case CmdJoinGame:
		gameID, err := ParseGameRef(cmd.Data)
		if err != nil {
			return err
		}
		room := gameID.Hex()
		d.hub.Join(c, room)
		joined, _ := d.hub.encode(models.Event{
			Event: models.EventPlayerJoined,
			Data:  models.PlayerJoined{UserID: c.identity.UserID, Name: c.identity.Name},
		})
		d.hub.DeliverToRoom(room, joined, c)
		return nil

	case CmdLeaveGame:
		gameID, err := ParseGameRef(cmd.Data)
		if err != nil {
			return err
		}
		d.hub.Leave(c, gameID.Hex())
		return nil

	case CmdAdminCallNumber:
		if !c.identity.IsAdmin {
			return tambola.Forbidden("Admin privileges required")
		}
		gameID, number, err := ParseCallNumber(cmd.Data)
		if err != nil {
			return err
		}
		_, err = d.games.ManualDraw(ctx, gameID, number)
		return err

	case CmdStartGame, CmdStartAutoPlay, CmdStopAutoPlay, CmdPauseGame, CmdResumeGame, CmdEndGame:
		if !c.identity.IsAdmin {
			return tambola.Forbidden("Admin privileges required")
		}
		gameID, err := ParseGameRef(cmd.Data)
		if err != nil {
			return err
		}
		d.logger.Info("admin command", zap.String("event", cmd.Event), zap.String("game_id", gameID.Hex()), zap.String("user_id", c.identity.UserID))
		return d.adminCommand(ctx, cmd.Event, gameID)
	}
	return tambola.InvalidPayload("unknown event %q", cmd.Event)
}

func (d *Dispatcher) adminCommand(ctx context.Context, event string, gameID primitive.ObjectID) error {
	switch event {
	case CmdStartGame:
		return d.games.Start(ctx, gameID)
	case CmdStartAutoPlay:
		return d.games.StartAutoPlay(ctx, gameID)
	case CmdStopAutoPlay:
		return d.games.StopAutoPlay(ctx, gameID)
	case CmdPauseGame:
		return d.games.Pause(ctx, gameID)
	case CmdResumeGame:
		return d.games.Resume(ctx, gameID)
	default:
		return d.games.End(ctx, gameID)
	}
}
