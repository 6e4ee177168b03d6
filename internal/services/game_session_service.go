package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/ArowuTest/tambola-backend/internal/metrics"
	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/repositories"
	"github.com/ArowuTest/tambola-backend/internal/tambola"
)

const (
	gameStartedMessage      = "Game has started! Join now to play."
	ticketHolderMessage     = "A game you have tickets for has started!"
	notificationGameStarted = "GAME_STARTED"
)

// Compile-time check to ensure GameSessionServiceImpl implements GameSessionService
var _ GameSessionService = (*GameSessionServiceImpl)(nil)

// SessionConfig holds the tunables of the session controller
type SessionConfig struct {
	AutoPlayInterval time.Duration
	OperationTimeout time.Duration
}

// GameSessionServiceImpl is the per-game state machine driving draws
type GameSessionServiceImpl struct {
	games       repositories.GameRepository
	tickets     repositories.TicketRepository
	users       repositories.UserRepository
	broadcaster Broadcaster
	scheduler   AutoPlayScheduler
	drawer      *tambola.Drawer
	clock       clockwork.Clock
	logger      *zap.Logger
	cfg         SessionConfig

	sessions *sessionRegistry
	timerSeq atomic.Uint64
	names    sync.Map // userID -> models.DisplayName
}

// NewGameSessionService creates a new GameSessionServiceImpl
func NewGameSessionService(
	games repositories.GameRepository,
	tickets repositories.TicketRepository,
	users repositories.UserRepository,
	broadcaster Broadcaster,
	scheduler AutoPlayScheduler,
	drawer *tambola.Drawer,
	clock clockwork.Clock,
	logger *zap.Logger,
	cfg SessionConfig,
) *GameSessionServiceImpl {
	if cfg.AutoPlayInterval <= 0 {
		cfg.AutoPlayInterval = 3 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	return &GameSessionServiceImpl{
		games:       games,
		tickets:     tickets,
		users:       users,
		broadcaster: broadcaster,
		scheduler:   scheduler,
		drawer:      drawer,
		clock:       clock,
		logger:      logger,
		cfg:         cfg,
		sessions:    newSessionRegistry(),
	}
}

// GetGame returns the current record of a game
func (s *GameSessionServiceImpl) GetGame(ctx context.Context, gameID primitive.ObjectID) (*GameSnapshot, error) {
	game, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &GameSnapshot{Game: game, AutoPlayActive: s.scheduler.Active(gameID.Hex())}, nil
}

// Start moves a WAITING game to LIVE
func (s *GameSessionServiceImpl) Start(ctx context.Context, gameID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	sess := s.sessions.acquire(gameID)
	defer s.sessions.release(sess)

	game, err := s.load(ctx, gameID)
	if err != nil {
		return err
	}
	if game.Status != models.GameStatusWaiting {
		return tambola.InvalidTransition("Game cannot be started while %s", game.Status)
	}
	if err := s.setStatus(ctx, game, models.GameStatusLive); err != nil {
		return err
	}

	holders, err := s.tickets.FindActiveHolderIDs(ctx, gameID)
	if err != nil {
		s.logger.Warn("failed to load ticket holders", zap.String("game_id", gameID.Hex()), zap.Error(err))
		holders = []string{}
	}

	room := gameID.Hex()
	s.broadcaster.BroadcastToRoom(room, models.Event{
		Event: models.EventGameStarted,
		Data:  models.GameStarted{GameID: room, Message: gameStartedMessage},
	})
	s.broadcaster.SendToUsers(holders, models.Event{
		Event: models.EventGameNotification,
		Data: models.GameNotification{
			Type:          notificationGameStarted,
			GameID:        room,
			Message:       ticketHolderMessage,
			TicketHolders: holders,
		},
	})
	s.broadcastStatus(game)
	s.logger.Info("game started", zap.String("game_id", room), zap.Int("ticket_holders", len(holders)))
	return nil
}

// StartAutoPlay (re)starts the timer of a game, making it LIVE
func (s *GameSessionServiceImpl) StartAutoPlay(ctx context.Context, gameID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	sess := s.sessions.acquire(gameID)
	defer s.sessions.release(sess)

	game, err := s.load(ctx, gameID)
	if err != nil {
		return err
	}
	if game.IsClosed() {
		return tambola.InvalidTransition("Game is closed")
	}
	if game.Status != models.GameStatusLive {
		if err := s.setStatus(ctx, game, models.GameStatusLive); err != nil {
			return err
		}
		s.broadcastStatus(game)
	}
	if err := s.startTimer(sess); err != nil {
		return err
	}

	room := gameID.Hex()
	s.broadcaster.BroadcastToRoom(room, models.Event{Event: models.EventAutoPlayStarted, Data: models.AutoPlay{GameID: room}})
	s.logger.Info("auto-play started", zap.String("game_id", room), zap.Duration("interval", s.cfg.AutoPlayInterval))
	return nil
}

// StopAutoPlay cancels the timer of a game
func (s *GameSessionServiceImpl) StopAutoPlay(ctx context.Context, gameID primitive.ObjectID) error {
	sess := s.sessions.acquire(gameID)
	defer s.sessions.release(sess)

	stopped := s.stopTimer(sess)
	room := gameID.Hex()
	s.broadcaster.BroadcastToRoom(room, models.Event{Event: models.EventAutoPlayStopped, Data: models.AutoPlay{GameID: room}})
	s.logger.Info("auto-play stopped", zap.String("game_id", room), zap.Bool("was_running", stopped))
	return nil
}

// Pause moves a LIVE game to PAUSED; a running timer keeps ticking as no-ops
func (s *GameSessionServiceImpl) Pause(ctx context.Context, gameID primitive.ObjectID) error {
	return s.transition(ctx, gameID, models.GameStatusLive, models.GameStatusPaused)
}

// Resume moves a PAUSED game back to LIVE
func (s *GameSessionServiceImpl) Resume(ctx context.Context, gameID primitive.ObjectID) error {
	return s.transition(ctx, gameID, models.GameStatusPaused, models.GameStatusLive)
}

// End closes a LIVE or PAUSED game
func (s *GameSessionServiceImpl) End(ctx context.Context, gameID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	sess := s.sessions.acquire(gameID)
	defer s.sessions.release(sess)

	game, err := s.load(ctx, gameID)
	if err != nil {
		return err
	}
	if !game.IsDrawable() {
		return tambola.InvalidTransition("Game cannot be ended while %s", game.Status)
	}
	if err := s.closeGame(ctx, sess, game, models.CloseReasonManualEnd); err != nil {
		return err
	}
	s.broadcastClosed(game, models.CloseReasonManualEnd)
	return nil
}

// ManualDraw calls number and restarts a running timer so the next automatic
// draw is a full interval away
func (s *GameSessionServiceImpl) ManualDraw(ctx context.Context, gameID primitive.ObjectID, number int) (*DrawOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	sess := s.sessions.acquire(gameID)
	defer s.sessions.release(sess)

	game, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.IsDrawable() {
		return nil, tambola.InvalidTransition("Game is not live")
	}
	if err := tambola.ValidateManualNumber(number, game.DrawnNumbers); err != nil {
		return nil, err
	}

	outcome, err := s.draw(ctx, sess, game, number, true)
	if err != nil {
		return nil, err
	}
	if !outcome.Closed && sess.autoPlay.Load() {
		if err := s.startTimer(sess); err != nil {
			s.logger.Error("failed to restart auto-play after manual draw", zap.String("game_id", gameID.Hex()), zap.Error(err))
		}
	}
	return outcome, nil
}

// Shutdown cancels every running timer
func (s *GameSessionServiceImpl) Shutdown() {
	for _, id := range s.sessions.autoPlaying() {
		sess := s.sessions.acquire(id)
		s.stopTimer(sess)
		s.sessions.release(sess)
	}
}

// tick is the auto-play task of one game
func (s *GameSessionServiceImpl) tick(gameID primitive.ObjectID, generation uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auto-play tick panicked", zap.String("game_id", gameID.Hex()), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OperationTimeout)
	defer cancel()
	sess := s.sessions.acquire(gameID)
	defer s.sessions.release(sess)

	if !sess.autoPlay.Load() || sess.generation != generation {
		return
	}

	game, err := s.load(ctx, gameID)
	if err != nil {
		s.logger.Error("auto-play stopped: game could not be loaded", zap.String("game_id", gameID.Hex()), zap.Error(err))
		s.stopTimer(sess)
		s.broadcaster.BroadcastToRoom(gameID.Hex(), models.Event{Event: models.EventAutoPlayStopped, Data: models.AutoPlay{GameID: gameID.Hex()}})
		return
	}

	switch game.Status {
	case models.GameStatusClosed:
		s.stopTimer(sess)
		return
	case models.GameStatusPaused, models.GameStatusWaiting:
		return
	}

	number, err := s.drawer.Next(game.DrawnNumbers)
	if errors.Is(err, tambola.ErrExhausted) {
		if err := s.closeGame(ctx, sess, game, models.CloseReasonAllNumbersDrawn); err != nil {
			s.logger.Error("failed to close exhausted game", zap.String("game_id", gameID.Hex()), zap.Error(err))
			return
		}
		s.broadcastClosed(game, models.CloseReasonAllNumbersDrawn)
		return
	}

	if _, err := s.draw(ctx, sess, game, number, false); err != nil {
		// the next tick retries against a freshly loaded record
		s.logger.Warn("auto draw aborted", zap.String("game_id", gameID.Hex()), zap.Error(err))
	}
}

// draw appends number, evaluates winners, persists everything with one
// versioned write and only then broadcasts. Called with the session held.
func (s *GameSessionServiceImpl) draw(ctx context.Context, sess *session, game *models.Game, number int, manual bool) (*DrawOutcome, error) {
	started := s.clock.Now()
	room := game.ID.Hex()
	log := s.logger.With(zap.String("game_id", room), zap.Int("number", number), zap.Bool("manual", manual))

	next := game.Clone()
	next.DrawnNumbers = append(next.DrawnNumbers, number)

	tickets, err := s.tickets.FindActiveByGame(ctx, game.ID)
	if err != nil {
		metrics.RecordDrawFailure(string(tambola.CodePersistenceFailure))
		log.Error("draw aborted: tickets could not be loaded", zap.Error(err))
		return nil, tambola.PersistenceFailure(err)
	}

	now := s.clock.Now()
	res := tambola.Evaluate(tickets, next.WinningRules, next.DrawnNumbers, now)
	if res.Inconsistencies > 0 {
		log.Warn("matching tickets found no open prize", zap.Int("count", res.Inconsistencies))
	}
	next.WinningRules = res.Rules
	for i := range res.Announcements {
		a := &res.Announcements[i]
		name := s.displayName(ctx, a.WinnerID)
		a.WinnerName = name.Name
		a.WinnerEmail = name.Email
		prize := &next.WinningRules[a.RuleIndex].Prizes[a.PrizeIndex]
		prize.WinnerName = name.Name
		prize.WinnerEmail = name.Email
	}
	if res.NewWinners > 0 {
		next.AutoClose.CurrentTotalWinners += res.NewWinners
		next.Prizes = next.FlattenPrizes()
	}

	reason, closing := tambola.AutoCloseReason(next.WinningRules, next.AutoClose)
	if !closing && len(next.DrawnNumbers) >= models.MaxNumber {
		reason, closing = models.CloseReasonAllNumbersDrawn, true
	}
	if closing {
		closedAt := now
		next.Status = models.GameStatusClosed
		next.CloseReason = reason
		next.ClosedAt = &closedAt
	}

	if err := s.games.Save(ctx, next); err != nil {
		metrics.RecordDrawFailure(string(tambola.CodePersistenceFailure))
		log.Error("draw aborted: game could not be saved", zap.Error(err))
		return nil, tambola.PersistenceFailure(err)
	}

	drawn := append([]int(nil), next.DrawnNumbers...)
	s.broadcaster.BroadcastToRoom(room, models.Event{
		Event: models.EventNumberCalled,
		Data: models.NumberCalled{
			Number:       number,
			DrawnNumbers: drawn,
			Timestamp:    now.UnixMilli(),
			IsManual:     manual,
		},
	})
	for _, a := range res.Announcements {
		s.broadcaster.BroadcastToRoom(room, models.Event{Event: models.EventWinnerDetected, Data: a})
		metrics.RecordWinner(string(a.RuleType))
		log.Info("winner detected",
			zap.String("rule", string(a.RuleType)),
			zap.String("prize", a.PrizeName),
			zap.String("winner_id", a.WinnerID),
			zap.Int("ticket_number", a.TicketNumber))
	}
	if closing {
		s.stopTimer(sess)
		s.broadcastClosed(next, reason)
	}

	metrics.RecordDraw(manual, s.clock.Since(started))
	log.Debug("number drawn", zap.Int("drawn", len(drawn)))

	return &DrawOutcome{
		Number:      number,
		Drawn:       drawn,
		Winners:     res.Announcements,
		Closed:      closing,
		CloseReason: reason,
	}, nil
}

// transition performs a guarded status change and broadcasts it
func (s *GameSessionServiceImpl) transition(ctx context.Context, gameID primitive.ObjectID, from, to models.GameStatus) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	sess := s.sessions.acquire(gameID)
	defer s.sessions.release(sess)

	game, err := s.load(ctx, gameID)
	if err != nil {
		return err
	}
	if game.Status != from {
		return tambola.InvalidTransition("Game cannot move from %s to %s", game.Status, to)
	}
	if err := s.setStatus(ctx, game, to); err != nil {
		return err
	}
	s.broadcastStatus(game)
	s.logger.Info("game status changed", zap.String("game_id", gameID.Hex()), zap.String("status", string(to)))
	return nil
}

// closeGame persists the terminal transition and tears down the timer
func (s *GameSessionServiceImpl) closeGame(ctx context.Context, sess *session, game *models.Game, reason models.CloseReason) error {
	closedAt := s.clock.Now()
	err := s.games.UpdateFields(ctx, game, map[string]interface{}{
		"status":      models.GameStatusClosed,
		"closeReason": reason,
		"closedAt":    closedAt,
	})
	if err != nil {
		return tambola.PersistenceFailure(err)
	}
	game.Status = models.GameStatusClosed
	game.CloseReason = reason
	game.ClosedAt = &closedAt
	s.stopTimer(sess)
	return nil
}

func (s *GameSessionServiceImpl) setStatus(ctx context.Context, game *models.Game, status models.GameStatus) error {
	if err := s.games.UpdateFields(ctx, game, map[string]interface{}{"status": status}); err != nil {
		return tambola.PersistenceFailure(err)
	}
	game.Status = status
	return nil
}

func (s *GameSessionServiceImpl) load(ctx context.Context, gameID primitive.ObjectID) (*models.Game, error) {
	game, err := s.games.FindByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, tambola.GameNotFound(err)
		}
		return nil, tambola.PersistenceFailure(fmt.Errorf("load game %s: %w", gameID.Hex(), err))
	}
	return game, nil
}

// startTimer (re)schedules the auto-play task under a fresh generation
func (s *GameSessionServiceImpl) startTimer(sess *session) error {
	generation := s.timerSeq.Add(1)
	gameID := sess.gameID
	err := s.scheduler.Start(gameID.Hex(), s.cfg.AutoPlayInterval, func() {
		s.tick(gameID, generation)
	})
	if err != nil {
		return fmt.Errorf("start auto-play: %w", err)
	}
	sess.generation = generation
	sess.autoPlay.Store(true)
	return nil
}

// stopTimer cancels the auto-play task; it reports whether one was running
func (s *GameSessionServiceImpl) stopTimer(sess *session) bool {
	sess.generation = 0
	wasRunning := sess.autoPlay.Swap(false)
	s.scheduler.Stop(sess.gameID.Hex())
	return wasRunning
}

func (s *GameSessionServiceImpl) broadcastStatus(game *models.Game) {
	s.broadcaster.BroadcastToRoom(game.ID.Hex(), models.Event{
		Event: models.EventGameStatusChanged,
		Data:  models.GameStatusChanged{GameID: game.ID.Hex(), Status: game.Status},
	})
}

func (s *GameSessionServiceImpl) broadcastClosed(game *models.Game, reason models.CloseReason) {
	payload := models.GameClosed{GameID: game.ID.Hex(), Reason: reason}
	switch reason {
	case models.CloseReasonAllNumbersDrawn:
		total := len(game.DrawnNumbers)
		if total < models.MaxNumber {
			total = models.MaxNumber
		}
		payload.TotalNumbers = &total
	case models.CloseReasonAllPrizesWon, models.CloseReasonWinnerLimitReached:
		total := game.AutoClose.CurrentTotalWinners
		payload.TotalWinners = &total
	}
	s.broadcaster.BroadcastToRoom(game.ID.Hex(), models.Event{Event: models.EventGameClosed, Data: payload})
	metrics.RecordGameClosed(string(reason))
	s.logger.Info("game closed", zap.String("game_id", game.ID.Hex()), zap.String("reason", string(reason)))
}

// displayName resolves a winner name, caching successful lookups
func (s *GameSessionServiceImpl) displayName(ctx context.Context, userID string) models.DisplayName {
	if cached, ok := s.names.Load(userID); ok {
		return cached.(models.DisplayName)
	}
	name, err := s.users.FindDisplayName(ctx, userID)
	if err != nil {
		// Fallback names are not cached so a later profile sync is picked up
		s.logger.Debug("display name lookup failed", zap.String("user_id", userID), zap.Error(err))
		return models.DisplayNameOf(nil, userID)
	}
	s.names.Store(userID, name)
	return name
}
