package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/tambola"
)

var (
	baseTime = time.Date(2024, 5, 10, 18, 30, 0, 0, time.UTC)
	topRow   = []int{4, 23, 41, 62, 85}
)

// rows: 4 23 41 62 85 | 12 35 47 56 74 | 7 28 59 66 90
func sampleGrid() models.TicketGrid {
	return models.NewGrid([3][9]int{
		{4, 0, 23, 0, 41, 0, 62, 0, 85},
		{0, 12, 0, 35, 47, 56, 0, 74, 0},
		{7, 0, 28, 0, 0, 59, 66, 0, 90},
	})
}

type harness struct {
	svc     *GameSessionServiceImpl
	games   *fakeGameRepo
	tickets *fakeTicketRepo
	users   *fakeUserRepo
	bc      *recordingBroadcaster
	sched   *fakeScheduler
	clock   *clockwork.FakeClock
	gameID  primitive.ObjectID
}

func newGame(status models.GameStatus, drawn []int, rules ...models.WinningRule) *models.Game {
	if drawn == nil {
		drawn = []int{}
	}
	return &models.Game{
		ID:           primitive.NewObjectID(),
		Name:         "Evening Housie",
		Status:       status,
		DrawnNumbers: drawn,
		WinningRules: rules,
		AutoClose:    models.DefaultAutoClose(),
		Version:      1,
	}
}

func newRule(rt models.RuleType, slots int) models.WinningRule {
	rule := models.WinningRule{Type: rt, MaxWinners: slots}
	for i := 1; i <= slots; i++ {
		rule.Prizes = append(rule.Prizes, models.Prize{Name: string(rt), XPPoints: 50 * i, Position: i, RuleType: rt, Status: models.PrizeStatusOpen})
	}
	return rule
}

func newTicket(gameID primitive.ObjectID, number int, user string) *models.Ticket {
	return &models.Ticket{
		ID:           primitive.NewObjectID(),
		GameID:       gameID,
		UserID:       user,
		TicketNumber: number,
		Numbers:      sampleGrid(),
		Status:       models.TicketStatusActive,
	}
}

func newHarness(t *testing.T, game *models.Game, tickets ...*models.Ticket) *harness {
	t.Helper()
	h := &harness{
		games:   newFakeGameRepo(game),
		tickets: &fakeTicketRepo{tickets: tickets},
		users: &fakeUserRepo{users: map[string]*models.User{
			"user_ada": {ClerkID: "user_ada", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"},
		}},
		bc:     &recordingBroadcaster{},
		sched:  newFakeScheduler(),
		clock:  clockwork.NewFakeClockAt(baseTime),
		gameID: game.ID,
	}
	h.svc = NewGameSessionService(h.games, h.tickets, h.users, h.bc, h.sched, tambola.NewDrawer(1), h.clock, zap.NewNop(),
		SessionConfig{AutoPlayInterval: 3 * time.Second, OperationTimeout: time.Second})
	return h
}

func (h *harness) room() string { return h.gameID.Hex() }

func TestStart(t *testing.T) {
	game := newGame(models.GameStatusWaiting, nil)
	h := newHarness(t, game,
		newTicket(game.ID, 1, "user_ada"),
		newTicket(game.ID, 2, "user_ada"),
		newTicket(game.ID, 3, "user_bob"))
	ctx := context.Background()

	require.NoError(t, h.svc.Start(ctx, h.gameID))

	assert.Equal(t, models.GameStatusLive, h.games.get(h.gameID).Status)
	assert.Equal(t, []string{models.EventGameStarted, models.EventGameNotification, models.EventGameStatusChanged}, h.bc.names())
	note := h.bc.ofType(models.EventGameNotification)[0]
	assert.Equal(t, []string{"user_ada", "user_bob"}, note.users)
	assert.Equal(t, "GAME_STARTED", note.event.Data.(models.GameNotification).Type)

	err := h.svc.Start(ctx, h.gameID)
	assert.ErrorIs(t, err, tambola.ErrInvalidTransition)
}

func TestManualDraw_WinnerLimitClosesGame(t *testing.T) {
	game := newGame(models.GameStatusLive, []int{4, 23, 41, 62}, newRule(models.RuleTopLine, 5))
	game.AutoClose = models.AutoClose{Enabled: true, AfterWinners: 2}
	second := newTicket(game.ID, 2, "user_2abc987654")
	first := newTicket(game.ID, 1, "user_ada")
	h := newHarness(t, game, second, first)
	ctx := context.Background()

	outcome, err := h.svc.ManualDraw(ctx, h.gameID, 85)
	require.NoError(t, err)
	assert.True(t, outcome.Closed)
	assert.Equal(t, models.CloseReasonWinnerLimitReached, outcome.CloseReason)
	require.Len(t, outcome.Winners, 2)
	assert.Equal(t, "Ada Lovelace", outcome.Winners[0].WinnerName)
	assert.Equal(t, 1, outcome.Winners[0].TicketNumber)
	assert.Equal(t, "User 987654", outcome.Winners[1].WinnerName)

	assert.Equal(t, []string{
		models.EventNumberCalled,
		models.EventWinnerDetected,
		models.EventWinnerDetected,
		models.EventGameClosed,
	}, h.bc.names())
	closed := h.bc.ofType(models.EventGameClosed)[0].event.Data.(models.GameClosed)
	require.NotNil(t, closed.TotalWinners)
	assert.Equal(t, 2, *closed.TotalWinners)

	stored := h.games.get(h.gameID)
	assert.Equal(t, models.GameStatusClosed, stored.Status)
	assert.Equal(t, models.CloseReasonWinnerLimitReached, stored.CloseReason)
	assert.Equal(t, 2, stored.AutoClose.CurrentTotalWinners)
	assert.Equal(t, "ada@example.com", stored.WinningRules[0].Prizes[0].WinnerEmail)
	assert.Equal(t, first.ID.Hex(), stored.Prizes[0].WinnerTicketID)
	assert.Len(t, stored.Prizes, 5)

	_, err = h.svc.ManualDraw(ctx, h.gameID, 12)
	assert.ErrorIs(t, err, tambola.ErrInvalidTransition)
	assert.Equal(t, "Game is not live", tambola.MessageOf(err))
}

func TestManualDraw_AllPrizesWon(t *testing.T) {
	game := newGame(models.GameStatusLive, []int{4, 23, 41, 62}, newRule(models.RuleTopLine, 1))
	game.AutoClose = models.AutoClose{Enabled: true, AfterWinners: 10}
	h := newHarness(t, game, newTicket(game.ID, 1, "user_ada"))

	outcome, err := h.svc.ManualDraw(context.Background(), h.gameID, 85)
	require.NoError(t, err)
	assert.Equal(t, models.CloseReasonAllPrizesWon, outcome.CloseReason)
}

func TestManualDraw_AutoCloseDisabledKeepsPlaying(t *testing.T) {
	game := newGame(models.GameStatusLive, []int{4, 23, 41, 62}, newRule(models.RuleTopLine, 1))
	h := newHarness(t, game, newTicket(game.ID, 1, "user_ada"))

	outcome, err := h.svc.ManualDraw(context.Background(), h.gameID, 85)
	require.NoError(t, err)
	assert.False(t, outcome.Closed)
	assert.Equal(t, models.GameStatusLive, h.games.get(h.gameID).Status)
	assert.True(t, h.games.get(h.gameID).WinningRules[0].IsCompleted)
}

func TestManualDraw_DuplicateRejected(t *testing.T) {
	game := newGame(models.GameStatusLive, []int{10, 20, 30})
	h := newHarness(t, game)

	_, err := h.svc.ManualDraw(context.Background(), h.gameID, 20)

	assert.ErrorIs(t, err, tambola.ErrDuplicateNumber)
	assert.Equal(t, "Number 20 already called", tambola.MessageOf(err))
	assert.Equal(t, []int{10, 20, 30}, h.games.get(h.gameID).DrawnNumbers)
	assert.Empty(t, h.bc.names())
}

func TestManualDraw_Validation(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusWaiting, nil))
	ctx := context.Background()

	_, err := h.svc.ManualDraw(ctx, h.gameID, 5)
	assert.ErrorIs(t, err, tambola.ErrInvalidTransition)

	require.NoError(t, h.svc.Start(ctx, h.gameID))
	_, err = h.svc.ManualDraw(ctx, h.gameID, 91)
	assert.ErrorIs(t, err, tambola.ErrOutOfRange)

	_, err = h.svc.ManualDraw(ctx, primitive.NewObjectID(), 5)
	assert.ErrorIs(t, err, tambola.ErrGameNotFound)
}

func TestManualDraw_PausedGameAccepted(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusPaused, nil))

	outcome, err := h.svc.ManualDraw(context.Background(), h.gameID, 7)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, outcome.Drawn)

	called := h.bc.ofType(models.EventNumberCalled)[0].event.Data.(models.NumberCalled)
	assert.True(t, called.IsManual)
	assert.Equal(t, baseTime.UnixMilli(), called.Timestamp)
}

func TestManualDraw_PersistenceFailureAborts(t *testing.T) {
	game := newGame(models.GameStatusLive, []int{1})
	h := newHarness(t, game)
	h.games.setSaveErr(errors.New("connection reset"))

	_, err := h.svc.ManualDraw(context.Background(), h.gameID, 2)

	assert.ErrorIs(t, err, tambola.ErrPersistenceFailure)
	assert.Empty(t, h.bc.names())
	assert.Equal(t, []int{1}, h.games.get(h.gameID).DrawnNumbers)
}

func TestManualDraw_TicketLoadFailureAborts(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, nil))
	h.tickets.err = errors.New("timeout")

	_, err := h.svc.ManualDraw(context.Background(), h.gameID, 2)

	assert.ErrorIs(t, err, tambola.ErrPersistenceFailure)
	assert.Empty(t, h.bc.names())
}

func TestManualDraw_RestartsAutoPlay(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, nil))
	ctx := context.Background()

	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))
	staleTick := h.sched.task(h.room())
	require.NotNil(t, staleTick)

	_, err := h.svc.ManualDraw(ctx, h.gameID, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, h.sched.starts)
	assert.True(t, h.sched.Active(h.room()))

	// a tick scheduled before the restart must not draw
	h.bc.reset()
	staleTick()
	assert.Empty(t, h.bc.ofType(models.EventNumberCalled))
	assert.Equal(t, []int{50}, h.games.get(h.gameID).DrawnNumbers)

	require.True(t, h.sched.fire(h.room()))
	assert.Len(t, h.bc.ofType(models.EventNumberCalled), 1)
	assert.Len(t, h.games.get(h.gameID).DrawnNumbers, 2)
}

func TestManualDraw_WithoutAutoPlayDoesNotStartTimer(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, nil))

	_, err := h.svc.ManualDraw(context.Background(), h.gameID, 50)
	require.NoError(t, err)
	assert.Zero(t, h.sched.starts)
}

func TestAutoPlay_TickDraws(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusWaiting, nil))
	ctx := context.Background()

	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))
	assert.Equal(t, []string{models.EventGameStatusChanged, models.EventAutoPlayStarted}, h.bc.names())
	assert.Equal(t, models.GameStatusLive, h.games.get(h.gameID).Status)

	for i := 0; i < 5; i++ {
		require.True(t, h.sched.fire(h.room()))
	}
	drawn := h.games.get(h.gameID).DrawnNumbers
	assert.Len(t, drawn, 5)
	assert.Equal(t, 5, tambola.NewDrawnSet(drawn).Len())

	calls := h.bc.ofType(models.EventNumberCalled)
	require.Len(t, calls, 5)
	last := calls[4].event.Data.(models.NumberCalled)
	assert.False(t, last.IsManual)
	assert.Equal(t, drawn, last.DrawnNumbers)

	snap, err := h.svc.GetGame(ctx, h.gameID)
	require.NoError(t, err)
	assert.True(t, snap.AutoPlayActive)
}

func TestAutoPlay_PauseFreezesDraws(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, []int{3}))
	ctx := context.Background()

	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))
	require.NoError(t, h.svc.Pause(ctx, h.gameID))
	h.bc.reset()

	for i := 0; i < 3; i++ {
		require.True(t, h.sched.fire(h.room()))
	}
	assert.Empty(t, h.bc.names())
	assert.Equal(t, []int{3}, h.games.get(h.gameID).DrawnNumbers)
	assert.True(t, h.sched.Active(h.room()))

	require.NoError(t, h.svc.Resume(ctx, h.gameID))
	require.True(t, h.sched.fire(h.room()))
	assert.Len(t, h.games.get(h.gameID).DrawnNumbers, 2)
}

func TestAutoPlay_StopIsSafe(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, nil))
	ctx := context.Background()

	require.NoError(t, h.svc.StopAutoPlay(ctx, h.gameID))
	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))
	require.NoError(t, h.svc.StopAutoPlay(ctx, h.gameID))
	require.NoError(t, h.svc.StopAutoPlay(ctx, h.gameID))

	assert.False(t, h.sched.Active(h.room()))
	assert.Len(t, h.bc.ofType(models.EventAutoPlayStopped), 3)
	assert.Zero(t, h.svc.sessions.size())
}

func TestAutoPlay_ClosedGameRejected(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusClosed, nil))

	err := h.svc.StartAutoPlay(context.Background(), h.gameID)
	assert.ErrorIs(t, err, tambola.ErrInvalidTransition)
	assert.False(t, h.sched.Active(h.room()))
}

func TestAutoPlay_ExhaustionClosesGame(t *testing.T) {
	drawn := make([]int, 0, 89)
	for n := 1; n <= 89; n++ {
		drawn = append(drawn, n)
	}
	h := newHarness(t, newGame(models.GameStatusLive, drawn))
	ctx := context.Background()

	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))
	require.True(t, h.sched.fire(h.room()))

	stored := h.games.get(h.gameID)
	assert.Len(t, stored.DrawnNumbers, 90)
	assert.Equal(t, 90, stored.DrawnNumbers[89])
	assert.Equal(t, models.GameStatusClosed, stored.Status)
	assert.Equal(t, models.CloseReasonAllNumbersDrawn, stored.CloseReason)
	assert.False(t, h.sched.Active(h.room()))

	closed := h.bc.ofType(models.EventGameClosed)[0].event.Data.(models.GameClosed)
	require.NotNil(t, closed.TotalNumbers)
	assert.Equal(t, 90, *closed.TotalNumbers)

	_, err := h.svc.ManualDraw(ctx, h.gameID, 5)
	assert.ErrorIs(t, err, tambola.ErrInvalidTransition)
}

func TestAutoPlay_FullPoolOnLoadClosesGame(t *testing.T) {
	drawn := make([]int, 0, 90)
	for n := 90; n >= 1; n-- {
		drawn = append(drawn, n)
	}
	h := newHarness(t, newGame(models.GameStatusLive, drawn))

	require.NoError(t, h.svc.StartAutoPlay(context.Background(), h.gameID))
	require.True(t, h.sched.fire(h.room()))

	assert.Equal(t, models.GameStatusClosed, h.games.get(h.gameID).Status)
	assert.Len(t, h.bc.ofType(models.EventGameClosed), 1)
	assert.Empty(t, h.bc.ofType(models.EventNumberCalled))
}

func TestAutoPlay_PersistenceFailureKeepsTimer(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, nil))
	ctx := context.Background()

	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))
	h.games.setSaveErr(errors.New("primary stepped down"))
	h.bc.reset()

	require.True(t, h.sched.fire(h.room()))
	assert.Empty(t, h.bc.names())
	assert.True(t, h.sched.Active(h.room()))

	h.games.setSaveErr(nil)
	require.True(t, h.sched.fire(h.room()))
	assert.Len(t, h.bc.ofType(models.EventNumberCalled), 1)
}

func TestAutoPlay_LoadFailureStopsTimer(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, []int{9}))
	ctx := context.Background()

	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))
	h.games.setFindErr(errors.New("no reachable servers"))

	require.True(t, h.sched.fire(h.room()))
	assert.False(t, h.sched.Active(h.room()))

	h.games.setFindErr(nil)
	stored := h.games.get(h.gameID)
	assert.Equal(t, models.GameStatusLive, stored.Status)
	assert.Equal(t, []int{9}, stored.DrawnNumbers)
}

func TestAutoPlay_TickOnClosedGameStopsTimer(t *testing.T) {
	game := newGame(models.GameStatusLive, nil)
	h := newHarness(t, game)
	ctx := context.Background()

	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))
	// closed by another instance
	stored := h.games.get(h.gameID)
	stored.Status = models.GameStatusClosed
	require.NoError(t, h.games.Save(ctx, stored))

	require.True(t, h.sched.fire(h.room()))
	assert.False(t, h.sched.Active(h.room()))
}

func TestEnd(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, []int{1, 2}))
	ctx := context.Background()

	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))
	require.NoError(t, h.svc.End(ctx, h.gameID))

	stored := h.games.get(h.gameID)
	assert.Equal(t, models.GameStatusClosed, stored.Status)
	assert.Equal(t, models.CloseReasonManualEnd, stored.CloseReason)
	require.NotNil(t, stored.ClosedAt)
	assert.False(t, h.sched.Active(h.room()))

	closed := h.bc.ofType(models.EventGameClosed)[0].event.Data.(models.GameClosed)
	assert.Equal(t, models.CloseReasonManualEnd, closed.Reason)
	assert.Nil(t, closed.TotalWinners)

	assert.ErrorIs(t, h.svc.End(ctx, h.gameID), tambola.ErrInvalidTransition)
	assert.ErrorIs(t, h.svc.Resume(ctx, h.gameID), tambola.ErrInvalidTransition)
}

func TestPauseResumeGuards(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusWaiting, nil))
	ctx := context.Background()

	assert.ErrorIs(t, h.svc.Pause(ctx, h.gameID), tambola.ErrInvalidTransition)
	assert.ErrorIs(t, h.svc.Resume(ctx, h.gameID), tambola.ErrInvalidTransition)
	assert.ErrorIs(t, h.svc.End(ctx, h.gameID), tambola.ErrInvalidTransition)

	require.NoError(t, h.svc.Start(ctx, h.gameID))
	require.NoError(t, h.svc.Pause(ctx, h.gameID))
	assert.ErrorIs(t, h.svc.Pause(ctx, h.gameID), tambola.ErrInvalidTransition)
	require.NoError(t, h.svc.Resume(ctx, h.gameID))
	assert.Equal(t, models.GameStatusLive, h.games.get(h.gameID).Status)
}

func TestConcurrentDrawsAreSerialized(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, nil))
	ctx := context.Background()
	require.NoError(t, h.svc.StartAutoPlay(ctx, h.gameID))

	var wg sync.WaitGroup
	errs := make(chan error, 60)
	for n := 1; n <= 30; n++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_, err := h.svc.ManualDraw(ctx, h.gameID, n)
			errs <- err
		}(n)
		go func() {
			defer wg.Done()
			h.sched.fire(h.room())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, tambola.ErrDuplicateNumber)
		}
	}
	drawn := h.games.get(h.gameID).DrawnNumbers
	assert.Equal(t, len(drawn), tambola.NewDrawnSet(drawn).Len())
	assert.Len(t, h.bc.ofType(models.EventNumberCalled), len(drawn))
}

func TestConcurrentSameNumberOnlyOnce(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, nil))
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.ManualDraw(ctx, h.gameID, 42); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []int{42}, h.games.get(h.gameID).DrawnNumbers)
}

func TestDisplayNameIsCached(t *testing.T) {
	game := newGame(models.GameStatusLive, nil, newRule(models.RuleEarlyFive, 1), newRule(models.RuleTopLine, 1))
	h := newHarness(t, game, newTicket(game.ID, 1, "user_ada"))
	ctx := context.Background()

	for _, n := range topRow {
		_, err := h.svc.ManualDraw(ctx, h.gameID, n)
		require.NoError(t, err)
	}

	assert.Len(t, h.bc.ofType(models.EventWinnerDetected), 2)
	assert.Equal(t, 1, h.users.lookups)
}

func TestUnknownWinnerNameIsNotCached(t *testing.T) {
	game := newGame(models.GameStatusLive, nil, newRule(models.RuleEarlyFive, 1), newRule(models.RuleTopLine, 1))
	h := newHarness(t, game, newTicket(game.ID, 1, "user_2abcdef123456"))
	ctx := context.Background()

	for _, n := range topRow {
		_, err := h.svc.ManualDraw(ctx, h.gameID, n)
		require.NoError(t, err)
	}

	winners := h.bc.ofType(models.EventWinnerDetected)
	require.Len(t, winners, 2)
	assert.Equal(t, 2, h.users.lookups)
	_, cached := h.svc.names.Load("user_2abcdef123456")
	assert.False(t, cached)
}

func TestShutdownStopsTimers(t *testing.T) {
	h := newHarness(t, newGame(models.GameStatusLive, nil))
	require.NoError(t, h.svc.StartAutoPlay(context.Background(), h.gameID))

	h.svc.Shutdown()

	assert.False(t, h.sched.Active(h.room()))
	assert.Zero(t, h.svc.sessions.size())
}
