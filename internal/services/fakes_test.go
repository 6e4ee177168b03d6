package services

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/repositories"
)

type fakeGameRepo struct {
	mu       sync.Mutex
	games    map[primitive.ObjectID]*models.Game
	saveErr  error
	findErr  error
	saves    int
	findHook func()
}

func newFakeGameRepo(games ...*models.Game) *fakeGameRepo {
	r := &fakeGameRepo{games: map[primitive.ObjectID]*models.Game{}}
	for _, g := range games {
		r.games[g.ID] = g.Clone()
	}
	return r
}

func (r *fakeGameRepo) Create(ctx context.Context, game *models.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[game.ID] = game.Clone()
	return nil
}

func (r *fakeGameRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Game, error) {
	if r.findHook != nil {
		r.findHook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	g, ok := r.games[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return g.Clone(), nil
}

func (r *fakeGameRepo) FindByStatus(ctx context.Context, status models.GameStatus) ([]*models.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Game{}
	for _, g := range r.games {
		if g.Status == status {
			out = append(out, g.Clone())
		}
	}
	return out, nil
}

func (r *fakeGameRepo) Save(ctx context.Context, game *models.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.games[game.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if stored.Version != game.Version {
		return repositories.ErrVersionConflict
	}
	game.Version++
	r.games[game.ID] = game.Clone()
	r.saves++
	return nil
}

func (r *fakeGameRepo) UpdateFields(ctx context.Context, game *models.Game, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.games[game.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if stored.Version != game.Version {
		return repositories.ErrVersionConflict
	}
	for k, v := range fields {
		switch k {
		case "status":
			stored.Status = v.(models.GameStatus)
		case "closeReason":
			stored.CloseReason = v.(models.CloseReason)
		case "closedAt":
			t := v.(time.Time)
			stored.ClosedAt = &t
		}
	}
	stored.Version++
	game.Version = stored.Version
	return nil
}

func (r *fakeGameRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (r *fakeGameRepo) get(id primitive.ObjectID) *models.Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.games[id].Clone()
}

func (r *fakeGameRepo) setFindErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findErr = err
}

func (r *fakeGameRepo) setSaveErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

type fakeTicketRepo struct {
	tickets []*models.Ticket
	err     error
}

func (r *fakeTicketRepo) CreateMany(ctx context.Context, tickets []*models.Ticket) error {
	r.tickets = append(r.tickets, tickets...)
	return nil
}

func (r *fakeTicketRepo) FindActiveByGame(ctx context.Context, gameID primitive.ObjectID) ([]*models.Ticket, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := []*models.Ticket{}
	for _, t := range r.tickets {
		if t.GameID == gameID && t.Status == models.TicketStatusActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) FindActiveHolderIDs(ctx context.Context, gameID primitive.ObjectID) ([]string, error) {
	seen := map[string]bool{}
	ids := []string{}
	for _, t := range r.tickets {
		if t.GameID == gameID && t.Status == models.TicketStatusActive && !seen[t.UserID] {
			seen[t.UserID] = true
			ids = append(ids, t.UserID)
		}
	}
	return ids, nil
}

func (r *fakeTicketRepo) CountByGame(ctx context.Context, gameID primitive.ObjectID) (int64, error) {
	return int64(len(r.tickets)), nil
}

func (r *fakeTicketRepo) EnsureIndexes(ctx context.Context) error { return nil }

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*models.User
	lookups int
}

func (r *fakeUserRepo) FindByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	u, ok := r.users[clerkID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) FindDisplayName(ctx context.Context, userID string) (models.DisplayName, error) {
	u, err := r.FindByClerkID(ctx, userID)
	return models.DisplayNameOf(u, userID), err
}

type sentEvent struct {
	room  string
	users []string
	event models.Event
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (b *recordingBroadcaster) BroadcastToRoom(gameID string, event models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{room: gameID, event: event})
}

func (b *recordingBroadcaster) SendToUsers(userIDs []string, event models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{users: userIDs, event: event})
}

func (b *recordingBroadcaster) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.event.Event
	}
	return out
}

func (b *recordingBroadcaster) ofType(name string) []sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentEvent
	for _, e := range b.events {
		if e.event.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// fakeScheduler keeps tasks so tests can fire ticks by hand
type fakeScheduler struct {
	mu     sync.Mutex
	tasks  map[string]func()
	starts int
	stops  int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: map[string]func(){}}
}

func (s *fakeScheduler) Start(gameID string, interval time.Duration, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[gameID] = task
	s.starts++
	return nil
}

func (s *fakeScheduler) Stop(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[gameID]
	delete(s.tasks, gameID)
	if ok {
		s.stops++
	}
	return ok
}

func (s *fakeScheduler) Active(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[gameID]
	return ok
}

func (s *fakeScheduler) task(gameID string) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[gameID]
}

// fire runs the current task of gameID, reporting whether one existed
func (s *fakeScheduler) fire(gameID string) bool {
	task := s.task(gameID)
	if task == nil {
		return false
	}
	task()
	return true
}
