package services

import (
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// session serializes every operation of one game and owns its timer state
type session struct {
	mu     sync.Mutex
	gameID primitive.ObjectID
	refs   int // guarded by sessionRegistry.mu

	// generation identifies the running timer; it comes from a process wide
	// sequence so a recreated session never reuses the id of a stale tick
	generation uint64
	autoPlay   atomic.Bool
}

// sessionRegistry hands out one session per game and drops it once no
// operation references it and no timer is running
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[primitive.ObjectID]*session)}
}

// acquire returns the locked session of gameID
func (r *sessionRegistry) acquire(gameID primitive.ObjectID) *session {
	r.mu.Lock()
	s, ok := r.sessions[gameID]
	if !ok {
		s = &session{gameID: gameID}
		r.sessions[gameID] = s
	}
	s.refs++
	r.mu.Unlock()

	s.mu.Lock()
	return s
}

// release unlocks s and forgets it when idle
func (r *sessionRegistry) release(s *session) {
	s.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	s.refs--
	if s.refs == 0 && !s.autoPlay.Load() {
		delete(r.sessions, s.gameID)
	}
}

// size returns the number of tracked sessions
func (r *sessionRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// autoPlaying returns the ids of sessions with a running timer
func (r *sessionRegistry) autoPlaying() []primitive.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]primitive.ObjectID, 0, len(r.sessions))
	for id, s := range r.sessions {
		if s.autoPlay.Load() {
			ids = append(ids, id)
		}
	}
	return ids
}
