package session

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// ErrGameNotFound is returned for operations on an unknown game id
var ErrGameNotFound = errors.New("game not found")

// Options tunes a Registry. The hooks are optional and are called while the
// game's lock is held, so they must not block.
type Options struct {
	// BufferSize is the per-subscriber queue length of every hub
	BufferSize int
	// OnPublish observes every message published to a game's hub
	OnPublish func(id models.GameID, msg []byte)
	// OnSubscriberDropped is called when a hub drops a slow subscriber
	OnSubscriberDropped func()
}

// entry is one game with its hub. mu serializes mutations of game and the
// publish that follows them.
type entry struct {
	mu   sync.Mutex
	game models.Game
	hub  *Hub
}

// Registry owns every live game of the process.
//
// The map itself is guarded by one RWMutex that is only held for lookups and
// inserts. Game state is guarded per entry, so a busy game never blocks
// another one.
type Registry struct {
	opts Options

	mu    sync.RWMutex
	games map[models.GameID]*entry
}

// NewRegistry creates an empty registry
func NewRegistry(opts Options) *Registry {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &Registry{
		opts:  opts,
		games: make(map[models.GameID]*entry),
	}
}

// Create registers a new game with user as its admin and returns its id
func (r *Registry) Create(user models.User) models.GameID {
	g := models.NewGame(user)
	e := &entry{
		game: g,
		hub:  NewHub(g.ID, r.opts.BufferSize, r.opts.OnSubscriberDropped),
	}

	r.mu.Lock()
	r.games[g.ID] = e
	total := len(r.games)
	r.mu.Unlock()

	log.Info().
		Str("game_id", g.ID.String()).
		Str("admin_id", user.ID.String()).
		Int("total_games", total).
		Msg("game created")

	return g.ID
}

// Get returns a copy of the current state of a game
func (r *Registry) Get(id models.GameID) (models.Game, error) {
	e, err := r.lookup(id)
	if err != nil {
		return models.Game{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Clone(), nil
}

// Mutate replaces the state of a game with f(state) under the game's lock
func (r *Registry) Mutate(id models.GameID, f func(models.Game) models.Game) error {
	return r.Dispatch(id, f, nil)
}

// Dispatch applies f like Mutate and then publishes msg to the game's hub
// before releasing the lock. Subscribers therefore see messages in the same
// order in which the mutations were applied. A nil msg publishes nothing.
func (r *Registry) Dispatch(id models.GameID, f func(models.Game) models.Game, msg []byte) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.game = f(e.game)
	if msg == nil {
		return nil
	}
	e.hub.Publish(msg)
	if r.opts.OnPublish != nil {
		r.opts.OnPublish(id, msg)
	}
	return nil
}

// Join returns a snapshot of the game together with a subscription to its
// hub. Both are taken under the game's lock so the subscriber sees exactly
// the actions applied after the snapshot.
func (r *Registry) Join(id models.GameID) (models.Game, *Subscription, error) {
	e, err := r.lookup(id)
	if err != nil {
		return models.Game{}, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Clone(), e.hub.Subscribe(), nil
}

// Subscribers returns the number of subscribers of a game's hub
func (r *Registry) Subscribers(id models.GameID) (int, error) {
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return e.hub.Len(), nil
}

// ResetAll removes every game and closes every hub. It returns the number of
// games removed. Mutations racing with a reset may be lost.
func (r *Registry) ResetAll() int {
	r.mu.Lock()
	games := r.games
	r.games = make(map[models.GameID]*entry)
	r.mu.Unlock()

	for _, e := range games {
		e.hub.Close()
	}

	log.Warn().Int("games_removed", len(games)).Msg("registry reset")
	return len(games)
}

// Len returns the number of live games
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

func (r *Registry) lookup(id models.GameID) (*entry, error) {
	r.mu.RLock()
	e, ok := r.games[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrGameNotFound
	}
	return e, nil
}
