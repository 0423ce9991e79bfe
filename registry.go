package main

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Hub is one registered game: the session, the mutex that serializes every
// command against it, and the guard that decides when it may be reaped.
type Hub struct {
	code  string
	guard *idleGuard

	mu      sync.Mutex
	session *Session
}

func (h *Hub) Code() string {
	return h.code
}

// idleGuard counts live connections to a hub, including players who have not
// chosen a name yet. When the count drops to zero a deletion timer is armed;
// any connection before it fires cancels it.
type idleGuard struct {
	mu          sync.Mutex
	connections int
	generation  uint64
	timer       clockwork.Timer
}

// connect must be called with the GameManager's lock held, so that it cannot
// interleave with an expiry that is deciding whether to remove the hub.
func (g *idleGuard) connect() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.connections++
	g.generation++

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// disconnect reports whether this was the last connection, in which case arm
// has been called to start the deletion timer.
func (g *idleGuard) disconnect(arm func(generation uint64) clockwork.Timer) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.connections--
	if g.connections > 0 {
		return false
	}

	g.generation++
	g.timer = arm(g.generation)

	return true
}

// expired reports whether the timer of the given generation is still the
// deciding one and nobody has connected since.
func (g *idleGuard) expired(generation uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.connections == 0 && g.generation == generation
}

func (g *idleGuard) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// GameManager holds the hubs keyed by game code. Its lock only guards the map
// itself; game state is protected by each hub's own mutex.
type GameManager struct {
	mu   sync.Mutex
	hubs map[string]*Hub

	clock       clockwork.Clock
	idleTimeout time.Duration
	newCode     func() string

	// onExpire, if set, is called after a hub is removed.
	onExpire func(code string)
}

func newGameManager(clock clockwork.Clock, idleTimeout time.Duration, newCode func() string) *GameManager {
	return &GameManager{
		hubs:        make(map[string]*Hub),
		clock:       clock,
		idleTimeout: idleTimeout,
		newCode:     newCode,
	}
}

// create registers a new hub for session under a fresh code. The hub starts
// with one live connection, the host's.
func (gm *GameManager) create(session *Session) *Hub {
	hub := &Hub{
		session: session,
		guard:   &idleGuard{connections: 1},
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()

	for {
		code := gm.newCode()
		if _, exists := gm.hubs[code]; exists {
			continue
		}

		hub.code = code
		gm.hubs[code] = hub

		return hub
	}
}

// acquire looks up a hub and counts a new connection to it in one step.
func (gm *GameManager) acquire(code string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[code]
	if !ok {
		return nil, ErrGameNotFound
	}

	hub.guard.connect()

	return hub, nil
}

// release ends one connection to hub. It reports whether that left the hub
// idle, with its deletion timer running.
func (gm *GameManager) release(hub *Hub) bool {
	return hub.guard.disconnect(func(generation uint64) clockwork.Timer {
		return gm.clock.AfterFunc(gm.idleTimeout, func() {
			gm.expire(hub, generation)
		})
	})
}

func (gm *GameManager) expire(hub *Hub, generation uint64) {
	gm.mu.Lock()

	if gm.hubs[hub.code] != hub || !hub.guard.expired(generation) {
		gm.mu.Unlock()

		return
	}

	delete(gm.hubs, hub.code)
	gm.mu.Unlock()

	if gm.onExpire != nil {
		gm.onExpire(hub.code)
	}
}

func (gm *GameManager) lookup(code string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[code]

	return hub, ok
}

func (gm *GameManager) count() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	return len(gm.hubs)
}

// close stops every pending deletion timer. Hubs stay registered.
func (gm *GameManager) close() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for _, hub := range gm.hubs {
		hub.guard.stop()
	}
}

const codeLetters = "abcdefghijklmnopqrstuvwxyz0123456789"

// codeGenerator returns crypto-random lowercase alphanumeric codes of the
// given length.
func codeGenerator(length int) func() string {
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		out := make([]byte, length)
		for i := range out {
			out[i] = codeLetters[int(buf[i])%len(codeLetters)]
		}

		return string(out)
	}
}
