package main

import (
	"fmt"
)

// Conn is a message-framed duplex connection to one client.
type Conn interface {
	Channel
	Receive() (string, error)
}

// Dispatcher runs the per-connection protocol: the host or join handshake,
// then one locked state transition per inbound command.
type Dispatcher struct {
	cfg *Config
	gm  *GameManager
}

func newDispatcher(cfg *Config, gm *GameManager) *Dispatcher {
	return &Dispatcher{cfg: cfg, gm: gm}
}

// Host reads the word list, creates and registers a new game with the
// connecting player as participant 0, and serves the connection until it
// drops. A malformed list is returned as a *rejectError before anything is
// registered.
func (d *Dispatcher) Host(conn Conn, name string) error {
	if !validName(name) {
		return &rejectError{reason: ErrInvalidName.Error()}
	}

	msg, err := conn.Receive()
	if err != nil {
		return fmt.Errorf("reading word list: %w", err)
	}

	words, err := parseWordList(msg, d.cfg.maxWords)
	if err != nil {
		return err
	}

	hub := d.gm.create(NewSession(name, conn, words))

	hub.mu.Lock()
	err = hub.session.Send(0, hub.Code())
	hub.mu.Unlock()

	logf(d.cfg, "GAMES: %q hosted %s with %d words", name, hub.Code(), len(words))

	if err != nil {
		d.leave(hub, 0)

		return fmt.Errorf("sending game code: %w", err)
	}

	d.play(conn, hub, 0)

	return nil
}

// Join serves a connection that has already been counted against hub by
// GameManager.acquire. The connection is released when Join returns.
func (d *Dispatcher) Join(conn Conn, hub *Hub) error {
	index, err := d.authenticate(conn, hub)
	if err != nil {
		d.gm.release(hub)

		return err
	}

	d.play(conn, hub, index)

	return nil
}

// authenticate asks for a display name until a valid, free one arrives. On
// success the new player has been announced and sent a full snapshot, all
// under a single acquisition of the hub lock.
func (d *Dispatcher) authenticate(conn Conn, hub *Hub) (int, error) {
	if err := conn.Send(msgOK); err != nil {
		return -1, err
	}

	for {
		name, err := conn.Receive()
		if err != nil {
			return -1, err
		}

		if !validName(name) {
			if err := conn.Send(msgBadName); err != nil {
				return -1, err
			}

			continue
		}

		index, joined, err := d.tryJoin(conn, hub, name)
		if err != nil {
			return -1, err
		}

		if !joined {
			if err := conn.Send(msgTaken); err != nil {
				return -1, err
			}

			continue
		}

		logf(d.cfg, "GAMES: %q joined %s as player %d", name, hub.Code(), index)

		return index, nil
	}
}

func (d *Dispatcher) tryJoin(conn Conn, hub *Hub, name string) (int, bool, error) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	s := hub.session

	index, joined := s.TryJoin(name, conn)
	if !joined {
		return -1, false, nil
	}

	s.Broadcast(joinMsg(name), index)

	for _, msg := range snapshot(s) {
		if err := conn.Send(msg); err != nil {
			d.quitLocked(hub, index)

			return index, true, err
		}
	}

	return index, true, nil
}

// play is the connected loop. It returns once the connection drops, after
// the player has been marked quit and the connection released.
func (d *Dispatcher) play(conn Conn, hub *Hub, index int) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			break
		}

		d.handle(hub, index, parseCommand(msg))
	}

	d.leave(hub, index)
}

func (d *Dispatcher) handle(hub *Hub, index int, cmd command) {
	if cmd.kind == commandUnknown {
		return
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	s := hub.session
	name := s.Name(index)

	switch cmd.kind {
	case commandAttempt:
		if s.Attempt(index, cmd.arg) {
			s.Broadcast(attemptMsg(cmd.arg, name), index)
		}

	case commandGiveUp:
		s.Broadcast(giveUpMsg(name), index)

		if s.SetGaveUp(index, true) {
			s.Broadcast(msgAllGiveUp, -1)
			logf(d.cfg, "GAMES: Everyone gave up in %s", hub.Code())
		}

	case commandUngiveUp:
		s.Broadcast(ungiveUpMsg(name), index)
		s.SetGaveUp(index, false)

	case commandChat:
		s.Broadcast(chatMsg(name, cmd.arg), index)
	}
}

func (d *Dispatcher) leave(hub *Hub, index int) {
	hub.mu.Lock()
	d.quitLocked(hub, index)
	hub.mu.Unlock()

	if d.gm.release(hub) {
		logf(d.cfg, "GAMES: %s is idle, deleting in %s unless someone joins", hub.Code(), d.gm.idleTimeout)
	}
}

// quitLocked marks the player quit and tells everyone else. The hub lock must
// be held.
func (d *Dispatcher) quitLocked(hub *Hub, index int) {
	s := hub.session
	name := s.Name(index)

	s.Broadcast(quitMsg(name), index)

	outcome := s.MarkQuit(index)
	if outcome == AllGaveUp {
		s.Broadcast(msgAllGiveUp, -1)
	}

	logf(d.cfg, "GAMES: %q left %s (%s)", name, hub.Code(), outcome)
}
