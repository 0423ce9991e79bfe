/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// Channel is the capability to deliver one text message to a connected
// participant.
type Channel interface {
	Send(msg string) error
}

type WordStatus int

const (
	Unclaimed WordStatus = iota
	Claimed
	Forfeited
)

// WordState records who, if anyone, found a word. Claimant is only meaningful
// when Status is Claimed.
type WordState struct {
	Status   WordStatus
	Claimant int
}

// Word is one entry of the host's list. Solved words start out claimed by the
// host.
type Word struct {
	Text   string
	Solved bool
}

type QuitOutcome int

const (
	Continuing QuitOutcome = iota
	AllGaveUp
	AllQuit
)

func (q QuitOutcome) String() string {
	switch q {
	case AllGaveUp:
		return "all gave up"
	case AllQuit:
		return "all quit"
	default:
		return "continuing"
	}
}

// Participant holds the data we store server-side for one player. A nil
// channel means the player has disconnected; the slot is kept so the same
// name can reclaim it.
type Participant struct {
	Name    string
	GaveUp  bool
	channel Channel
}

func (p *Participant) quit() bool {
	return p.channel == nil
}

// Session is the state of a single cooperative game. It performs no locking;
// every method must be called while holding the owning Hub's mutex.
type Session struct {
	participants []Participant
	words        map[string]WordState
	order        []string
}

func NewSession(name string, ch Channel, words []Word) *Session {
	s := &Session{
		participants: []Participant{{Name: name, channel: ch}},
		words:        make(map[string]WordState, len(words)),
		order:        make([]string, 0, len(words)),
	}

	for _, w := range words {
		if _, exists := s.words[w.Text]; exists {
			continue
		}

		state := WordState{Status: Unclaimed}
		if w.Solved {
			state = WordState{Status: Claimed, Claimant: 0}
		}

		s.words[w.Text] = state
		s.order = append(s.order, w.Text)
	}

	return s
}

// TryJoin places a player in the roster. A player who previously quit under
// the same name gets their old slot back. If the name belongs to someone who
// is still connected, joined is false and the caller keeps ch.
func (s *Session) TryJoin(name string, ch Channel) (index int, joined bool) {
	for i := range s.participants {
		p := &s.participants[i]
		if p.Name != name {
			continue
		}

		if !p.quit() {
			return -1, false
		}

		p.channel = ch
		p.GaveUp = false

		return i, true
	}

	s.participants = append(s.participants, Participant{Name: name, channel: ch})

	return len(s.participants) - 1, true
}

// Attempt claims word for the player if nobody has found it yet.
func (s *Session) Attempt(index int, word string) bool {
	state, ok := s.words[word]
	if !ok || state.Status != Unclaimed {
		return false
	}

	s.words[word] = WordState{Status: Claimed, Claimant: index}

	return true
}

// SetGaveUp sets the player's give-up flag. It reports true when giving up
// left nobody connected still trying, in which case every unclaimed word has
// been forfeited.
func (s *Session) SetGaveUp(index int, value bool) bool {
	s.participants[index].GaveUp = value

	if !value || s.stillTrying() {
		return false
	}

	s.forfeit()

	return true
}

// MarkQuit detaches the player's channel and resets their give-up flag so a
// rejoin starts fresh.
func (s *Session) MarkQuit(index int) QuitOutcome {
	p := &s.participants[index]
	p.channel = nil
	p.GaveUp = false

	if s.Connected() == 0 {
		return AllQuit
	}

	if s.stillTrying() {
		return Continuing
	}

	s.forfeit()

	return AllGaveUp
}

// stillTrying reports whether any connected player has not given up.
func (s *Session) stillTrying() bool {
	for _, p := range s.participants {
		if !p.quit() && !p.GaveUp {
			return true
		}
	}

	return false
}

func (s *Session) forfeit() {
	for word, state := range s.words {
		if state.Status == Unclaimed {
			s.words[word] = WordState{Status: Forfeited}
		}
	}
}

func (s *Session) Name(index int) string {
	return s.participants[index].Name
}

func (s *Session) wordState(word string) (WordState, bool) {
	state, ok := s.words[word]

	return state, ok
}

// Connected returns the number of players with a live channel.
func (s *Session) Connected() int {
	n := 0
	for _, p := range s.participants {
		if !p.quit() {
			n++
		}
	}

	return n
}

// Roster lists every player name in join order, with quit players suffixed
// by the quit marker.
func (s *Session) Roster() []string {
	names := make([]string, 0, len(s.participants))
	for _, p := range s.participants {
		if p.quit() {
			names = append(names, p.Name+quitMarker)
			continue
		}
		names = append(names, p.Name)
	}

	return names
}

func (s *Session) Words() []string {
	words := make([]string, len(s.order))
	copy(words, s.order)

	return words
}

// Claim pairs a found word with the name of whoever found it.
type Claim struct {
	Word string
	Name string
}

func (s *Session) Claims() []Claim {
	claims := make([]Claim, 0)
	for _, word := range s.order {
		if state := s.words[word]; state.Status == Claimed {
			claims = append(claims, Claim{Word: word, Name: s.participants[state.Claimant].Name})
		}
	}

	return claims
}

func (s *Session) Forfeits() []string {
	words := make([]string, 0)
	for _, word := range s.order {
		if s.words[word].Status == Forfeited {
			words = append(words, word)
		}
	}

	return words
}

// GaveUpNames lists connected players who have currently given up.
func (s *Session) GaveUpNames() []string {
	names := make([]string, 0)
	for _, p := range s.participants {
		if p.GaveUp && !p.quit() {
			names = append(names, p.Name)
		}
	}

	return names
}

// Send delivers msg to a single player, if they are connected.
func (s *Session) Send(index int, msg string) error {
	p := &s.participants[index]
	if p.quit() {
		return nil
	}

	return p.channel.Send(msg)
}

// Broadcast delivers msg to every connected player except the one at index
// except; pass -1 to include everyone. Delivery failures are left for the
// failing connection's own read loop to notice.
func (s *Session) Broadcast(msg string, except int) {
	for i := range s.participants {
		if i == except || s.participants[i].quit() {
			continue
		}

		_ = s.participants[i].channel.Send(msg)
	}
}
