package main

import (
	"regexp"
	"strings"
)

// Wire vocabulary. Every message is a single text frame.
const (
	msgOK        = ":ok"
	msgBadName   = ":badname"
	msgTaken     = ":taken"
	msgAllGiveUp = ":allgiveup"

	cmdAttempt  = ":attempt"
	cmdChat     = ":chat"
	cmdGiveUp   = ":giveup"
	cmdJoin     = ":join"
	cmdQuit     = ":quit"
	cmdUngiveUp = ":ungiveup"

	// quitMarker trails quit player names in the roster, and stands in for
	// the claimant of a forfeited word.
	quitMarker = "_"

	// solvedMarker trails host words that count as already found.
	solvedMarker = "_"

	// maxTokenBytes is the longest host token plus its separator.
	maxTokenBytes = 8
)

var (
	codeRegex     = regexp.MustCompile(`^c([a-z0-9]{5,8})$`)
	nameRegex     = regexp.MustCompile(`^[a-zA-Z0-9]{1,10}$`)
	wordRegex     = regexp.MustCompile(`^[a-z]{3,6}$`)
	hostWordRegex = regexp.MustCompile(`^[a-z]{3,6}_?$`)
)

func validName(name string) bool {
	return nameRegex.MatchString(name)
}

// parseWordList reads the host's space-separated word list. Only the first
// limit tokens are considered. Any token that is not a 3-6 letter lowercase
// word, optionally followed by the solved marker, rejects the whole list.
func parseWordList(msg string, limit int) ([]Word, error) {
	tokens := strings.Split(msg, " ")
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}

	words := make([]Word, 0, len(tokens))
	for _, token := range tokens {
		if !hostWordRegex.MatchString(token) {
			return nil, &rejectError{reason: "invalid word " + quoteToken(token)}
		}

		word, solved := strings.CutSuffix(token, solvedMarker)
		words = append(words, Word{Text: word, Solved: solved})
	}

	return words, nil
}

// quoteToken keeps close-frame reasons short; control frames cap at 125 bytes.
func quoteToken(token string) string {
	const maxLen = 16
	if len(token) > maxLen {
		token = token[:maxLen] + "..."
	}

	return `"` + token + `"`
}

type commandKind int

const (
	commandUnknown commandKind = iota
	commandAttempt
	commandGiveUp
	commandUngiveUp
	commandChat
)

type command struct {
	kind commandKind
	arg  string
}

// parseCommand recognises the commands a connected player may send.
// Anything else, including an attempt at a malformed word, is unknown.
func parseCommand(msg string) command {
	switch msg {
	case cmdGiveUp:
		return command{kind: commandGiveUp}
	case cmdUngiveUp:
		return command{kind: commandUngiveUp}
	}

	if word, ok := strings.CutPrefix(msg, cmdAttempt+" "); ok {
		if wordRegex.MatchString(word) {
			return command{kind: commandAttempt, arg: word}
		}

		return command{}
	}

	if text, ok := strings.CutPrefix(msg, cmdChat+" "); ok {
		return command{kind: commandChat, arg: text}
	}

	return command{}
}

func announce(cmd string, args ...string) string {
	return strings.Join(append([]string{cmd}, args...), " ")
}

func joinMsg(name string) string { return announce(cmdJoin, name) }

func quitMsg(name string) string { return announce(cmdQuit, name) }

func giveUpMsg(name string) string { return announce(cmdGiveUp, name) }

func ungiveUpMsg(name string) string { return announce(cmdUngiveUp, name) }

func attemptMsg(word, name string) string { return announce(cmdAttempt, word, name) }

func chatMsg(name, text string) string { return announce(cmdChat, name, text) }

// forfeitMsg reports a word nobody found, using the quit marker as claimant.
func forfeitMsg(word string) string { return announce(cmdAttempt, word, quitMarker) }

// joinPath is the path segment players use to join the game with this code.
func joinPath(code string) string {
	return "c" + code
}

// codeFromPath extracts the game code from a join path segment.
func codeFromPath(segment string) (string, bool) {
	m := codeRegex.FindStringSubmatch(segment)
	if m == nil {
		return "", false
	}

	return m[1], true
}

// snapshot renders the full game state for a player who just joined: the
// roster, the words, every claim and forfeit, and who has given up.
func snapshot(s *Session) []string {
	msgs := []string{
		strings.Join(s.Roster(), " "),
		strings.Join(s.Words(), " "),
	}

	for _, c := range s.Claims() {
		msgs = append(msgs, attemptMsg(c.Word, c.Name))
	}

	for _, word := range s.Forfeits() {
		msgs = append(msgs, forfeitMsg(word))
	}

	for _, name := range s.GaveUpNames() {
		msgs = append(msgs, giveUpMsg(name))
	}

	return msgs
}
