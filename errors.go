/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"time"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrInvalidName  = errors.New("invalid player name")
	ErrInvalidCode  = errors.New("invalid game code")
)

// rejectError refuses a connection during its handshake. The reason is sent
// back to the client in the close frame.
type rejectError struct {
	reason string
}

func (e *rejectError) Error() string {
	return "connection rejected: " + e.reason
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func errorf(format string, args ...any) {
	fmt.Printf("%s | ERROR: %s\n", time.Now().Format(logDate), fmt.Sprintf(format, args...))
}
