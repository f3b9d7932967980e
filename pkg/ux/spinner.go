// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// lampFrames cycles through the four aspects of a rotating signal lamp.
var lampFrames = []string{"◐", "◓", "◑", "◒"}

const lampInterval = 120 * time.Millisecond

// Spinner animates a one-line signal lamp while a slow call is in
// flight, such as drafting an operation with a local model. In machine
// mode it degrades to a single PROGRESS line so scripts still see
// forward motion without ANSI sequences.
type Spinner struct {
	message string
	out     io.Writer

	mu       sync.Mutex
	running  bool
	animated bool

	halt   chan struct{}
	parked chan struct{}
}

// NewSpinner returns a spinner writing to stdout.
func NewSpinner(message string) *Spinner {
	return newSpinnerTo(message, os.Stdout)
}

// newSpinnerTo exists so tests can capture the animation.
func newSpinnerTo(message string, out io.Writer) *Spinner {
	return &Spinner{
		message: message,
		out:     out,
		halt:    make(chan struct{}),
		parked:  make(chan struct{}),
	}
}

// Start begins the animation. Whether to animate is decided here and
// remembered, so a personality change mid-flight cannot strand Stop
// waiting for a goroutine that was never launched.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.animated = GetPersonality().Level != PersonalityMachine
	animated := s.animated
	s.mu.Unlock()

	if !animated {
		fmt.Fprintf(s.out, "PROGRESS: %s\n", s.message)
		return
	}
	go s.spin()
}

func (s *Spinner) spin() {
	ticker := time.NewTicker(lampInterval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-s.halt:
			// Wipe the lamp line so the outcome message starts clean.
			fmt.Fprint(s.out, "\r\033[K")
			close(s.parked)
			return
		case <-ticker.C:
			lamp := Styles.Highlight.Render(lampFrames[frame%len(lampFrames)])
			fmt.Fprintf(s.out, "\r%s %s", lamp, s.message)
			frame++
		}
	}
}

// Stop halts the animation and blocks until the line is wiped.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	animated := s.animated
	s.mu.Unlock()

	if !animated {
		return
	}
	close(s.halt)
	<-s.parked
}

// StopWithSuccess stops the lamp and reports success.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	Success(message)
}

// StopWithError stops the lamp and reports failure.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	Error(message)
}

// WithSpinner runs fn behind a spinner and reports the outcome through
// the standard print helpers. The error from fn is returned unchanged.
func WithSpinner(message string, fn func() error) error {
	s := NewSpinner(message)
	s.Start()

	if err := fn(); err != nil {
		s.StopWithError(fmt.Sprintf("%s: %v", message, err))
		return err
	}
	s.StopWithSuccess(message)
	return nil
}
