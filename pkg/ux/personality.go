// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"
)

// PersonalityLevel selects how much presentation the CLI applies to its
// output. The level is process-wide: command implementations call the
// print helpers in this package and never branch on it themselves.
type PersonalityLevel string

const (
	// PersonalityFull renders colors, icons, and the rail-yard styling.
	// This is the default when stdout is a terminal.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard renders colors and icons without the extra
	// theming. A middle ground for people who find full too loud.
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal renders icons only, no color.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine emits stable line-oriented text with no
	// styling. Scripts and the e2e suite parse this output, so its
	// formats (OK:, WARN:, key=value) are a compatibility surface.
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality is the process-wide presentation state.
type Personality struct {
	Level PersonalityLevel
}

var (
	personalityMu      sync.RWMutex
	currentPersonality = Personality{Level: PersonalityFull}
)

// GetPersonality returns the current presentation state.
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality replaces the presentation state.
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel updates just the level.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
}

// ParsePersonalityLevel maps a user-supplied name to a level. Accepts
// the short forms people actually type ("min", "q"). Unknown values
// fall back to standard rather than erroring, the CLI should never
// refuse to run over a cosmetic setting.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality resolves the starting level once at process startup.
//
// Resolution order:
//
//  1. SWITCHYARD_PERSONALITY environment variable, if set
//  2. machine, when stdout is not a terminal (pipes, CI)
//  3. full
//
// The pipe check matters for composability: `switchyard operation list |
// grep in_progress` must see plain text without the user asking for it.
func InitPersonality() {
	if env := os.Getenv("SWITCHYARD_PERSONALITY"); env != "" {
		SetPersonalityLevel(ParsePersonalityLevel(env))
		return
	}
	if !isTerminal() {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityFull)
}

// isTerminal reports whether stdout is attached to a character device.
func isTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// IsInteractive reports whether prompting the user is acceptable. Both
// conditions must hold: machine mode means a script is driving us even
// when a terminal is attached.
func IsInteractive() bool {
	return GetPersonality().Level != PersonalityMachine && isTerminal()
}
