// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux renders Switchyard CLI output in one of four personality
// levels, from full rail-yard styling down to plain machine text.
//
// Command implementations call the print helpers (Success, Warning,
// KeyValue, ...) and never inspect the level themselves. In machine
// mode the helpers emit fixed line formats that scripts depend on:
//
//	Success  ->  stdout  "OK: <text>"
//	Warning  ->  stderr  "WARN: <text>"
//	Error    ->  stderr  "ERROR: <text>"
//	Info     ->  stdout  "<text>"
//	KeyValue ->  stdout  "<key>=<value>"
//
// Changing these formats breaks e2e tests and downstream tooling.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Switchyard color palette - signal lamps over steel and ballast.
var (
	// Signal aspects (the operational colors)
	ColorSignalClear   = lipgloss.Color("#3EC98E") // Clear aspect - success, proceed
	ColorSignalCaution = lipgloss.Color("#F0B429") // Caution aspect - warnings
	ColorSignalStop    = lipgloss.Color("#E4572E") // Stop aspect - errors, held locks
	ColorLampWhite     = lipgloss.Color("#ECF0F1") // Shunt lamp - highlights

	// Steel palette (structure, borders, interactive elements)
	ColorSteelBright  = lipgloss.Color("#7FB3D5") // Polished rail - highlights
	ColorSteelPrimary = lipgloss.Color("#5499C7") // Primary steel blue - brand
	ColorSteelDeep    = lipgloss.Color("#2E6DA4") // Deep steel - borders, accents

	// Ground palette (backgrounds, muted elements)
	ColorGraphite = lipgloss.Color("#566573") // Graphite - muted text
	ColorBallast  = lipgloss.Color("#2C3E50") // Ballast - dark backgrounds
	ColorTar      = lipgloss.Color("#17202A") // Tar - near black
)

// Styles are the shared lipgloss styles for the CLI. Table renderers
// and the watch view compose these rather than defining their own, so
// the palette stays consistent across commands.
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorSteelBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorGraphite),
	Success:   lipgloss.NewStyle().Foreground(ColorSignalClear),
	Warning:   lipgloss.NewStyle().Foreground(ColorSignalCaution),
	Error:     lipgloss.NewStyle().Foreground(ColorSignalStop),
	Highlight: lipgloss.NewStyle().Foreground(ColorSteelBright).Bold(true),
}

// Icon is a themed status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
	IconSignal  Icon = "◆"
)

// Render returns the icon colored by its meaning. Neutral glyphs come
// back unstyled.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Title prints a section heading. Machine mode suppresses it entirely,
// headings carry no data.
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success reports a completed action.
func Success(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning reports a condition the user should look at but that did not
// stop the command. Machine mode routes it to stderr so stdout stays
// parseable.
func Warning(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error reports a failed action. Like Warning it goes to stderr in
// machine mode.
func Error(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconError.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints a neutral progress line. In machine mode the text passes
// through untouched.
func Info(text string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// KeyValue prints one field of a detail view. Machine mode emits
// key=value, which is what the e2e suite and shell pipelines grep for.
func KeyValue(label, value string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("%s=%s\n", label, value)
		return
	}
	fmt.Printf("  %s %s\n", Styles.Muted.Render(fmt.Sprintf("%-12s", label+":")), value)
}
