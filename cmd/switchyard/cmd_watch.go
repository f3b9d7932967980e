// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/switchyard/pkg/ux"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// runWatch opens the coordinator's watch stream. The server primes the
// session with every current operation, then pushes each change that
// matches the caller's subscriptions.
func runWatch(cmd *cobra.Command, args []string) {
	client := newClient()

	header := http.Header{}
	if client.token != "" {
		header.Set("Authorization", "Bearer "+client.token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(client.watchURL(), header)
	if err != nil {
		if resp != nil {
			log.Fatalf("Failed to open the watch stream: %v", decodeError(resp))
		}
		log.Fatalf("Failed to open the watch stream: %v", err)
	}
	defer conn.Close()

	// Fall back to NDJSON for piped output, CI, and scripts.
	if watchJSON || (!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())) {
		streamJSON(conn)
		return
	}
	runWatchTUI(conn)
}

// streamJSON copies operation frames to stdout, one JSON object per
// line, until the stream closes.
func streamJSON(conn *websocket.Conn) {
	enc := json.NewEncoder(os.Stdout)
	for {
		var op datatypes.Operation
		if err := conn.ReadJSON(&op); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Fatalf("Watch stream failed: %v", err)
			}
			return
		}
		if err := enc.Encode(op); err != nil {
			return
		}
	}
}

// =============================================================================
// Live Table (bubbletea)
// =============================================================================

// operationMsg carries one frame from the reader goroutine into the
// bubbletea loop.
type operationMsg struct {
	op datatypes.Operation
}

// streamClosedMsg ends the program when the server goes away.
type streamClosedMsg struct {
	err error
}

// watchModel renders the operations seen so far as a table keyed by
// id. Frames upsert rows; nothing is ever removed, so terminal states
// stay visible.
type watchModel struct {
	table  table.Model
	ops    map[uint64]datatypes.Operation
	closed bool
	err    error
}

func newWatchModel() watchModel {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Status", Width: 12},
		{Title: "Title", Width: 40},
		{Title: "Components", Width: 24},
		{Title: "Operators", Width: 18},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ux.ColorSteelDeep).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(ux.ColorTar).
		Background(ux.ColorSteelBright).
		Bold(false)
	t.SetStyles(styles)

	return watchModel{
		table: t,
		ops:   make(map[uint64]datatypes.Operation),
	}
}

func (m watchModel) Init() tea.Cmd {
	return nil
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		if msg.Height > 8 {
			m.table.SetHeight(msg.Height - 5)
		}
		return m, nil

	case operationMsg:
		m.ops[msg.op.ID] = msg.op
		m.table.SetRows(buildWatchRows(m.ops))
		return m, nil

	case streamClosedMsg:
		m.closed = true
		m.err = msg.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	if m.closed {
		return ""
	}
	title := ux.Styles.Title.Render(fmt.Sprintf("%s Switchyard watch", ux.IconSignal))
	help := ux.Styles.Muted.Render("↑/↓ to scroll, q to quit")
	return title + "\n" + m.table.View() + "\n" + help + "\n"
}

// buildWatchRows flattens the operation map into table rows sorted by
// id, so updates never shuffle the display order.
func buildWatchRows(ops map[uint64]datatypes.Operation) []table.Row {
	ids := make([]uint64, 0, len(ops))
	for id := range ops {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		op := ops[id]
		rows = append(rows, table.Row{
			strconv.FormatUint(op.ID, 10),
			string(op.Status),
			op.Title,
			strings.Join(op.Components, ","),
			strings.Join(op.Operators, ","),
		})
	}
	return rows
}

func runWatchTUI(conn *websocket.Conn) {
	p := tea.NewProgram(newWatchModel(), tea.WithOutput(os.Stderr))

	// Reader goroutine: forward frames into the program. Sending after
	// the program exits is a harmless no-op.
	go func() {
		for {
			var op datatypes.Operation
			if err := conn.ReadJSON(&op); err != nil {
				p.Send(streamClosedMsg{err: err})
				return
			}
			p.Send(operationMsg{op: op})
		}
	}()

	finalModel, err := p.Run()
	if err != nil {
		log.Fatalf("Watch display failed: %v", err)
	}

	if m, ok := finalModel.(watchModel); ok && m.closed {
		if m.err != nil && websocket.IsUnexpectedCloseError(m.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			ux.Warning("The coordinator closed the watch stream")
			return
		}
		ux.Info("Watch stream ended")
	}
}
