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
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/switchyard/pkg/ux"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// renderOperation prints one operation in full. KeyValue handles the
// machine/styled split, so this reads the same in scripts and shells.
func renderOperation(op datatypes.Operation) {
	ux.Title(fmt.Sprintf("Operation %d", op.ID))
	ux.KeyValue("id", strconv.FormatUint(op.ID, 10))
	ux.KeyValue("title", op.Title)
	ux.KeyValue("status", string(op.Status))
	ux.KeyValue("purpose", op.Purpose)
	ux.KeyValue("url", op.URL)
	ux.KeyValue("components", strings.Join(op.Components, ", "))
	if len(op.Locks) > 0 {
		ux.KeyValue("locks", strings.Join(op.Locks, ", "))
	}
	if len(op.Tags) > 0 {
		ux.KeyValue("tags", strings.Join(op.Tags, ", "))
	}
	if len(op.DependsOn) > 0 {
		ids := make([]string, 0, len(op.DependsOn))
		for _, id := range op.DependsOn {
			ids = append(ids, strconv.FormatUint(id, 10))
		}
		ux.KeyValue("depends_on", strings.Join(ids, ", "))
	}
	ux.KeyValue("operators", strings.Join(op.Operators, ", "))
	if len(op.Annotations) > 0 {
		ux.KeyValue("annotations", formatAnnotations(op.Annotations))
	}
}

// renderOperationTable prints a listing, one row per operation.
func renderOperationTable(ops []datatypes.Operation) {
	if len(ops) == 0 {
		ux.Info("No operations matched.")
		return
	}
	if ux.GetPersonality().Level == ux.PersonalityMachine {
		for _, op := range ops {
			fmt.Printf("%d\t%s\t%s\t%s\n",
				op.ID, op.Status, strings.Join(op.Components, ","), op.Title)
		}
		return
	}

	header := fmt.Sprintf("  %-6s   %-12s %-28s %s", "ID", "STATUS", "COMPONENTS", "TITLE")
	fmt.Println(ux.Styles.Bold.Render(header))
	for _, op := range ops {
		fmt.Printf("  %-6d %s %-12s %-28s %s\n",
			op.ID,
			statusIcon(op.Status),
			op.Status,
			truncate(strings.Join(op.Components, ","), 28),
			op.Title)
	}
}

func renderComponent(c datatypes.Component) {
	ux.Title("Component " + c.Name)
	ux.KeyValue("name", c.Name)
	ux.KeyValue("description", c.Description)
	ux.KeyValue("owners", strings.Join(c.Owners, ", "))
}

func renderComponentLine(c datatypes.Component) {
	if ux.GetPersonality().Level == ux.PersonalityMachine {
		fmt.Printf("%s\t%s\t%s\n", c.Name, strings.Join(c.Owners, ","), c.Description)
		return
	}
	fmt.Printf("  %s %s %s\n",
		ux.IconBullet.Render(),
		ux.Styles.Bold.Render(c.Name),
		ux.Styles.Muted.Render(c.Description))
}

func renderTag(t datatypes.Tag) {
	ux.Title("Tag " + t.Name)
	ux.KeyValue("name", t.Name)
	ux.KeyValue("description", t.Description)
}

func renderTagLine(t datatypes.Tag) {
	if ux.GetPersonality().Level == ux.PersonalityMachine {
		fmt.Printf("%s\t%s\n", t.Name, t.Description)
		return
	}
	fmt.Printf("  %s %s %s\n",
		ux.IconBullet.Render(),
		ux.Styles.Bold.Render(t.Name),
		ux.Styles.Muted.Render(t.Description))
}

// statusIcon maps a lifecycle state to a styled one-cell marker, the
// way a yard signal would show it.
func statusIcon(s datatypes.OperationState) string {
	switch s {
	case datatypes.StateInProgress:
		return ux.Styles.Success.Render(string(ux.IconSignal))
	case datatypes.StatePaused:
		return ux.IconWarning.Render()
	case datatypes.StateCompleted:
		return ux.IconSuccess.Render()
	case datatypes.StateAborted:
		return ux.IconError.Render()
	case datatypes.StateCanceled:
		return ux.Styles.Muted.Render(string(ux.IconError))
	default:
		return ux.IconPending.Render()
	}
}

// formatAnnotations flattens a map into "k=v, k2=v2" with sorted keys
// so output is stable.
func formatAnnotations(annotations map[string]string) string {
	keys := make([]string, 0, len(annotations))
	for k := range annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+annotations[k])
	}
	return strings.Join(pairs, ", ")
}

// truncate shortens s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
