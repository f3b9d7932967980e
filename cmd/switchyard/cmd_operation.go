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
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/AleutianAI/switchyard/cmd/switchyard/config"
	"github.com/AleutianAI/switchyard/pkg/ux"
	"github.com/AleutianAI/switchyard/pkg/validation"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// draftInstructions frames the prompt for `operation create --draft`.
// The fixed output shape keeps parseDraft simple.
const draftInstructions = `You write change-management records for infrastructure teams.
From the description below produce exactly two lines:
TITLE: <one imperative line, under 80 characters>
PURPOSE: <one or two sentences on why the change is needed>
Do not add anything else.

Description: `

func runOperationCreate(cmd *cobra.Command, args []string) {
	if draftPrompt != "" {
		if err := draftOperationText(); err != nil {
			log.Fatalf("Drafting failed: %v", err)
		}
	}
	if opTitle == "" && ux.IsInteractive() {
		if err := promptOperationForm(); err != nil {
			log.Fatalf("Create aborted: %v", err)
		}
	}

	dependsOn, err := parseOperationIDs(opDependsOn)
	if err != nil {
		log.Fatalf("Invalid --depends-on value: %v", err)
	}

	// Catch the obvious mistakes before bothering the coordinator.
	draft := validation.OperationDraft{
		Title:      opTitle,
		Purpose:    opPurpose,
		URL:        opURL,
		Components: opComponents,
		Locks:      opLocks,
		Operators:  opOperators,
	}
	if err := validation.CheckOperationDraft(draft); err != nil {
		log.Fatalf("Refusing to send the operation: %v", err)
	}

	client := newClient()
	req := datatypes.CreateOperationRequest{
		Title:       opTitle,
		Purpose:     opPurpose,
		URL:         opURL,
		Components:  opComponents,
		Locks:       opLocks,
		Tags:        opTags,
		DependsOn:   dependsOn,
		Operators:   opOperators,
		Annotations: opAnnotations,
	}
	var resp datatypes.CreateOperationResponse
	if err := client.do("POST", "/api/v1/operations", req, &resp); err != nil {
		log.Fatalf("Failed to create the operation: %v", err)
	}

	ux.Success(fmt.Sprintf("Operation %d planned: %s", resp.ID, opTitle))
	ux.KeyValue("id", strconv.FormatUint(resp.ID, 10))
}

func runOperationGet(cmd *cobra.Command, args []string) {
	id, err := parseOperationID(args[0])
	if err != nil {
		log.Fatalf("%v", err)
	}
	client := newClient()
	var resp datatypes.OperationResponse
	if err := client.do("GET", fmt.Sprintf("/api/v1/operations/%d", id), nil, &resp); err != nil {
		log.Fatalf("Failed to fetch the operation: %v", err)
	}
	renderOperation(resp.Operation)
}

func runOperationList(cmd *cobra.Command, args []string) {
	query := url.Values{}
	for _, c := range filterComponents {
		query.Add("component", c)
	}
	for _, t := range filterTags {
		query.Add("tag", t)
	}
	for _, o := range filterOperators {
		query.Add("operator", o)
	}
	for _, s := range filterStatuses {
		query.Add("status", s)
	}
	path := "/api/v1/operations"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	client := newClient()
	var resp datatypes.OperationsResponse
	if err := client.do("GET", path, nil, &resp); err != nil {
		log.Fatalf("Failed to list operations: %v", err)
	}
	renderOperationTable(resp.Operations)
}

func runOperationUpdate(cmd *cobra.Command, args []string) {
	id, err := parseOperationID(args[0])
	if err != nil {
		log.Fatalf("%v", err)
	}

	req := datatypes.UpdateOperationRequest{}
	changed := false
	flags := cmd.Flags()
	if flags.Changed("title") {
		req.Title = &opTitle
		changed = true
	}
	if flags.Changed("purpose") {
		req.Purpose = &opPurpose
		changed = true
	}
	if flags.Changed("url") {
		req.URL = &opURL
		changed = true
	}
	if flags.Changed("components") {
		req.Components = &opComponents
		changed = true
	}
	if flags.Changed("locks") {
		req.Locks = &opLocks
		changed = true
	}
	if flags.Changed("tags") {
		req.Tags = &opTags
		changed = true
	}
	if flags.Changed("depends-on") {
		ids, err := parseOperationIDs(opDependsOn)
		if err != nil {
			log.Fatalf("Invalid --depends-on value: %v", err)
		}
		req.DependsOn = &ids
		changed = true
	}
	if flags.Changed("operators") {
		req.Operators = &opOperators
		changed = true
	}
	if len(opAnnotations) > 0 {
		req.Annotations = opAnnotations
		changed = true
	}
	if status, _ := flags.GetString("status"); status != "" {
		req.Status = &status
		changed = true
	}
	if !changed {
		log.Fatalf("Nothing to update. Pass at least one field flag.")
	}

	client := newClient()
	var resp datatypes.OKResponse
	if err := client.do("PATCH", fmt.Sprintf("/api/v1/operations/%d", id), req, &resp); err != nil {
		log.Fatalf("Failed to update the operation: %v", err)
	}
	ux.Success(fmt.Sprintf("Operation %d updated", id))
}

// makeStatusCommand builds a Run function that moves an operation into
// one fixed lifecycle state.
func makeStatusCommand(status string) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		id, err := parseOperationID(args[0])
		if err != nil {
			log.Fatalf("%v", err)
		}
		client := newClient()
		req := datatypes.UpdateOperationRequest{Status: &status}
		var resp datatypes.OKResponse
		if err := client.do("PATCH", fmt.Sprintf("/api/v1/operations/%d", id), req, &resp); err != nil {
			log.Fatalf("Failed to move operation %d to %s: %v", id, status, err)
		}
		ux.Success(fmt.Sprintf("Operation %d is now %s", id, status))
	}
}

// promptOperationForm collects the required fields interactively when
// the user ran `operation create` bare in a terminal.
func promptOperationForm() error {
	components := strings.Join(opComponents, ",")
	locks := strings.Join(opLocks, ",")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Description("One imperative line describing the change").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title must not be empty")
					}
					return nil
				}).
				Value(&opTitle),
			huh.NewText().
				Title("Purpose").
				Description("Why the change is happening").
				Value(&opPurpose),
			huh.NewInput().
				Title("URL").
				Description("Runbook, ticket, or PR link").
				Placeholder("https://").
				Value(&opURL),
			huh.NewInput().
				Title("Components").
				Description("Comma-separated component names the operation touches").
				Value(&components),
			huh.NewInput().
				Title("Locks").
				Description("Comma-separated subset of the components to lock").
				Value(&locks),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	opTitle = strings.TrimSpace(opTitle)
	opComponents = splitCSV(components)
	opLocks = splitCSV(locks)
	return nil
}

// draftOperationText asks a local ollama model to draft the title and
// purpose from --draft. Explicit flags win over drafted text.
func draftOperationText() error {
	model := draftModel
	if model == "" {
		model = config.Global.Draft.Model
	}
	if model == "" {
		model = "llama3.2"
	}
	serverURL := config.Global.Draft.ServerURL
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}

	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverURL))
	if err != nil {
		return fmt.Errorf("failed to set up ollama at %s: %w", serverURL, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var completion string
	err = ux.WithSpinner("Drafting the operation with "+model, func() error {
		var genErr error
		completion, genErr = llms.GenerateFromSinglePrompt(ctx, llm,
			draftInstructions+draftPrompt, llms.WithTemperature(0.2))
		return genErr
	})
	if err != nil {
		return fmt.Errorf("the model could not draft the operation: %w", err)
	}

	title, purpose := parseDraft(completion)
	if title == "" {
		return fmt.Errorf("the model returned nothing usable; pass --title instead")
	}
	if opTitle == "" {
		opTitle = title
	}
	if opPurpose == "" && purpose != "" {
		opPurpose = purpose
	}
	ux.Info("Drafted: " + opTitle)
	return nil
}

// parseDraft extracts the TITLE and PURPOSE lines from a model
// completion. Lines before the markers are ignored; purpose keeps
// collecting until the next marker or the end.
func parseDraft(completion string) (title, purpose string) {
	var purposeLines []string
	inPurpose := false
	for _, line := range strings.Split(completion, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, "TITLE:"):
			title = strings.TrimSpace(trimmed[len("TITLE:"):])
			inPurpose = false
		case strings.HasPrefix(upper, "PURPOSE:"):
			purposeLines = append(purposeLines, strings.TrimSpace(trimmed[len("PURPOSE:"):]))
			inPurpose = true
		case inPurpose && trimmed == "":
			// A blank line ends the purpose paragraph; anything after
			// it is model chatter.
			inPurpose = false
		case inPurpose:
			purposeLines = append(purposeLines, trimmed)
		}
	}
	return title, strings.TrimSpace(strings.Join(purposeLines, " "))
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
