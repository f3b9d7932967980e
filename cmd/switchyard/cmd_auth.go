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
	"log"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/switchyard/cmd/switchyard/config"
	"github.com/AleutianAI/switchyard/pkg/ux"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// runLogin authenticates against the coordinator and stores the issued
// bearer token in the user's config. The username comes from the
// argument, the config, or an interactive prompt, in that order.
func runLogin(cmd *cobra.Command, args []string) {
	username := ""
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		username = config.Global.Auth.Username
	}
	if username == "" && ux.IsInteractive() {
		prompt := huh.NewInput().
			Title("Username").
			Description("The operator name the coordinator will know you by").
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("username must not be empty")
				}
				return nil
			}).
			Value(&username)
		if err := huh.NewForm(huh.NewGroup(prompt)).Run(); err != nil {
			log.Fatalf("Login aborted: %v", err)
		}
		username = strings.TrimSpace(username)
	}
	if username == "" {
		log.Fatalf("No username given. Run `switchyard auth login <username>`.")
	}

	client := newClient()
	var resp datatypes.AuthResponse
	err := client.do("POST", "/api/v1/auth", datatypes.AuthRequest{Username: username}, &resp)
	if err != nil {
		log.Fatalf("Authentication failed: %v", err)
	}

	config.Global.Auth.Username = username
	config.Global.Auth.Token = resp.Token
	if err := config.Save(); err != nil {
		log.Fatalf("Authenticated, but failed to store the token: %v", err)
	}

	ux.Success(fmt.Sprintf("Logged in as %s", username))
	ux.KeyValue("server", client.baseURL)
}
