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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/switchyard/cmd/switchyard/config"
	"github.com/AleutianAI/switchyard/pkg/ux"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

func runComponentCreate(cmd *cobra.Command, args []string) {
	name := args[0]
	owners := componentOwners
	if len(owners) == 0 && config.Global.Auth.Username != "" {
		owners = []string{config.Global.Auth.Username}
	}

	client := newClient()
	req := datatypes.CreateComponentRequest{
		Name:        name,
		Description: componentDescription,
		Owners:      owners,
	}
	var resp datatypes.OKResponse
	if err := client.do("POST", "/api/v1/components", req, &resp); err != nil {
		log.Fatalf("Failed to create the component: %v", err)
	}
	ux.Success(fmt.Sprintf("Component %s registered", name))
}

func runComponentGet(cmd *cobra.Command, args []string) {
	client := newClient()
	var resp datatypes.ComponentResponse
	if err := client.do("GET", "/api/v1/components/"+args[0], nil, &resp); err != nil {
		log.Fatalf("Failed to fetch the component: %v", err)
	}
	renderComponent(resp.Component)
}

func runComponentList(cmd *cobra.Command, args []string) {
	client := newClient()
	var resp datatypes.ComponentsResponse
	if err := client.do("GET", "/api/v1/components", nil, &resp); err != nil {
		log.Fatalf("Failed to list components: %v", err)
	}
	if len(resp.Components) == 0 {
		ux.Info("No components registered yet.")
		return
	}
	for _, c := range resp.Components {
		renderComponentLine(c)
	}
}
