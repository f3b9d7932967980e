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

	"github.com/AleutianAI/switchyard/pkg/ux"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

func runTagCreate(cmd *cobra.Command, args []string) {
	name := args[0]
	client := newClient()
	req := datatypes.CreateTagRequest{
		Name:        name,
		Description: tagDescription,
	}
	var resp datatypes.OKResponse
	if err := client.do("POST", "/api/v1/tags", req, &resp); err != nil {
		log.Fatalf("Failed to create the tag: %v", err)
	}
	ux.Success(fmt.Sprintf("Tag %s registered", name))
}

func runTagGet(cmd *cobra.Command, args []string) {
	client := newClient()
	var resp datatypes.TagResponse
	if err := client.do("GET", "/api/v1/tags/"+args[0], nil, &resp); err != nil {
		log.Fatalf("Failed to fetch the tag: %v", err)
	}
	renderTag(resp.Tag)
}

func runTagList(cmd *cobra.Command, args []string) {
	client := newClient()
	var resp datatypes.TagsResponse
	if err := client.do("GET", "/api/v1/tags", nil, &resp); err != nil {
		log.Fatalf("Failed to list tags: %v", err)
	}
	if len(resp.Tags) == 0 {
		ux.Info("No tags registered yet.")
		return
	}
	for _, t := range resp.Tags {
		renderTagLine(t)
	}
}
