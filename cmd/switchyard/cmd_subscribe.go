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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/switchyard/pkg/ux"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

func runSubscribeOperation(cmd *cobra.Command, args []string) {
	id, err := parseOperationID(args[0])
	if err != nil {
		log.Fatalf("%v", err)
	}
	sendSubscribe(datatypes.SubscribeRequest{Operation: &id},
		fmt.Sprintf("operation %d", id))
}

func runSubscribeComponent(cmd *cobra.Command, args []string) {
	name := args[0]
	sendSubscribe(datatypes.SubscribeRequest{Component: &name},
		fmt.Sprintf("component %s", name))
}

func runSubscribeTag(cmd *cobra.Command, args []string) {
	name := args[0]
	sendSubscribe(datatypes.SubscribeRequest{Tag: &name},
		fmt.Sprintf("tag %s", name))
}

func sendSubscribe(req datatypes.SubscribeRequest, what string) {
	client := newClient()
	var resp datatypes.OKResponse
	if err := client.do("POST", "/api/v1/subscriptions", req, &resp); err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", what, err)
	}
	ux.Success("Subscribed to " + what)
}

func runListSubscriptions(cmd *cobra.Command, args []string) {
	client := newClient()
	var resp datatypes.SubscriptionsResponse
	if err := client.do("GET", "/api/v1/subscriptions", nil, &resp); err != nil {
		log.Fatalf("Failed to list subscriptions: %v", err)
	}

	if len(resp.Operations) == 0 && len(resp.Components) == 0 && len(resp.Tags) == 0 {
		ux.Info("No subscriptions yet. Try `switchyard subscribe component <name>`.")
		return
	}

	if len(resp.Operations) > 0 {
		ids := make([]string, 0, len(resp.Operations))
		for _, id := range resp.Operations {
			ids = append(ids, strconv.FormatUint(id, 10))
		}
		ux.KeyValue("operations", strings.Join(ids, ", "))
	}
	if len(resp.Components) > 0 {
		ux.KeyValue("components", strings.Join(resp.Components, ", "))
	}
	if len(resp.Tags) > 0 {
		ux.KeyValue("tags", strings.Join(resp.Tags, ", "))
	}
}
