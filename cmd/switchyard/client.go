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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/switchyard/cmd/switchyard/config"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// Constants for default connection settings
const (
	DefaultCoordinatorPort = 12214
	DefaultCoordinatorHost = "localhost"
)

// apiClient talks to one coordinator. The bearer token comes from the
// config written by `switchyard auth login`.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient() *apiClient {
	return &apiClient{
		baseURL: getCoordinatorBaseURL(),
		token:   config.Global.Auth.Token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func getCoordinatorBaseURL() string {
	// 1. Priority: Environment Variable (Used by Tests & Docker overrides)
	if url := os.Getenv("SWITCHYARD_SERVER_URL"); url != "" {
		return strings.TrimSuffix(url, "/")
	}
	// 2. The user's config file
	if url := config.Global.Server.URL; url != "" {
		return strings.TrimSuffix(url, "/")
	}
	// 3. Default: Standard Host/Port
	return fmt.Sprintf("http://%s:%d", DefaultCoordinatorHost, DefaultCoordinatorPort)
}

// watchURL converts the coordinator base URL into the websocket form.
func (c *apiClient) watchURL() string {
	url := c.baseURL + "/api/v1/subscriptions/watch"
	if strings.HasPrefix(url, "https://") {
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	return "ws://" + strings.TrimPrefix(url, "http://")
}

// do sends one JSON request and decodes the envelope into out. Non-2xx
// responses come back as errors carrying the server's message.
func (c *apiClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode the request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build the request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach the coordinator at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse the coordinator response: %w", err)
		}
	}
	return nil
}

// decodeError turns a failure envelope into a readable error. If the
// body is not the expected envelope the status code has to do.
func decodeError(resp *http.Response) error {
	var apiErr datatypes.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%s (run `switchyard auth login` first)", apiErr.Error)
		}
		return errors.New(apiErr.Error)
	}
	return fmt.Errorf("coordinator returned status %d", resp.StatusCode)
}

// parseOperationID parses a positional id argument.
func parseOperationID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid operation id %q", arg)
	}
	return id, nil
}

// parseOperationIDs parses a --depends-on style list of ids.
func parseOperationIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, arg := range args {
		id, err := parseOperationID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
