// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

type SwitchyardConfig struct {
	// Server: where the coordinator lives
	Server ServerConfig `yaml:"server"`

	// Auth: identity and the bearer token from the last login
	Auth AuthConfig `yaml:"auth"`

	// Draft: local model settings for drafting operation text
	Draft DraftConfig `yaml:"draft"`
}

type ServerConfig struct {
	URL string `yaml:"url"` // e.g. http://localhost:12214
}

type AuthConfig struct {
	Username string `yaml:"username"`
	Token    string `yaml:"token,omitempty"`
}

type DraftConfig struct {
	// Model is the ollama model used by `operation create --draft`.
	Model string `yaml:"model"`
	// ServerURL is the ollama endpoint.
	ServerURL string `yaml:"server_url"`
}

func DefaultConfig() SwitchyardConfig {
	return SwitchyardConfig{
		Server: ServerConfig{
			URL: "http://localhost:12214",
		},
		Auth: AuthConfig{},
		Draft: DraftConfig{
			Model:     "llama3.2",
			ServerURL: "http://localhost:11434",
		},
	}
}
