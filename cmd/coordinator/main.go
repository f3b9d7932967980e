// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command coordinator starts the Switchyard coordination server.
//
// This is the main entry point for the containerized coordinator
// service. It reads configuration from environment variables and runs
// until SIGINT or SIGTERM, saving state one last time on the way out.
//
// # Environment Variables
//
//   - COORDINATOR_PORT: HTTP server port (default: 12214)
//   - COORDINATOR_AUTH_MODE: jwt or none (default: jwt)
//   - COORDINATOR_JWT_SECRET: token signing secret for jwt mode
//   - COORDINATOR_SAVE_INTERVAL: snapshot save cadence (default: 10s)
//   - COORDINATOR_SNAPSHOT_BACKEND: file or badger (default: file)
//   - COORDINATOR_SNAPSHOT_PATH: snapshot file, or badger directory
//   - COORDINATOR_AUTH_RATE: token issuance rate per client IP (default: 5)
//   - COORDINATOR_AUTH_BURST: token issuance burst (default: 10)
//   - GCS_SNAPSHOT_BUCKET: Cloud Storage bucket for snapshot mirroring (optional)
//   - GCS_CREDENTIALS_FILE: service account key for mirroring (optional)
//   - INFLUX_URL: InfluxDB endpoint for the audit trail (optional)
//   - INFLUX_TOKEN, INFLUX_ORG, INFLUX_BUCKET: InfluxDB credentials
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - COORDINATOR_LOG_DIR: also write logs to this directory (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: localhost:4317)
//
// # Usage
//
//	# Build
//	go build -o coordinator ./cmd/coordinator
//
//	# Run
//	./coordinator
//
//	# Or via container
//	podman-compose up coordinator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/switchyard/pkg/logging"
	"github.com/AleutianAI/switchyard/services/coordinator"
)

func main() {
	// Setup structured logging
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("LOG_LEVEL")),
		LogDir:  os.Getenv("COORDINATOR_LOG_DIR"),
		Service: "coordinator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := coordinator.Config{
		Port:               getEnvInt("COORDINATOR_PORT", coordinator.DefaultPort),
		AuthMode:           getEnvString("COORDINATOR_AUTH_MODE", "jwt"),
		SaveInterval:       getEnvDuration("COORDINATOR_SAVE_INTERVAL", coordinator.DefaultSaveInterval),
		SnapshotBackend:    getEnvString("COORDINATOR_SNAPSHOT_BACKEND", "file"),
		SnapshotPath:       os.Getenv("COORDINATOR_SNAPSHOT_PATH"),
		GCSBucket:          os.Getenv("GCS_SNAPSHOT_BUCKET"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		InfluxURL:          os.Getenv("INFLUX_URL"),
		InfluxToken:        os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:          os.Getenv("INFLUX_ORG"),
		InfluxBucket:       os.Getenv("INFLUX_BUCKET"),
		AuthRatePerSecond:  getEnvFloat("COORDINATOR_AUTH_RATE", coordinator.DefaultAuthRatePerSecond),
		AuthBurst:          getEnvInt("COORDINATOR_AUTH_BURST", coordinator.DefaultAuthBurst),
	}

	slog.Info("Starting coordinator",
		"port", cfg.Port,
		"auth_mode", cfg.AuthMode,
		"snapshot_backend", cfg.SnapshotBackend,
	)

	// Create coordinator with default (no-op) extension options
	// Enterprise builds will pass custom ServiceOptions here
	svc, err := coordinator.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create coordinator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Coordinator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
