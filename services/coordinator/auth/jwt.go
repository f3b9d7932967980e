// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth implements the coordinator's JWT-backed credential provider.
//
// Tokens are HMAC-signed (HS256) bearer credentials carrying the username
// and an expiry. The signing key is sealed in a memguard enclave so it is
// encrypted at rest in process memory and never written to swap. On systems
// where the mlock limit is too low for sealed storage, the provider refuses
// to start unless the operator explicitly opts into keeping the key in
// ordinary memory.
//
// # Key Material
//
// The key is read from COORDINATOR_JWT_SECRET. When unset, a built-in
// development secret is used and a warning is logged; every deployment
// that faces more than one machine should set its own secret.
//
// # Shutdown
//
// Call PurgeSecrets during graceful shutdown to wipe all sealed key
// material before the process exits.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sys/unix"

	"github.com/AleutianAI/switchyard/pkg/extensions"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// TokenLifetime is how long an issued session token stays valid.
	// Sessions are long-lived: the coordinator is an internal tool and
	// re-authentication once a year keeps the CLI workflow frictionless.
	TokenLifetime = 365 * 24 * time.Hour

	// TokenIssuer is the iss claim stamped on every issued token.
	TokenIssuer = "switchyard-coordinator"

	// EnvJWTSecret names the environment variable holding the signing key.
	EnvJWTSecret = "COORDINATOR_JWT_SECRET"

	// EnvInsecureMemory opts into plain-memory key storage on systems
	// where the mlock limit is too low for sealed storage.
	EnvInsecureMemory = "COORDINATOR_INSECURE_MEMORY"

	// MinMlockLimitKB is the minimum mlock limit required for sealed key
	// storage. The enclave itself is small; the limit covers the guard
	// pages and canary buffers memguard allocates around it.
	MinMlockLimitKB = 64

	// devFallbackSecret signs tokens when COORDINATOR_JWT_SECRET is unset.
	// Fine for a laptop, useless as a secret anywhere else.
	devFallbackSecret = "switchyard-dev-secret-do-not-deploy"
)

// =============================================================================
// Package Variables
// =============================================================================

var (
	// memguardInitOnce ensures secure memory initialization happens only once.
	memguardInitOnce sync.Once

	// mlockSufficient is set during initialization to indicate if sealed
	// key storage is available.
	mlockSufficient bool

	// currentMlockLimitKB stores the current mlock limit for logging.
	currentMlockLimitKB int64
)

// =============================================================================
// Claims
// =============================================================================

// sessionClaims is the JWT payload for coordinator sessions.
type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// =============================================================================
// Provider
// =============================================================================

// JWTProvider issues and validates HS256 session tokens.
//
// Exactly one of enclave or plain holds the signing key. The enclave is
// preferred; plain storage exists for the explicit insecure-memory
// override and for tests.
//
// JWTProvider is safe for concurrent use.
type JWTProvider struct {
	enclave  *memguard.Enclave
	plain    []byte
	lifetime time.Duration
}

// Compile-time check that JWTProvider satisfies the extension seam.
var _ extensions.AuthProvider = (*JWTProvider)(nil)

// NewJWTProvider builds a provider from the process environment.
//
// The signing key comes from COORDINATOR_JWT_SECRET, falling back to the
// built-in development secret with a warning. The key is sealed into a
// memguard enclave when the system's mlock limit allows it.
//
// Returns an error when sealed storage is unavailable and the
// COORDINATOR_INSECURE_MEMORY override is not set.
func NewJWTProvider() (*JWTProvider, error) {
	secret := strings.TrimSpace(os.Getenv(EnvJWTSecret))
	if secret == "" {
		slog.Warn("signing key not configured, using built-in development secret",
			"env", EnvJWTSecret,
		)
		secret = devFallbackSecret
	}
	return newProvider([]byte(secret))
}

// NewJWTProviderWithSecret builds a provider around the given key without
// touching secure memory. The provider takes its own copy of the key.
//
// Intended for tests; production code should use NewJWTProvider.
func NewJWTProviderWithSecret(secret []byte) *JWTProvider {
	return &JWTProvider{
		plain:    append([]byte(nil), secret...),
		lifetime: TokenLifetime,
	}
}

// newProvider seals the secret according to the system's mlock capability.
func newProvider(secret []byte) (*JWTProvider, error) {
	initMemguard()

	// NewEnclave wipes its input, so hand it an owned copy.
	owned := append([]byte(nil), secret...)

	if mlockSufficient {
		return &JWTProvider{
			enclave:  memguard.NewEnclave(owned),
			lifetime: TokenLifetime,
		}, nil
	}

	if os.Getenv(EnvInsecureMemory) == "true" {
		slog.Warn("keeping signing key in ordinary memory due to mlock limits",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
		)
		return &JWTProvider{
			plain:    owned,
			lifetime: TokenLifetime,
		}, nil
	}

	return nil, fmt.Errorf(
		"mlock limit insufficient for sealed key storage: have %d KB, need %d KB. "+
			"Raise the limit or set %s=true",
		currentMlockLimitKB, MinMlockLimitKB, EnvInsecureMemory,
	)
}

// Issue creates a signed session token bound to the username.
//
// The token carries the username, issuer, issue time, and an expiry
// TokenLifetime in the future.
func (p *JWTProvider) Issue(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("cannot issue token for blank username")
	}

	now := time.Now()
	claims := sessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.lifetime)),
		},
	}

	key, release, err := p.openKey()
	if err != nil {
		return "", err
	}
	defer release()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token.
//
// Only HS256 signatures are accepted, and the expiry claim is mandatory:
// a token without exp is rejected even when the signature checks out.
// All verification failures are reported as extensions.ErrUnauthorized
// so callers can map them uniformly.
func (p *JWTProvider) Validate(ctx context.Context, token string) (*extensions.AuthInfo, error) {
	key, release, err := p.openKey()
	if err != nil {
		return nil, err
	}
	defer release()

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extensions.ErrUnauthorized, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Username) == "" {
		return nil, fmt.Errorf("%w: token carries no username", extensions.ErrUnauthorized)
	}

	info := &extensions.AuthInfo{
		Username: strings.TrimSpace(claims.Username),
		Metadata: extensions.NewMetadata().Set("issuer", claims.Issuer),
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// openKey exposes the signing key for the duration of one operation.
//
// The caller must invoke release when done; for sealed keys this wipes
// the decrypted copy.
func (p *JWTProvider) openKey() (key []byte, release func(), err error) {
	if p.enclave != nil {
		buf, err := p.enclave.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open sealed signing key: %w", err)
		}
		return buf.Bytes(), buf.Destroy, nil
	}
	return p.plain, func() {}, nil
}

// =============================================================================
// Secure Memory Initialization
// =============================================================================

// initMemguard checks mlock limits once per process.
//
// Interrupt handling is deliberately left to the service: the coordinator
// must write a final snapshot before exit, so it purges key material in
// its own shutdown path (see PurgeSecrets) rather than letting memguard
// terminate the process on SIGINT.
func initMemguard() {
	memguardInitOnce.Do(func() {
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		if mlockSufficient {
			slog.Info("secure key memory initialized",
				"mlock_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
			)
		} else {
			slog.Warn("mlock limit insufficient for sealed key storage",
				"current_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
				"override", EnvInsecureMemory+"=true",
			)
		}
	})
}

// checkMlockLimit queries the kernel for the mlock resource limit.
//
// Returns whether the limit is sufficient and the limit itself in
// kilobytes (-1 when unlimited). An unreadable limit is treated as
// sufficient so exotic platforms degrade to a runtime allocation error
// rather than a refusal to start.
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("could not determine mlock limit", "error", err)
		return true, -1
	}

	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}

	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}

// PurgeSecrets wipes all sealed key material.
//
// Called during graceful shutdown after the final snapshot is written.
// Safe to call multiple times.
func PurgeSecrets() {
	memguard.Purge()
	slog.Info("purged sealed key material")
}
