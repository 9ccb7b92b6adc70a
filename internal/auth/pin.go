/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
)

// SessionTTL is how long an unlocked editor session lasts.
const SessionTTL = 12 * time.Hour

// PINLength is the exact number of digits in a PIN.
const PINLength = 4

var (
	ErrLockedOut    = errors.New("too many attempts")
	ErrInvalidPIN   = errors.New("wrong pin")
	ErrMalformedPIN = errors.New("pin must be exactly 4 digits")
)

// LockoutError reports how long a client must wait.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LockoutError) Unwrap() error { return ErrLockedOut }

// AttemptError reports a wrong PIN and the attempts left before lockout.
type AttemptError struct {
	Remaining int
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("wrong pin, %d attempts left", e.Remaining)
}

func (e *AttemptError) Unwrap() error { return ErrInvalidPIN }

// PINStore holds the pin setting. *store.Store satisfies it.
type PINStore interface {
	Settings(ctx context.Context) (models.Settings, error)
	SetSetting(ctx context.Context, key string, value any) error
}

type attempts struct {
	failures    int
	lockedUntil time.Time
	lastSeen    time.Time
}

// Gate checks PINs, tracks failures per client and issues session tokens.
type Gate struct {
	store       PINStore
	secret      []byte
	maxAttempts int
	lockout     time.Duration
	logger      zerolog.Logger
	now         func() time.Time

	mu      sync.Mutex
	clients map[string]*attempts
}

// NewGate creates a gate from config.
func NewGate(cfg *config.Config, st PINStore, logger zerolog.Logger) *Gate {
	return &Gate{
		store:       st,
		secret:      []byte(cfg.JWTSigningKey),
		maxAttempts: cfg.PINMaxAttempts,
		lockout:     cfg.PINLockout,
		logger:      logger.With().Str("component", "pin_gate").Logger(),
		now:         time.Now,
		clients:     make(map[string]*attempts),
	}
}

// ValidatePIN checks the PIN shape.
func ValidatePIN(pin string) error {
	if len(pin) != PINLength {
		return ErrMalformedPIN
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return ErrMalformedPIN
		}
	}
	return nil
}

// HashPIN returns the bcrypt hash stored in settings.
func HashPIN(pin string) (string, error) {
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hash), nil
}

// Unlock verifies pin for client and returns a session token.
func (g *Gate) Unlock(ctx context.Context, client, pin string) (string, time.Time, error) {
	if err := g.checkLockout(client); err != nil {
		telemetry.PINAttemptsTotal.WithLabelValues("locked").Inc()
		return "", time.Time{}, err
	}
	if err := ValidatePIN(pin); err != nil {
		telemetry.PINAttemptsTotal.WithLabelValues("malformed").Inc()
		return "", time.Time{}, err
	}

	settings, err := g.store.Settings(ctx)
	if err != nil {
		return "", time.Time{}, err
	}

	ok, legacy := matchPIN(settings.PIN, pin)
	if !ok {
		telemetry.PINAttemptsTotal.WithLabelValues("invalid").Inc()
		return "", time.Time{}, g.recordFailure(client)
	}

	g.mu.Lock()
	delete(g.clients, client)
	g.mu.Unlock()
	telemetry.PINAttemptsTotal.WithLabelValues("ok").Inc()

	if legacy {
		if err := g.SetPIN(ctx, pin); err != nil {
			g.logger.Warn().Err(err).Msg("failed to rehash legacy pin")
		} else {
			g.logger.Info().Msg("rehashed legacy plain-text pin")
		}
	}

	expires := g.now().Add(SessionTTL)
	token, err := Issue(g.secret, Claims{Scope: ScopeEditor, Client: client}, SessionTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue session: %w", err)
	}
	return token, expires, nil
}

// SetPIN validates, hashes and stores a new PIN.
func (g *Gate) SetPIN(ctx context.Context, pin string) error {
	hash, err := HashPIN(pin)
	if err != nil {
		return err
	}
	return g.store.SetSetting(ctx, models.KeyPIN, hash)
}

// matchPIN compares against a bcrypt hash, or a plain value written before
// hashing existed. legacy reports the latter.
func matchPIN(stored, pin string) (ok, legacy bool) {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pin)) == nil, false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(pin)) == 1, true
}

func (g *Gate) checkLockout(client string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.pruneLocked(now)

	a, ok := g.clients[client]
	if !ok || a.lockedUntil.IsZero() {
		return nil
	}
	if now.Before(a.lockedUntil) {
		return &LockoutError{RetryAfter: a.lockedUntil.Sub(now)}
	}
	delete(g.clients, client)
	return nil
}

func (g *Gate) recordFailure(client string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	a, ok := g.clients[client]
	if !ok {
		a = &attempts{}
		g.clients[client] = a
	}
	a.failures++
	a.lastSeen = now

	if a.failures >= g.maxAttempts {
		a.lockedUntil = now.Add(g.lockout)
		g.logger.Warn().Str("client", client).Dur("lockout", g.lockout).Msg("pin gate locked")
		return &LockoutError{RetryAfter: g.lockout}
	}
	return &AttemptError{Remaining: g.maxAttempts - a.failures}
}

// pruneLocked forgets clients idle for longer than a lockout and clients
// whose lockout has run out.
func (g *Gate) pruneLocked(now time.Time) {
	for k, a := range g.clients {
		if a.lockedUntil.IsZero() {
			if now.Sub(a.lastSeen) > g.lockout {
				delete(g.clients, k)
			}
		} else if !now.Before(a.lockedUntil) {
			delete(g.clients, k)
		}
	}
}
