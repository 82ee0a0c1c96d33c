// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Registry holds the live sessions of a server.
//
// Description:
//
//	Defaults are applied to every session created afterwards, before the
//	per-call options. SetDefaults replaces them, which is how a config
//	reload reaches new sessions without touching existing ones.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	defaults []Option
	closed   bool
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger, defaults ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		defaults: defaults,
		logger:   logger,
	}
}

// SetDefaults replaces the options applied to new sessions.
func (r *Registry) SetDefaults(defaults ...Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = defaults
}

// Create registers a new session with a random UUID.
func (r *Registry) Create(opts ...Option) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}

	all := make([]Option, 0, len(r.defaults)+len(opts)+1)
	all = append(all, WithLogger(r.logger))
	all = append(all, r.defaults...)
	all = append(all, opts...)

	s := New(uuid.NewString(), all...)
	r.sessions[s.id] = s
	r.logger.Info("session created",
		slog.String("session_id", s.id),
		slog.Int("sessions", len(r.sessions)))
	return s, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove closes and unregisters a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	return s.Close()
}

// IDs returns the registered session IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close closes every session. Later Create calls fail with
// ErrRegistryClosed. Idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
