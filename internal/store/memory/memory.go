// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package memory keeps the location history in process memory. It is meant for ephemeral
// tracking sessions and tests.
package memory

import (
	"context"
	"sync"

	"github.com/wneessen/geotrail/internal/history"
	"github.com/wneessen/geotrail/internal/vartype"
)

const name = "memory"

type Store struct {
	mu    sync.RWMutex
	hist  vartype.Variable[history.History]
	saves int
}

func New() *Store {
	return &Store{}
}

// NewWithHistory returns a Store that already holds hist.
func NewWithHistory(hist history.History) *Store {
	return &Store{hist: vartype.NewVariable(hist.Clone())}
}

func (s *Store) Name() string {
	return name
}

// Load returns a copy of the stored history, or an absent value if nothing was saved yet.
func (s *Store) Load(ctx context.Context) (vartype.Variable[history.History], error) {
	if err := ctx.Err(); err != nil {
		return vartype.None[history.History](), err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist, ok := s.hist.Get()
	if !ok {
		return vartype.None[history.History](), nil
	}
	return vartype.NewVariable(hist.Clone()), nil
}

func (s *Store) Save(ctx context.Context, hist history.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.Set(hist.Clone())
	s.saves++
	return nil
}

// Saves returns how often Save succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
