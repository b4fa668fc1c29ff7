// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geobus fans in position fixes from geolocation providers and hands them to subscribers.
package geobus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/logger"
)

const (
	accuracyEpsilon = 1e-6
	initialBackoff  = time.Second
	maxBackoff      = 30 * time.Second

	// StaleAfter is the age after which the best result of a key may be displaced by a less
	// accurate one that reports a significantly different position.
	StaleAfter = 10 * time.Minute
)

const (
	AccuracyCountry = 300000
	AccuracyRegion  = 100000
	AccuracyCity    = 15000
	AccuracyZip     = 3000
	AccuracyUnknown = 1000000
	TruncPrecision  = 6
)

// Provider defines an interface for geolocation service providers.
// It supports retrieving streamed results for a given key.
type Provider interface {
	Name() string
	LookupStream(ctx context.Context, key string) <-chan Result
}

// GeoBus distributes the best result per key to all subscribers and remembers the latest
// result of each source.
type GeoBus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	best        map[string]Result
	latest      map[string]Result
	subscribers map[chan Result]struct{}
}

// Result represents a single position fix reported by a provider.
type Result struct {
	Key            string
	Lat, Lon       float64
	Alt            float64
	AccuracyMeters float64
	Source         string
	At             time.Time
	// Mocked marks fixes that were not measured, e.g. a position configured by the user.
	Mocked bool
}

// Coordinate returns the position of the result.
func (r Result) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: r.Lat, Lon: r.Lon, Acc: r.AccuracyMeters}
}

// accuracy returns the accuracy radius in meters. Results without one count as unknown.
func (r Result) accuracy() float64 {
	if r.AccuracyMeters <= 0 {
		return AccuracyUnknown
	}
	return r.AccuracyMeters
}

// BetterThan reports whether r is more accurate than prev and not older.
func (r Result) BetterThan(prev Result) bool {
	if prev.Key == "" && prev.Source == "" {
		return true
	}
	if r.At.Before(prev.At) {
		return false
	}
	return r.accuracy() < prev.accuracy()-accuracyEpsilon
}

// SignificantChange reports whether the positions of r and prev are further apart than their
// combined accuracy radii, i.e. they cannot describe the same place.
func (r Result) SignificantChange(prev Result) bool {
	return r.Coordinate().DistanceTo(prev.Coordinate()) > r.accuracy()+prev.accuracy()
}

// New initializes and returns a new instance of GeoBus.
func New(logger *logger.Logger) *GeoBus {
	return &GeoBus{
		logger:      logger,
		best:        make(map[string]Result),
		latest:      make(map[string]Result),
		subscribers: make(map[chan Result]struct{}),
	}
}

func (b *GeoBus) NewOrchestrator(provider []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: provider,
	}
}

// Subscribe adds a subscriber with the given buffer size, returning a result channel and an
// unsubscribe function.
func (b *GeoBus) Subscribe(size int) (<-chan Result, func()) {
	ch := make(chan Result, size)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Publish hands a result to all subscribers if it becomes the best result for its key. Results
// with an invalid position are dropped. Subscribers that are not keeping up miss the result
// instead of blocking the bus.
//
// A result replaces the current best if it comes from the same source, is more accurate, or if
// the best is older than StaleAfter and the new position lies outside both accuracy radii.
func (b *GeoBus) Publish(r Result) {
	if !r.Coordinate().Valid() {
		b.logger.Debug("dropping result with invalid coordinates", slog.String("source", r.Source),
			slog.Float64("lat", r.Lat), slog.Float64("lon", r.Lon))
		return
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest[r.Source] = r

	prev, have := b.best[r.Key]
	switch {
	case !have, prev.Source == r.Source, r.BetterThan(prev):
	case r.At.Sub(prev.At) > StaleAfter && r.SignificantChange(prev):
		b.logger.Debug("stale best result replaced", slog.String("source", r.Source),
			slog.String("previous", prev.Source))
	default:
		b.logger.Debug("result is not better than the current best", slog.String("source", r.Source),
			slog.Float64("accuracy", r.AccuracyMeters), slog.String("best", prev.Source),
			slog.Float64("best_accuracy", prev.AccuracyMeters))
		return
	}
	b.best[r.Key] = r

	for ch := range b.subscribers {
		select {
		case ch <- r:
		default:
			b.logger.Warn("subscriber is not keeping up, dropping result", slog.String("source", r.Source))
		}
	}
}

// Best returns the current best result for the given key.
func (b *GeoBus) Best(key string) (Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.best[key]
	return r, ok
}

// Latest returns the most recent result published by the given source, whether or not it
// became the best result.
func (b *GeoBus) Latest(source string) (Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.latest[source]
	return r, ok
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}
