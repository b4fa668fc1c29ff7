// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package history keeps a compacted location history. Consecutive samples closer than a distance
// threshold are merged into the previous entry, everything else is appended. Loading and saving
// are delegated to a Loader and a Saver.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/logger"
	"github.com/wneessen/geotrail/internal/vartype"
)

// DefaultDistanceThreshold is the merge distance in meters used when none is set.
const DefaultDistanceThreshold = 100.0

var (
	ErrNoLoader = errors.New("history loader is required")
	ErrNoSaver  = errors.New("history saver is required")
)

// Loader returns a previously persisted History. An unset Variable means that no history
// was found.
type Loader interface {
	Load(ctx context.Context) (vartype.Variable[History], error)
}

// Saver persists the full History.
type Saver interface {
	Save(ctx context.Context, history History) error
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (vartype.Variable[History], error)

func (f LoaderFunc) Load(ctx context.Context) (vartype.Variable[History], error) {
	return f(ctx)
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(ctx context.Context, history History) error

func (f SaverFunc) Save(ctx context.Context, history History) error {
	return f(ctx, history)
}

// Config configures a Manager.
type Config struct {
	// Samples closer than this many meters to the last entry are merged into it. Unset selects
	// DefaultDistanceThreshold. A set value is used as is, so 0 or less never merges.
	DistanceThreshold vartype.Variable[float64]
	Loader            Loader
	Saver             Saver
	Logger            *logger.Logger
}

// Manager owns the in-memory History and applies the merge/append policy. A Manager is not
// safe for concurrent use. Callers must not overlap AddLocation calls.
type Manager struct {
	threshold float64
	loader    Loader
	saver     Saver
	logger    *logger.Logger
	history   History
}

// New returns a Manager with an empty history.
func New(conf Config) (*Manager, error) {
	if conf.Loader == nil {
		return nil, ErrNoLoader
	}
	if conf.Saver == nil {
		return nil, ErrNoSaver
	}
	threshold, ok := conf.DistanceThreshold.Get()
	if !ok {
		threshold = DefaultDistanceThreshold
	}
	log := conf.Logger
	if log == nil {
		log = logger.NewLogger(slog.LevelError, io.Discard)
	}

	return &Manager{
		threshold: threshold,
		loader:    conf.Loader,
		saver:     conf.Saver,
		logger:    log,
		history:   Empty(),
	}, nil
}

// Initialize loads the persisted history. A found history replaces the in-memory state, an
// absent one leaves it as it is. Calling Initialize again reloads and overwrites.
func (m *Manager) Initialize(ctx context.Context) error {
	loaded, err := m.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load location history: %w", err)
	}
	existing, ok := loaded.Get()
	if !ok {
		m.logger.Debug("no persisted location history found")
		return nil
	}

	m.history = existing.Clone()
	m.logger.Debug("location history loaded", slog.Int("entries", m.history.Len()))
	return nil
}

// AddLocation records a new sample. If it lies within the distance threshold of the last entry,
// only that entry's timestamp is updated. Otherwise the sample is appended. The updated history
// is then handed to the Saver. A failed save is returned, but the in-memory history keeps the
// update.
func (m *Manager) AddLocation(ctx context.Context, sample Sample) (History, error) {
	merged := false
	if n := len(m.history.Locations); n > 0 {
		last := &m.history.Locations[n-1]
		distance := geo.Distance(last.Coords.Latitude, last.Coords.Longitude,
			sample.Coords.Latitude, sample.Coords.Longitude)
		if sample.Timestamp < last.Timestamp {
			m.logger.Debug("sample timestamp is older than the last entry",
				slog.Int64("last", last.Timestamp), slog.Int64("sample", sample.Timestamp))
		}
		if distance < m.threshold {
			last.Timestamp = sample.Timestamp
			merged = true
			m.logger.Debug("sample merged into last entry", slog.Float64("distance", distance),
				slog.Int64("timestamp", sample.Timestamp))
		}
	}
	if !merged {
		m.history.Locations = append(m.history.Locations, sample)
		m.logger.Debug("sample appended", slog.Float64("lat", sample.Coords.Latitude),
			slog.Float64("lon", sample.Coords.Longitude), slog.Int("entries", m.history.Len()))
	}

	if err := m.saver.Save(ctx, m.history.Clone()); err != nil {
		return m.history.Clone(), fmt.Errorf("failed to save location history: %w", err)
	}
	return m.history.Clone(), nil
}

// History returns a copy of the current history.
func (m *Manager) History() History {
	return m.history.Clone()
}

// Threshold returns the effective merge distance in meters.
func (m *Manager) Threshold() float64 {
	return m.threshold
}
