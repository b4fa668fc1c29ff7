// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wneessen/geotrail/internal/history"
)

var testHistory = history.History{Locations: []history.Sample{
	{
		Coords: history.Coordinates{Latitude: 48.8566, Longitude: 2.3522, Accuracy: history.Float(5),
			Altitude: history.Float(35)},
		Timestamp: 1700000000000,
	},
	{
		Coords:    history.Coordinates{Latitude: 51.5074, Longitude: -0.1278},
		Timestamp: 1700000060000,
		Mocked:    true,
	},
}}

func TestNew(t *testing.T) {
	t.Run("new store succeeds", func(t *testing.T) {
		store, err := New("/tmp/history.json")
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		if store.Name() != "file" {
			t.Errorf("expected store name to be file, got %q", store.Name())
		}
		if store.Path() != "/tmp/history.json" {
			t.Errorf("expected path to be /tmp/history.json, got %q", store.Path())
		}
	})
	t.Run("new store without path fails", func(t *testing.T) {
		if _, err := New(""); !errors.Is(err, ErrNoPath) {
			t.Errorf("expected ErrNoPath, got %v", err)
		}
	})
}

func TestStore_Load(t *testing.T) {
	t.Run("missing file is an absent history", func(t *testing.T) {
		store, err := New(filepath.Join(t.TempDir(), "history.json"))
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		loaded, err := store.Load(t.Context())
		if err != nil {
			t.Fatalf("failed to load history: %s", err)
		}
		if loaded.IsSet() {
			t.Error("expected no history to be found")
		}
	})
	t.Run("broken JSON fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.json")
		if err := os.WriteFile(path, []byte("{invalid"), 0o600); err != nil {
			t.Fatalf("failed to write test file: %s", err)
		}
		store, err := New(path)
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		if _, err = store.Load(t.Context()); err == nil {
			t.Error("expected load to fail")
		}
	})
	t.Run("unreadable path fails", func(t *testing.T) {
		store, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		if _, err = store.Load(t.Context()); err == nil {
			t.Error("expected load of a directory to fail")
		}
	})
	t.Run("canceled context fails", func(t *testing.T) {
		store, err := New(filepath.Join(t.TempDir(), "history.json"))
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if _, err = store.Load(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestStore_Save(t *testing.T) {
	t.Run("saved history is loaded back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "history.json")
		store, err := New(path)
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		if err = store.Save(t.Context(), testHistory); err != nil {
			t.Fatalf("failed to save history: %s", err)
		}
		loaded, err := store.Load(t.Context())
		if err != nil {
			t.Fatalf("failed to load history: %s", err)
		}
		if diff := cmp.Diff(testHistory, loaded.Value()); diff != "" {
			t.Errorf("history mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("saving replaces the previous document", func(t *testing.T) {
		dir := t.TempDir()
		store, err := New(filepath.Join(dir, "history.json"))
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		if err = store.Save(t.Context(), testHistory); err != nil {
			t.Fatalf("failed to save history: %s", err)
		}
		if err = store.Save(t.Context(), history.Empty()); err != nil {
			t.Fatalf("failed to save history: %s", err)
		}
		loaded, err := store.Load(t.Context())
		if err != nil {
			t.Fatalf("failed to load history: %s", err)
		}
		if loaded.Value().Len() != 0 {
			t.Errorf("expected empty history, got %d entries", loaded.Value().Len())
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read directory: %s", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected no temporary files to be left, got %d entries", len(entries))
		}
	})
	t.Run("nil locations are written as an empty list", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.json")
		store, err := New(path)
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		if err = store.Save(t.Context(), history.History{}); err != nil {
			t.Fatalf("failed to save history: %s", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read history file: %s", err)
		}
		if string(data) != `{"locations":[]}` {
			t.Errorf("unexpected file content: %s", data)
		}
	})
	t.Run("canceled context fails", func(t *testing.T) {
		store, err := New(filepath.Join(t.TempDir(), "history.json"))
		if err != nil {
			t.Fatalf("failed to create store: %s", err)
		}
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if err = store.Save(ctx, testHistory); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
