// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package file persists the location history as a JSON document on the local filesystem.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/wneessen/geotrail/internal/history"
	"github.com/wneessen/geotrail/internal/vartype"
)

const (
	name     = "file"
	dirPerm  = 0o700
	filePerm = 0o600
)

var ErrNoPath = errors.New("history file path is required")

// Store reads and writes the history file at path.
type Store struct {
	path string
}

// New returns a Store for the given file path.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	return &Store{path: path}, nil
}

func (s *Store) Name() string {
	return name
}

// Path returns the location of the history file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the history file. A missing file is reported as an absent history.
func (s *Store) Load(ctx context.Context) (vartype.Variable[history.History], error) {
	if err := ctx.Err(); err != nil {
		return vartype.None[history.History](), err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return vartype.None[history.History](), nil
	}
	if err != nil {
		return vartype.None[history.History](), fmt.Errorf("failed to read history file %q: %w", s.path, err)
	}

	var hist history.History
	if err = json.Unmarshal(data, &hist); err != nil {
		return vartype.None[history.History](), fmt.Errorf("failed to decode history file %q: %w", s.path, err)
	}
	return vartype.NewVariable(hist), nil
}

// Save writes the history to a temporary file next to the target and renames it into place,
// so readers never see a partially written document.
func (s *Store) Save(ctx context.Context, hist history.History) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	if hist.Locations == nil {
		hist = history.Empty()
	}
	data, err := json.Marshal(hist)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err = os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create history directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary history file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err = tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set history file permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close history file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace history file %q: %w", s.path, err)
	}
	return nil
}
