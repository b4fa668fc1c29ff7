// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package store selects the persistence backend for the location history.
package store

import (
	"context"
	"fmt"

	"github.com/wneessen/geotrail/internal/config"
	"github.com/wneessen/geotrail/internal/history"
	"github.com/wneessen/geotrail/internal/store/dynamodb"
	"github.com/wneessen/geotrail/internal/store/file"
	"github.com/wneessen/geotrail/internal/store/memory"
)

// Store is a history backend usable as both loader and saver of a history.Manager.
type Store interface {
	history.Loader
	history.Saver
	Name() string
}

// New returns the backend configured in conf.Storage.
func New(ctx context.Context, conf *config.Config) (Store, error) {
	switch conf.Storage.Backend {
	case "file":
		return file.New(conf.Storage.File)
	case "memory":
		return memory.New(), nil
	case "dynamodb":
		client, err := dynamodb.NewClient(ctx, conf.Storage.DynamoDB.Region, conf.Storage.DynamoDB.Endpoint)
		if err != nil {
			return nil, err
		}
		return dynamodb.New(client, conf.Storage.DynamoDB.Table, conf.Storage.DynamoDB.Key)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", conf.Storage.Backend)
	}
}
