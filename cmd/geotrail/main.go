// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the geotrail service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wneessen/geotrail/internal/config"
	"github.com/wneessen/geotrail/internal/i18n"
	"github.com/wneessen/geotrail/internal/logger"
	"github.com/wneessen/geotrail/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	// Initialize Logger
	log := logger.New(slog.LevelError)

	// Read config
	confPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	conf, err := loadConfig(*confPath)
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}
	log = logger.New(conf.LogLevel)

	// Initialize the locale
	loc, err := i18n.New(conf.Locale)
	if err != nil {
		log.Error("failed to initialize locale", logger.Err(err))
		os.Exit(1)
	}

	// Initialize the service
	serv, err := service.New(ctx, conf, log, loc)
	if err != nil {
		log.Error("failed to initialize geotrail service", logger.Err(err))
		os.Exit(1)
	}

	// Start the service loop
	log.Info("starting geotrail service", slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date))
	if err = serv.Run(ctx); err != nil {
		log.Error("geotrail service failed", logger.Err(err))
		os.Exit(1)
	}
	log.Info("shutting down geotrail service")
}

// loadConfig reads the config file given on the command line, falls back to the default
// location and finally to defaults plus environment.
func loadConfig(confPath string) (*config.Config, error) {
	if confPath != "" {
		return config.NewFromFile(filepath.Dir(confPath), filepath.Base(confPath))
	}
	if path, file := findConfigFile(); path != "" && file != "" {
		return config.NewFromFile(path, file)
	}
	return config.New()
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "geotrail", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
