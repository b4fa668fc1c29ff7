// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"

	"github.com/wneessen/geotrail/internal/history"
	"github.com/wneessen/geotrail/internal/vartype"
)

const (
	configEnv         = "GEOTRAIL"
	DefaultTextTpl    = "{{.Icon}} {{.Count}}"
	DefaultTooltipTpl = "{{loc \"places\"}}: {{.Count}}\n{{if .Place}}{{loc \"place\"}}: {{.Place}}\n{{end}}" +
		"{{loc \"last position\"}}: {{floatFormat .Latitude 4}}, {{floatFormat .Longitude 4}}\n" +
		"{{loc \"last seen\"}}: {{hum .LastSeen}}\n{{loc \"track length\"}}: {{km .TrackLength}}\n" +
		"{{loc \"sunrise\"}}: {{timeFormat .SunriseTime \"15:04\"}}\n{{loc \"sunset\"}}: {{timeFormat .SunsetTime \"15:04\"}}"
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	History struct {
		// Samples closer than this many meters to the last entry are merged, 0 never merges
		DistanceThreshold *float64 `fig:"distance_threshold" default:"100"`
	} `fig:"history"`

	Storage struct {
		// Allowed values: file, memory, dynamodb
		Backend  string `fig:"backend" default:"file"`
		File     string `fig:"file"`
		DynamoDB struct {
			Table    string `fig:"table" default:"geotrail"`
			Region   string `fig:"region"`
			Key      string `fig:"key"`
			Endpoint string `fig:"endpoint"`
		} `fig:"dynamodb"`
	} `fig:"storage"`

	Intervals struct {
		Output time.Duration `fig:"output" default:"30s"`
	} `fig:"intervals"`

	Geocoder struct {
		// Disables the reverse lookup of the place name for the last position
		Disable bool `fig:"disable"`
	} `fig:"geocoder"`

	Templates struct {
		Text    string `fig:"text"`
		Tooltip string `fig:"tooltip"`
	} `fig:"templates"`

	GeoLocation struct {
		File                   string `fig:"file"`
		GPSDHost               string `fig:"gpsd_host" default:"localhost"`
		GPSDPort               string `fig:"gpsd_port" default:"2947"`
		DisableGPSD            bool   `fig:"disable_gpsd"`
		DisableGeoIP           bool   `fig:"disable_geoip"`
		DisableGeoAPI          bool   `fig:"disable_geoapi"`
		DisableGeolocationFile bool   `fig:"disable_geolocation_file"`
		DisableICHNAEA         bool   `fig:"disable_ichnaea"`
	} `fig:"geolocation"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.History.DistanceThreshold == nil {
		threshold := history.DefaultDistanceThreshold
		c.History.DistanceThreshold = &threshold
	}
	if math.IsNaN(*c.History.DistanceThreshold) || *c.History.DistanceThreshold < 0 {
		return fmt.Errorf("invalid distance threshold: %f", *c.History.DistanceThreshold)
	}
	if c.Intervals.Output <= 0 {
		return fmt.Errorf("invalid output interval: %s", c.Intervals.Output)
	}

	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	switch c.Storage.Backend {
	case "file":
		if c.Storage.File == "" {
			c.Storage.File = filepath.Join(dataDir(), "geotrail", "history.json")
		}
	case "memory":
	case "dynamodb":
		if c.Storage.DynamoDB.Table == "" {
			return fmt.Errorf("dynamodb storage requires a table name")
		}
		if c.Storage.DynamoDB.Key == "" {
			host, err := os.Hostname()
			if err != nil || host == "" {
				return fmt.Errorf("dynamodb storage requires a history key")
			}
			c.Storage.DynamoDB.Key = host
		}
	default:
		return fmt.Errorf("invalid storage backend: %s", c.Storage.Backend)
	}

	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}
	if c.GeoLocation.File == "" {
		home, _ := os.UserHomeDir()
		c.GeoLocation.File = filepath.Join(home, ".config", "geotrail", "geolocation")
	}

	return nil
}

// Threshold returns the configured merge distance, unset if none is configured.
func (c *Config) Threshold() vartype.Variable[float64] {
	if c.History.DistanceThreshold == nil {
		return vartype.None[float64]()
	}
	return vartype.NewVariable(*c.History.DistanceThreshold)
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}

// dataDir returns $XDG_DATA_HOME, falling back to ~/.local/share.
func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}
