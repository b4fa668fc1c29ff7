// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package ichnaea

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/geobus"
	"github.com/wneessen/geotrail/internal/http"
)

const (
	APIEndpoint   = "https://api.beacondb.net/v1/geolocate"
	LookupTimeout = time.Second * 5
	name          = "ichnaea"
)

var (
	ErrNoHTTPClient    = errors.New("ichnaea provider requires a HTTP client")
	ErrNoAccessPoints  = errors.New("no usable WiFi access points in range")
	ErrInvalidPosition = errors.New("geolocation API returned an invalid position")
)

type GeolocationICHNAEAProvider struct {
	name     string
	http     *http.Client
	endpoint string
	period   time.Duration
	scanFn   func(context.Context) ([]WirelessNetwork, error)
	locateFn func(context.Context) (geo.Coordinate, error)
}

type APIResult struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

type WirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

func NewGeolocationICHNAEAProvider(client *http.Client) (*GeolocationICHNAEAProvider, error) {
	if client == nil {
		return nil, ErrNoHTTPClient
	}
	provider := &GeolocationICHNAEAProvider{
		name:     name,
		http:     client,
		endpoint: APIEndpoint,
		period:   5 * time.Minute,
	}
	provider.scanFn = provider.wifiAccessPoints
	provider.locateFn = provider.locate
	return provider, nil
}

func (p *GeolocationICHNAEAProvider) Name() string {
	return p.name
}

// LookupStream scans for nearby access points every period, asks the geolocation API for a
// position and emits it when it differs from the last one.
func (p *GeolocationICHNAEAProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
	out := make(chan geobus.Result)
	go func() {
		defer close(out)
		state := geobus.GeolocationState{}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			coord, err := p.locateFn(ctx)
			if err == nil && state.HasChanged(coord) {
				state.Update(coord)
				select {
				case <-ctx.Done():
					return
				case out <- p.createResult(key, coord):
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(p.period):
			}
		}
	}()
	return out
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationICHNAEAProvider) createResult(key string, coord geo.Coordinate) geobus.Result {
	return geobus.Result{
		Key:            key,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		AccuracyMeters: coord.Acc,
		Source:         p.name,
		At:             time.Now(),
	}
}

// wifiAccessPoints lists the access points visible to all station interfaces. Networks that
// opted out of geolocation via the "_nomap" suffix are skipped.
func (p *GeolocationICHNAEAProvider) wifiAccessPoints(ctx context.Context) ([]WirelessNetwork, error) {
	wlan, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create wifi client: %w", err)
	}
	defer func() { _ = wlan.Close() }()

	ifaces, err := wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	var list []WirelessNetwork
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		aps, err := wlan.AccessPoints(iface)
		if err != nil {
			continue
		}
		for _, ap := range aps {
			if ap.SSID == "" || ap.SSID[0] == '\x00' || strings.HasSuffix(ap.SSID, "_nomap") {
				continue
			}
			list = append(list, WirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}

	return list, nil
}

func (p *GeolocationICHNAEAProvider) locate(ctx context.Context) (geo.Coordinate, error) {
	networks, err := p.scanFn(ctx)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to retrieve wifi list: %w", err)
	}
	if len(networks) == 0 {
		return geo.Coordinate{}, ErrNoAccessPoints
	}

	type request struct {
		ConsiderIP   bool              `json:"considerIp"`
		Accesspoints []WirelessNetwork `json:"wifiAccessPoints"`
	}
	body := bytes.NewBuffer(nil)
	if err = json.NewEncoder(body).Encode(request{ConsiderIP: true, Accesspoints: networks}); err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to encode wifi list to JSON: %w", err)
	}

	result := new(APIResult)
	if _, err = p.http.PostWithTimeout(ctx, p.endpoint, result, body,
		map[string]string{"Content-Type": "application/json"}, LookupTimeout); err != nil {
		return geo.Coordinate{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}

	coord := geo.Coordinate{
		Lat: geo.Truncate(result.Location.Latitude, geobus.TruncPrecision),
		Lon: geo.Truncate(result.Location.Longitude, geobus.TruncPrecision),
		Acc: result.Accuracy,
	}
	if !coord.Valid() {
		return geo.Coordinate{}, ErrInvalidPosition
	}
	return coord, nil
}
