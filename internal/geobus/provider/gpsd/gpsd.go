// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"math"
	"net"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/geobus"
)

const (
	name = "gpsd"

	fallbackAccuracy3DFix = 10  // ~10 m typical consumer GPS in open sky
	fallbackAccuracy2DFix = 25  // worse than 3D, but still accurate enough
	fallbackAccuracyNoFix = 1e6 // effectively unusable
)

// GeolocationGPSDProvider streams TPV reports from a gpsd daemon.
type GeolocationGPSDProvider struct {
	name   string
	addr   string
	period time.Duration
}

// NewGeolocationGPSDProvider returns a provider for the gpsd daemon listening on host:port.
func NewGeolocationGPSDProvider(host, port string) *GeolocationGPSDProvider {
	return &GeolocationGPSDProvider{
		name:   name,
		addr:   net.JoinHostPort(host, port),
		period: time.Second * 30,
	}
}

func (p *GeolocationGPSDProvider) Name() string {
	return p.name
}

// LookupStream connects to gpsd and emits a result for every TPV report with at least a 2D fix
// whose position differs from the previous one. Lost connections are re-established after the
// provider's period.
func (p *GeolocationGPSDProvider) LookupStream(ctx context.Context, key string) <-chan geobus.Result {
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

			session, err := gpsd.Dial(p.addr)
			if err != nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(p.period):
					continue
				}
			}

			// Filters run on the session's reader goroutine, which may outlive this one. They never
			// touch out, only this goroutine sends on it and closes it.
			reports := make(chan geobus.Result)
			session.AddFilter("TPV", func(r interface{}) {
				tpv, ok := r.(*gpsd.TPVReport)
				if !ok || tpv.Mode < gpsd.Mode2D || ctx.Err() != nil {
					return
				}

				coord := geo.Coordinate{
					Lat: geo.Truncate(tpv.Lat, geobus.TruncPrecision),
					Lon: geo.Truncate(tpv.Lon, geobus.TruncPrecision),
					Acc: horizontalAccuracy(tpv),
				}
				if !state.HasChanged(coord) {
					return
				}
				state.Update(coord)

				select {
				case <-ctx.Done():
				case reports <- p.createResult(key, coord, tpv.Alt, tpv.Time):
				}
			})

			done := session.Watch()
			if !forward(ctx, reports, done, out) {
				// go-gpsd has no Close(), the watcher blocks on done until the socket dies
				go func() { <-done }()
				return
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

// forward passes reports to out until the watch ends. It returns false if ctx was cancelled
// first.
func forward(ctx context.Context, reports <-chan geobus.Result, done <-chan bool, out chan<- geobus.Result) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-done:
			return true
		case r := <-reports:
			select {
			case <-ctx.Done():
				return false
			case out <- r:
			}
		}
	}
}

// createResult composes and returns a Result using provided geolocation data and metadata.
func (p *GeolocationGPSDProvider) createResult(key string, coord geo.Coordinate, alt float64, at time.Time) geobus.Result {
	if at.IsZero() {
		at = time.Now()
	}
	return geobus.Result{
		Key:            key,
		Lat:            coord.Lat,
		Lon:            coord.Lon,
		Alt:            alt,
		AccuracyMeters: coord.Acc,
		Source:         p.name,
		At:             at,
	}
}

func horizontalAccuracy(tpv *gpsd.TPVReport) float64 {
	if tpv.Epx > 0 && tpv.Epy > 0 {
		// sqrt(epx² + epy²)
		return math.Hypot(tpv.Epx, tpv.Epy)
	}
	switch tpv.Mode {
	case gpsd.Mode3D:
		return fallbackAccuracy3DFix
	case gpsd.Mode2D:
		return fallbackAccuracy2DFix
	default:
		return fallbackAccuracyNoFix
	}
}
