// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geoapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/geobus"
	"github.com/wneessen/geotrail/internal/http"
	"github.com/wneessen/geotrail/internal/logger"
)

func testProvider(t *testing.T, body string) *GeolocationGeoAPIProvider {
	t.Helper()
	server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	provider, err := NewGeolocationGeoAPIProvider(http.New(logger.NewLogger(slog.LevelInfo, io.Discard)))
	if err != nil {
		t.Fatalf("failed to create provider: %s", err)
	}
	provider.endpoint = server.URL
	return provider
}

func TestNewGeolocationGeoAPIProvider(t *testing.T) {
	t.Run("new provider succeeds", func(t *testing.T) {
		provider := testProvider(t, "{}")
		if provider.Name() != name {
			t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
		}
	})
	t.Run("new provider without HTTP client fails", func(t *testing.T) {
		if _, err := NewGeolocationGeoAPIProvider(nil); !errors.Is(err, ErrNoHTTPClient) {
			t.Errorf("expected error to be %s, got %v", ErrNoHTTPClient, err)
		}
	})
}

func TestGeolocationGeoAPIProvider_locate(t *testing.T) {
	tests := []struct {
		name     string
		location string
		acc      float64
	}{
		{"zip code level", `"country":"DE","region":"Berlin","city":"Berlin","postalCode":"10117",`, geobus.AccuracyZip},
		{"city level", `"country":"DE","region":"Berlin","city":"Berlin",`, geobus.AccuracyCity},
		{"region level", `"country":"DE","region":"Berlin",`, geobus.AccuracyRegion},
		{"country level", `"country":"DE",`, geobus.AccuracyCountry},
		{"unknown level", ``, geobus.AccuracyUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"ip":"192.0.2.1","location":{%s"coordinates":`+
				`{"latitude":"52.5200081","longitude":"13.4049541"}}}`, tc.location)
			coord, err := testProvider(t, body).locate(t.Context())
			if err != nil {
				t.Fatalf("failed to locate: %s", err)
			}
			if math.Abs(coord.Lat-52.520008) > 1e-6 || math.Abs(coord.Lon-13.404954) > 1e-6 {
				t.Errorf("expected truncated position 52.520008,13.404954, got %f,%f", coord.Lat, coord.Lon)
			}
			if coord.Acc != tc.acc {
				t.Errorf("expected accuracy to be %f, got %f", tc.acc, coord.Acc)
			}
		})
	}
	t.Run("broken coordinates fail the lookup", func(t *testing.T) {
		bodies := []string{
			`{"location":{"coordinates":{"latitude":"north","longitude":"13.4"}}}`,
			`{"location":{"coordinates":{"latitude":"52.5","longitude":"east"}}}`,
		}
		for _, body := range bodies {
			if _, err := testProvider(t, body).locate(t.Context()); err == nil {
				t.Errorf("expected lookup of %s to fail", body)
			}
		}
	})
}

func TestGeolocationGeoAPIProvider_LookupStream(t *testing.T) {
	t.Run("unchanged positions are emitted once", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond*45)
			defer cancel()

			provider, err := NewGeolocationGeoAPIProvider(http.New(logger.NewLogger(slog.LevelInfo, io.Discard)))
			if err != nil {
				t.Fatalf("failed to create provider: %s", err)
			}
			provider.period = time.Millisecond * 10
			calls := 0
			provider.locateFn = func(context.Context) (geo.Coordinate, error) {
				calls++
				if calls == 2 {
					return geo.Coordinate{}, errors.New("intentionally failing")
				}
				return geo.Coordinate{Lat: 52.52, Lon: 13.4, Acc: geobus.AccuracyCity}, nil
			}

			var results []geobus.Result
			for r := range provider.LookupStream(ctx, "test") {
				results = append(results, r)
			}
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].Source != name || results[0].AccuracyMeters != geobus.AccuracyCity {
				t.Errorf("unexpected result: %+v", results[0])
			}
		})
	})
}
