// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gpsd

import (
	"context"
	"fmt"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/geotrail/internal/geo"
	"github.com/wneessen/geotrail/internal/geobus"
)

const (
	testLat = 40.7185
	testLon = -74.0025
)

func TestNewGeolocationGPSDProvider(t *testing.T) {
	t.Run("new GPSd provider succeeds", func(t *testing.T) {
		provider := NewGeolocationGPSDProvider("localhost", "2947")
		if provider == nil {
			t.Fatal("expected provider to be non-nil")
		}
		if provider.addr != "localhost:2947" {
			t.Errorf("expected address to be %s, got %s", "localhost:2947", provider.addr)
		}
	})
}

func TestGeolocationGPSDProvider_Name(t *testing.T) {
	provider := NewGeolocationGPSDProvider("localhost", "2947")
	if !strings.EqualFold(provider.Name(), name) {
		t.Errorf("expected provider name to be %s, got %s", name, provider.Name())
	}
}

func TestGeolocationGPSDProvider_createResult(t *testing.T) {
	provider := NewGeolocationGPSDProvider("localhost", "2947")
	t.Run("result carries the fix time", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		coord := geo.Coordinate{Lat: testLat, Lon: testLon, Acc: geobus.AccuracyCity}
		result := provider.createResult("test", coord, 12.5, at)
		if result.Lat != testLat {
			t.Errorf("expected latitude to be %f, got %f", testLat, result.Lat)
		}
		if result.Lon != testLon {
			t.Errorf("expected longitude to be %f, got %f", testLon, result.Lon)
		}
		if result.Alt != 12.5 {
			t.Errorf("expected altitude to be %f, got %f", 12.5, result.Alt)
		}
		if result.Key != "test" {
			t.Errorf("expected key to be %s, got %s", "test", result.Key)
		}
		if result.AccuracyMeters != geobus.AccuracyCity {
			t.Errorf("expected accuracy to be %d, got %f", geobus.AccuracyCity, result.AccuracyMeters)
		}
		if result.Source != provider.Name() {
			t.Errorf("expected source to be %s, got %s", provider.Name(), result.Source)
		}
		if !result.At.Equal(at) {
			t.Errorf("expected time to be %s, got %s", at, result.At)
		}
		if result.Mocked {
			t.Error("expected gpsd result not to be mocked")
		}
	})
	t.Run("missing fix time falls back to now", func(t *testing.T) {
		result := provider.createResult("test", geo.Coordinate{Lat: testLat, Lon: testLon}, 0, time.Time{})
		if result.At.IsZero() {
			t.Error("expected time to be set")
		}
	})
}

func TestHorizontalAccuracy(t *testing.T) {
	tests := []struct {
		name string
		tpv  gpsd.TPVReport
		want float64
	}{
		{"error estimates are combined", gpsd.TPVReport{Mode: gpsd.Mode3D, Epx: 3, Epy: 4}, 5},
		{"3D fix without estimates", gpsd.TPVReport{Mode: gpsd.Mode3D}, fallbackAccuracy3DFix},
		{"2D fix without estimates", gpsd.TPVReport{Mode: gpsd.Mode2D}, fallbackAccuracy2DFix},
		{"no fix", gpsd.TPVReport{Mode: gpsd.NoFix}, fallbackAccuracyNoFix},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := horizontalAccuracy(&tc.tpv)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("expected accuracy to be %f, got %f", tc.want, got)
			}
		})
	}
}

func TestGeolocationGPSDProvider_LookupStream(t *testing.T) {
	t.Run("TPV reports with a fix are emitted once per position", func(t *testing.T) {
		reports := []string{
			`{"class":"TPV","device":"/dev/ttyUSB0","mode":1,"lat":1.0,"lon":2.0}`,
			`{"class":"SKY","device":"/dev/ttyUSB0"}`,
			tpvLine(3, testLat, testLon),
			tpvLine(3, testLat, testLon),
			tpvLine(2, 52.520008, 13.404954),
		}
		host, port := mockGPSD(t, reports)

		ctx, cancel := context.WithTimeout(t.Context(), time.Second*5)
		defer cancel()

		provider := NewGeolocationGPSDProvider(host, port)
		out := provider.LookupStream(ctx, "test")

		var results []geobus.Result
		for len(results) < 2 {
			select {
			case r := <-out:
				results = append(results, r)
			case <-ctx.Done():
				t.Fatalf("context done before results: %v", ctx.Err())
			}
		}
		cancel()

		if !approx(results[0].Lat, testLat) || !approx(results[0].Lon, testLon) {
			t.Errorf("expected first result at %f,%f, got %f,%f", testLat, testLon,
				results[0].Lat, results[0].Lon)
		}
		if results[0].AccuracyMeters != 5 {
			t.Errorf("expected accuracy to be %f, got %f", 5.0, results[0].AccuracyMeters)
		}
		if !approx(results[1].Lat, 52.520008) || !approx(results[1].Lon, 13.404954) {
			t.Errorf("expected second result at 52.520008,13.404954, got %f,%f",
				results[1].Lat, results[1].Lon)
		}
		if results[1].Source != name {
			t.Errorf("expected source to be %s, got %s", name, results[1].Source)
		}
	})
	t.Run("unreachable gpsd closes stream on cancel", func(t *testing.T) {
		listener, err := net.Listen("tcp4", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to create listener: %s", err)
		}
		addr := listener.Addr().(*net.TCPAddr)
		_ = listener.Close()

		ctx, cancel := context.WithCancel(t.Context())
		provider := NewGeolocationGPSDProvider("127.0.0.1", fmt.Sprint(addr.Port))
		provider.period = time.Millisecond * 10
		out := provider.LookupStream(ctx, "test")

		time.Sleep(time.Millisecond * 50)
		cancel()

		select {
		case _, ok := <-out:
			if ok {
				t.Fatal("expected no result from unreachable gpsd")
			}
		case <-time.After(time.Second * 2):
			t.Fatal("expected stream to be closed after cancel")
		}
	})
	t.Run("reports arriving after cancel do not break the closed stream", func(t *testing.T) {
		reports := make([]string, 0, 500)
		for i := range 500 {
			reports = append(reports, tpvLine(3, testLat+float64(i)*0.001, testLon))
		}
		host, port := mockGPSD(t, reports)

		ctx, cancel := context.WithCancel(t.Context())
		provider := NewGeolocationGPSDProvider(host, port)
		out := provider.LookupStream(ctx, "test")

		select {
		case <-out:
		case <-time.After(time.Second * 2):
			t.Fatal("expected a first result")
		}
		cancel()
		for range out {
		}

		// the session reader keeps running the filter for the remaining reports
		time.Sleep(time.Millisecond * 100)
	})
}

func TestForward(t *testing.T) {
	t.Run("reports are passed on until the watch ends", func(t *testing.T) {
		reports := make(chan geobus.Result)
		done := make(chan bool)
		out := make(chan geobus.Result, 2)
		go func() {
			reports <- geobus.Result{Lat: 1}
			reports <- geobus.Result{Lat: 2}
			done <- true
		}()
		if !forward(t.Context(), reports, done, out) {
			t.Fatal("expected forward to report the end of the watch")
		}
		if len(out) != 2 {
			t.Errorf("expected 2 results, got %d", len(out))
		}
	})
	t.Run("cancel stops forwarding", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if forward(ctx, make(chan geobus.Result), make(chan bool), make(chan geobus.Result)) {
			t.Error("expected forward to report the cancel")
		}
	})
	t.Run("cancel while the consumer is blocked stops forwarding", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		reports := make(chan geobus.Result, 1)
		reports <- geobus.Result{Lat: 1}
		go func() {
			time.Sleep(time.Millisecond * 20)
			cancel()
		}()
		if forward(ctx, reports, make(chan bool), make(chan geobus.Result)) {
			t.Error("expected forward to report the cancel")
		}
	})
}

// approx reports whether a truncated coordinate matches want to six decimal places.
func approx(got, want float64) bool {
	return math.Abs(got-want) < 2e-6
}

func tpvLine(mode int, lat, lon float64) string {
	return fmt.Sprintf(`{"class":"TPV","device":"/dev/ttyUSB0","mode":%d,`+
		`"time":"2026-03-01T12:00:00.000Z","lat":%f,"lon":%f,"alt":35.0,"epx":3.0,"epy":4.0}`,
		mode, lat, lon)
}

// mockGPSD starts a minimal gpsd lookalike that greets the client, waits for the WATCH
// command and then replays the given reports. The connection stays open until the test ends.
func mockGPSD(t *testing.T, reports []string) (string, string) {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %s", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	ctx := t.Context()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()

		_, _ = fmt.Fprintln(conn, `{"class":"VERSION","release":"3.25","rev":"3.25","proto_major":3,"proto_minor":15}`)
		buf := make([]byte, 256)
		if _, err = conn.Read(buf); err != nil {
			return
		}
		for _, report := range reports {
			if _, err = fmt.Fprintln(conn, report); err != nil {
				return
			}
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), fmt.Sprint(addr.Port)
}
