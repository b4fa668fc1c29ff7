// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/geotrail/internal/logger"
)

const (
	dbusInterface   = "org.freedesktop.login1.Manager"
	dbusWatchMember = "PrepareForSleep"

	resumeDebounce   = 2 * time.Second
	signalBufferSize = 8

	busReconnectDelay   = 5 * time.Second
	providerWakeupDelay = 10 * time.Second
)

// resumeDebouncer swallows resume events that follow each other within the window.
type resumeDebouncer struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
}

func (d *resumeDebouncer) allow(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.last.IsZero() && now.Sub(d.last) < d.window {
		return false
	}
	d.last = now
	return true
}

// monitorSleepResume listens for logind's PrepareForSleep signal on the system bus and refreshes
// the status output after a resume. Lost bus connections are re-established until ctx is done.
func (s *Service) monitorSleepResume(ctx context.Context) {
	debounce := &resumeDebouncer{window: resumeDebounce}

	for {
		conn, sigCh, ok := s.subscribeSleepSignals(ctx)
		if ok {
			s.handleSleepSignals(ctx, sigCh, debounce)
			conn.RemoveSignal(sigCh)
			if err := conn.Close(); err != nil {
				s.logger.Debug("failed to close system bus connection", logger.Err(err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(busReconnectDelay):
		}
	}
}

// subscribeSleepSignals connects to the system bus and registers for sleep signals.
func (s *Service) subscribeSleepSignals(ctx context.Context) (*dbus.Conn, chan *dbus.Signal, bool) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		s.logger.Debug("failed to connect to system bus", logger.Err(err))
		return nil, nil, false
	}

	if err = conn.AddMatchSignal(dbus.WithMatchInterface(dbusInterface),
		dbus.WithMatchMember(dbusWatchMember),
	); err != nil {
		s.logger.Error("failed to subscribe to dbus signal", slog.String("interface", dbusInterface),
			slog.String("member", dbusWatchMember), logger.Err(err))
		if err = conn.Close(); err != nil {
			s.logger.Debug("failed to close system bus connection", logger.Err(err))
		}
		return nil, nil, false
	}

	sigCh := make(chan *dbus.Signal, signalBufferSize)
	conn.Signal(sigCh)
	s.logger.Debug("subscribed to dbus signal", slog.String("interface", dbusInterface),
		slog.String("member", dbusWatchMember))
	return conn, sigCh, true
}

// handleSleepSignals processes signals until ctx is done or the bus closes the channel.
func (s *Service) handleSleepSignals(ctx context.Context, sigCh chan *dbus.Signal, debounce *resumeDebouncer) {
	for {
		select {
		case <-ctx.Done():
			return
		case sgn, ok := <-sigCh:
			if !ok {
				return
			}
			s.processSleepSignal(ctx, sgn, debounce)
		}
	}
}

// processSleepSignal reacts to PrepareForSleep(false), which logind emits on resume.
func (s *Service) processSleepSignal(ctx context.Context, sgn *dbus.Signal, debounce *resumeDebouncer) {
	if sgn == nil || len(sgn.Body) != 1 {
		return
	}
	sleeping, ok := sgn.Body[0].(bool)
	if !ok || sleeping {
		return
	}
	if !debounce.allow(time.Now()) {
		return
	}

	// Give the providers time to reconnect and deliver a fresh fix
	select {
	case <-ctx.Done():
		return
	case <-time.After(providerWakeupDelay):
	}

	s.logger.Debug("resumed from sleep, refreshing status output")
	s.printStatus(ctx)
}
