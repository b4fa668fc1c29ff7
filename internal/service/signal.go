// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals reacts to user signals: SIGUSR1 prints the status line right away, SIGUSR2 logs
// the last known position.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.printStatus(ctx)
			case syscall.SIGUSR2:
				s.logCurrentLocation()
			}
		}
	}
}

func (s *Service) logCurrentLocation() {
	hist := s.History()
	last, ok := hist.Last()
	if !ok {
		s.logger.Info("no location recorded yet", slog.String("backend", s.store.Name()))
		return
	}
	s.logger.Info("current location", slog.Float64("latitude", last.Coords.Latitude),
		slog.Float64("longitude", last.Coords.Longitude),
		slog.String("last_seen", last.Time().Format(time.RFC3339)),
		slog.Int("entries", hist.Len()))
}
