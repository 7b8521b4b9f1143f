//go:build rp2040

package main

import (
	"context"
	"errors"
	"log/slog"
	"machine"
	"runtime"
	"time"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/bus"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/display"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/protocol"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/scan"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/segment"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/storage"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/serial"
)

// MAIN THREAD DUTIES
//
// The main goroutine owns the display pins and runs the scan loop. The bus
// target and the USB maintenance link run in their own goroutines and only
// touch the digit buffer.

func main() {
	machine.UART0.Configure(machine.UARTConfig{BaudRate: 115200})
	logger := slog.New(slog.NewTextHandler(machine.UART0, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// The display runs without flash; only the stored config is lost.
	store, err := storage.New(machine.Flash, true)
	if err != nil {
		logger.Error("flash unavailable, using default config", slog.Any("reason", err))
		store = nil
	}

	cfg := loadConfig(store, logger)

	digits := segment.New(config.DigitCount)

	engine, err := scan.New(digits, scanConfig(&cfg))
	if err != nil {
		printErrForever(logger, "configure scan engine", slog.Any("reason", err))
	}
	engine.Blank()

	busHandler := bus.New(digits)
	target, err := newI2CTarget(machine.I2C0, cfg.Address)
	if err != nil {
		printErrForever(logger, "configure bus target", slog.Any("reason", err))
	}

	ctx := context.Background()
	go func() {
		err := busHandler.Serve(ctx, target)
		logger.Error("bus target stopped", slog.Any("reason", err))
	}()

	disp := display.NewManager(logger)
	if disp != nil {
		disp.ShowStatus(display.NewFrameFormatter().FormatStatus(cfg.Address, digits.Len(), cfg.CommonAnode()))
	}

	handler := protocol.NewHandler(store, digits, busHandler, engine)
	link := serial.NewLink(machine.Serial, handler, disp, logger)
	go func() {
		err := link.Serve(ctx)
		logger.Error("maintenance link stopped", slog.Any("reason", err))
	}()

	logger.Info("megaplexer running",
		slog.Int("digits", digits.Len()),
		slog.Int("address", int(cfg.Address)),
		slog.Bool("commonAnode", cfg.CommonAnode()),
		slog.Duration("refresh", cfg.Refresh()),
		slog.Duration("dwell", cfg.Dwell()),
	)

	for {
		engine.Tick(time.Now())
		runtime.Gosched()
	}
}

// loadConfig reads the stored device config, falling back to the build-time
// defaults when flash is unavailable, none is stored or it does not fit
// this board.
func loadConfig(store *storage.Manager, logger *slog.Logger) config.DeviceConfig {
	if store == nil {
		return config.Defaults()
	}

	cfg := config.Defaults()
	if err := store.LoadDevice(&cfg); err != nil {
		if !errors.Is(err, storage.ErrConfigNotFound) {
			logger.Warn("device config unreadable, using defaults", slog.Any("reason", err))
		}
		return config.Defaults()
	}

	if err := config.Validate(&cfg, config.DigitCount); err != nil {
		logger.Warn("stored device config rejected, using defaults", slog.Any("reason", err))
		return config.Defaults()
	}

	return cfg
}

// printErrForever logs msg once a second so it is seen whenever a terminal
// attaches.
func printErrForever(logger *slog.Logger, msg string, args ...any) {
	for {
		logger.Error(msg, args...)
		time.Sleep(time.Second)
	}
}
