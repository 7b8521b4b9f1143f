// Command megaplexer-host drives a display bank wired to a Linux board's
// GPIO header and takes bus-format messages on stdin, one per line as hex
// bytes:
//
//	echo "00 3F 01 06" | megaplexer-host -commons GPIO5,GPIO6 -segments GPIO12,...
package main

import (
	"bufio"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"periph.io/x/host/v3"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/bus"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/scan"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/segment"
)

var (
	commonNames  = flag.String("commons", "", "Comma separated common pin names, digit 0 first")
	segmentNames = flag.String("segments", "", "Comma separated segment pin names, A..G then DP")
	commonAnode  = flag.Bool("anode", config.DefaultCommonAnode, "Common anode wiring (on is driven low)")
	refreshMs    = flag.Uint("refresh", uint(config.DefaultRefreshMs), "Refresh period in milliseconds")
	dwellUs      = flag.Uint("dwell", uint(config.DefaultDwellUs), "Per-digit dwell in microseconds")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if _, err := host.Init(); err != nil {
		fatal(logger, "initialize periph.io", err)
	}

	commons, err := resolvePins(splitNames(*commonNames))
	if err != nil {
		fatal(logger, "resolve common pins", err)
	}
	segments, err := resolvePins(splitNames(*segmentNames))
	if err != nil {
		fatal(logger, "resolve segment pins", err)
	}

	cfg := config.Defaults()
	cfg.SetCommonAnode(*commonAnode)
	cfg.RefreshMs = uint8(*refreshMs)
	cfg.DwellUs = uint16(*dwellUs)
	if err := config.Validate(&cfg, len(commons)); err != nil {
		fatal(logger, "invalid timing", err)
	}

	sc, err := scanConfig(&cfg, commons, segments)
	if err != nil {
		fatal(logger, "configure pins", err)
	}

	digits := segment.New(len(commons))
	engine, err := scan.New(digits, sc)
	if err != nil {
		fatal(logger, "configure scan engine", err)
	}
	engine.Blank()

	busHandler := bus.New(digits)
	go func() {
		if err := feed(bufio.NewScanner(os.Stdin), busHandler); err != nil {
			logger.Error("reading stdin", slog.Any("reason", err))
		}
		logger.Info("input closed", slog.Any("stats", busHandler.Stats()))
	}()

	logger.Info("megaplexer-host running",
		slog.Int("digits", digits.Len()),
		slog.Bool("commonAnode", cfg.CommonAnode()),
		slog.Duration("refresh", cfg.Refresh()),
		slog.Duration("dwell", cfg.Dwell()),
	)

	for {
		engine.Tick(time.Now())
		time.Sleep(100 * time.Microsecond)
	}
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	names := strings.Split(s, ",")
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return names
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("reason", err))
	os.Exit(1)
}
