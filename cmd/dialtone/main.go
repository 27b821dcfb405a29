// Command dialtone runs the in-call state service: it accepts call-state
// events from the telephony process over the IPC endpoint and applies them,
// strictly serialized, to the in-memory call and audio-route registries.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/dialtone/pkg/audioroute"
	"github.com/odvcencio/dialtone/pkg/callhandler"
	"github.com/odvcencio/dialtone/pkg/calls"
	"github.com/odvcencio/dialtone/pkg/config"
	"github.com/odvcencio/dialtone/pkg/ipc"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  string
		bindAddress string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&bindAddress, "bind", "", "override ipc bind address")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("dialtone %s (%s, built %s)\n", version, commit, buildDate)
		return
	}

	if err := run(configPath, bindAddress); err != nil {
		fmt.Fprintf(os.Stderr, "dialtone: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, bindAddress string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if bindAddress != "" {
		cfg.IPC.BindAddress = bindAddress
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}

	callList := calls.NewList()
	audio := audioroute.NewProvider()

	handler := callhandler.New(logger,
		callhandler.WithQueueWarnDepth(cfg.Dispatch.QueueWarnDepth))
	if err := handler.Setup(callhandler.Collaborators{
		Calls:      callList,
		Audio:      audio,
		Foreground: foregroundLogger{logger: logger},
	}); err != nil {
		return err
	}

	server := ipc.NewServer(ipc.Config{
		BindAddress:    cfg.IPC.BindAddress,
		PublicMetrics:  cfg.IPC.PublicMetrics,
		AllowedOrigins: cfg.IPC.AllowedOrigins,
		Version:        version,
	}, handler, callList, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })

	logger.Info("dialtone started",
		slog.String("version", version),
		slog.String("bind", cfg.IPC.BindAddress))

	err = g.Wait()

	// Transport is down; no more producers. Stop the loop and clear state.
	if terr := handler.Teardown(); terr != nil {
		logger.Error("teardown failed", slog.Any("error", terr))
	}
	return err
}

func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler).With(slog.String("system", "dialtone")), nil
}

// foregroundLogger is the daemon's stand-in for a UI layer: it records the
// request so an attached UI process can act on the log stream.
type foregroundLogger struct {
	logger *slog.Logger
}

func (f foregroundLogger) BringToForeground() {
	f.logger.Info("bring-to-foreground requested")
}
