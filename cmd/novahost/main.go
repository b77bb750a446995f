package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/novadaw/novahost/internal/config"
	"github.com/novadaw/novahost/internal/host"
	"github.com/novadaw/novahost/internal/logger"
	"github.com/novadaw/novahost/internal/pidfile"
	"github.com/novadaw/novahost/internal/plugin"
	"github.com/novadaw/novahost/internal/render"
	"github.com/novadaw/novahost/internal/status"
	"github.com/novadaw/novahost/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	configPath := flag.String("config", "", "path to config file (JSON)")
	port := flag.Int("port", 0, "WebSocket port (overrides config)")
	statusPort := flag.Int("status-port", 0, "status HTTP port (overrides config)")
	pluginDir := flag.String("plugin-dir", "", "additional plugin directory")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error, none")
	pidPath := flag.String("pidfile", "", "pid file path (single-instance guard, empty to disable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *port > 0 {
		cfg.Socket.Port = *port
	}
	if *statusPort > 0 {
		cfg.Status.Port = *statusPort
	}
	if *pluginDir != "" {
		cfg.Catalog.PluginDirs = append(cfg.Catalog.PluginDirs, *pluginDir)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if envLevel := strings.TrimSpace(os.Getenv("NOVAHOST_LOG_LEVEL")); envLevel != "" {
		cfg.LogLevel = envLevel
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		_ = logger.Global().Close()
	}()

	if *pidPath != "" {
		pf, err := pidfile.Acquire(*pidPath)
		if err != nil {
			return err
		}
		defer pf.Release()
	}

	catalog := plugin.NewCatalog(cfg.Catalog)
	defer catalog.Close()

	h := host.New(catalog, cfg.DefaultSampleRate)

	server := ws.NewServer(ws.Options{
		Port:             cfg.Socket.Port,
		MaxConnections:   cfg.Socket.MaxConnections,
		HandshakeTimeout: time.Duration(cfg.Socket.HandshakeTimeoutSeconds) * time.Second,
	}, h)
	h.SetSender(server)

	if err := server.Start(); err != nil {
		return err
	}

	// the first scan can be slow on large directories; clients connecting
	// before it finishes see an empty list and may re-request later
	go func() {
		if err := catalog.Scan(); err != nil {
			logger.Warn("plugin scan failed: %v", err)
		} else {
			logger.Info("plugin scan found %d plugin(s)", len(catalog.Plugins()))
		}
	}()

	scheduler := host.NewPushScheduler(
		h.Registry(), server, render.New(cfg.Push.JPEGQuality), h.Stats(), cfg.Push.FPS)
	scheduler.Start()

	var statusServer *status.Server
	if cfg.Status.Enabled {
		statusServer = status.NewServer(cfg.Status.Port, func() status.Info {
			return status.Info{
				Clients:         server.ClientCount(),
				Sessions:        h.Registry().Count(),
				Plugins:         len(catalog.Plugins()),
				MessagesHandled: h.Stats().MessagesHandled.Load(),
				FramesSent:      h.Stats().FramesSent.Load(),
			}
		})
		if err := statusServer.Start(); err != nil {
			scheduler.Stop()
			server.Stop()
			return err
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	logger.Info("received %v, shutting down", received)

	// stop pushing before the transport goes away, then drop the transport,
	// then the rest
	scheduler.Stop()
	server.Stop()
	if statusServer != nil {
		statusServer.Stop()
	}

	return nil
}
