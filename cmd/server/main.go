// Command server runs the MCP go-live server, forwarding report submission and
// listing to the go-live API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intility/dadp-mcp-go-live/config"
	"github.com/intility/dadp-mcp-go-live/golive"
	"github.com/intility/dadp-mcp-go-live/logging"
	"github.com/intility/dadp-mcp-go-live/mcpserver"
	"github.com/intility/dadp-mcp-go-live/tools"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Error loading config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.WithFields(logrus.Fields{
		"environment":  cfg.Environment,
		"api_base_url": cfg.ApiBaseUrl,
		"transport":    cfg.Transport,
	}).Info("Starting MCP go-live server")

	client := golive.NewClient(cfg.ApiBaseUrl, cfg.Timeout(), golive.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkBackend(ctx, client, logger)

	srv, err := mcpserver.New(cfg, tools.NewGoLiveRegistry(client, logger), logger)
	if err != nil {
		logger.Fatalf("Error creating MCP server: %v", err)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Errorf("Server error: %v", err)
		os.Exit(1)
	}
}

// checkBackend warns when the API is unreachable. Tools still start: every
// call reports backend failures to the caller on its own.
func checkBackend(ctx context.Context, client *golive.Client, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		logger.WithError(err).Warn("go-live API is not reachable yet")
		return
	}
	logger.Info("go-live API is reachable")
}
