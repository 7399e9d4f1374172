// Package mcpserver exposes the go-live tools over the Model Context Protocol,
// either as streamable HTTP mounted on a gin router or over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/intility/dadp-mcp-go-live/config"
	"github.com/intility/dadp-mcp-go-live/metrics"
	"github.com/intility/dadp-mcp-go-live/tools"
)

const (
	Name    = "mcp-golive"
	Version = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

// readOnly is implemented by tools that never change backend state.
type readOnly interface {
	ReadOnly() bool
}

type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	mcpServer *server.MCPServer
}

func New(cfg *config.Config, registry *tools.Registry, logger *logrus.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		mcpServer: server.NewMCPServer(
			Name,
			Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	for _, t := range registry.List() {
		if err := s.addTool(t); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", t.Name(), err)
		}
	}
	return s, nil
}

func (s *Server) addTool(t tools.Tool) error {
	schema, err := json.Marshal(t.Schema())
	if err != nil {
		return err
	}

	tool := mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema)
	ro := false
	if r, ok := t.(readOnly); ok {
		ro = r.ReadOnly()
	}
	tool.Annotations = mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(ro),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(true),
	}

	s.mcpServer.AddTool(tool, s.handlerFor(t))
	return nil
}

// handlerFor adapts a registry tool to mcp-go. Argument errors become MCP
// tool errors; everything else is already rendered as text by the tool.
func (s *Server) handlerFor(t tools.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		log := s.logger.WithField("tool", t.Name())

		raw, err := json.Marshal(request.GetArguments())
		if err != nil {
			metrics.ObserveToolCall(t.Name(), "invalid_arguments")
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		text, err := t.Call(ctx, raw)
		if err != nil {
			metrics.ObserveToolCall(t.Name(), "invalid_arguments")
			log.WithError(err).Warn("tool rejected arguments")
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments for %s: %v", t.Name(), err)), nil
		}

		metrics.ObserveToolCall(t.Name(), "ok")
		log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("tool call completed")
		return mcp.NewToolResultText(text), nil
	}
}

// Router serves the MCP endpoint next to health and metrics.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware(), requestLogger(s.logger))

	streamable := server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath("/mcp"))
	r.Any("/mcp", gin.WrapH(streamable))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "server": Name, "version": Version})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Run serves on the configured transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case "", "http":
		return s.serveHTTP(ctx)
	case "stdio":
		return s.serveStdio(ctx)
	default:
		return fmt.Errorf("unknown transport %q (supported: http, stdio)", s.cfg.Transport)
	}
}

func (s *Server) serveHTTP(ctx context.Context) error {
	if s.cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", srv.Addr).Info("MCP server listening (streamable HTTP at /mcp)")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	s.logger.Info("MCP server serving on stdio")
	stdio := server.NewStdioServer(s.mcpServer)
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"session":     c.GetHeader("Mcp-Session-Id"),
		}).Debug("http request")
	}
}
