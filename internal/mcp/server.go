// Package mcp exposes flow detection, change impact and flow tracing as
// Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mvp-joe/flowscope/internal/git"
)

// ServerName and ServerVersion identify the server to MCP clients.
const (
	ServerName    = "flowscope-mcp"
	ServerVersion = "1.0.0"
)

// Server manages the MCP server lifecycle.
type Server struct {
	svc    FlowService
	logger *slog.Logger
	mcp    *server.MCPServer
}

// NewServer creates an MCP server with every flowscope tool registered.
func NewServer(svc FlowService, ops git.Operations, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("flow service is required")
	}
	if ops == nil {
		ops = git.NewOperations()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	AddDetectTool(s, svc)
	AddImpactTool(s, svc, ops)
	AddTraceTool(s, svc)

	return &Server{svc: svc, logger: logger, mcp: s}, nil
}

// MCP returns the underlying server, for tests and embedding.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve runs the server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server on stdio", "root", s.svc.RootDir())
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-sigCh:
		s.logger.Info("received shutdown signal, stopping")
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
