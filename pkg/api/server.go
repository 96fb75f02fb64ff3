package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/api/auth"
	"github.com/driftfs/driftfs/pkg/vfs"
)

// Server is the HTTP API server for driftfs.
type Server struct {
	config       Config
	server       *http.Server
	shutdownOnce sync.Once
}

// NewServer creates a new API server.
//
// It fails when no JWT secret is configured or the secret is shorter than
// 32 characters.
func NewServer(config Config, provider *vfs.Provider) (*Server, error) {
	config.ApplyDefaults()

	secret := config.GetJWTSecret()
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters, set %s or the api.jwt.secret config key", EnvJWTSecret)
	}

	jwtConfig := config.JWT
	jwtConfig.Secret = secret

	jwtService, err := auth.NewJWTService(jwtConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	router := NewRouter(provider, jwtService, int64(config.MaxUploadSize))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		config: config,
		server: srv,
	}, nil
}

// Start runs the HTTP server until the context is cancelled or the listener
// fails. On cancellation the server shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		logger.Info("API server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Stop shuts down the server gracefully. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Info("shutting down API server")
		err = s.server.Shutdown(ctx)
	})
	return err
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.config.Port
}
