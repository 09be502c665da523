package webchat

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ServerConfig wires the HTTP server with the conversation lifecycle.
type ServerConfig struct {
	Addr    string
	Handler http.Handler
	// ConvManager, when set, has its eviction loop run for the server's
	// lifetime.
	ConvManager *ConvManager
	// Store, when set, is closed during shutdown.
	Store ConversationStore
}

// Server drives the HTTP listener, the cache eviction loop, and graceful
// shutdown on SIGINT/SIGTERM.
type Server struct {
	httpSrv *http.Server
	cm      *ConvManager
	store   ConversationStore
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("server: addr is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("server: handler is required")
	}
	return &Server{
		httpSrv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		cm:    cfg.ConvManager,
		store: cfg.Store,
	}, nil
}

func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("ctx is nil")
	}
	if s == nil || s.httpSrv == nil {
		return errors.New("server is not initialized")
	}
	eg := errgroup.Group{}
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()

	if s.cm != nil {
		s.cm.StartEvictionLoop(srvCtx)
	}

	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			log.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-srvCtx.Done():
		}
		srvCancel()
		shutdownBase := context.WithoutCancel(ctx)
		shutdownCtx, cancel := context.WithTimeout(shutdownBase, 30*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				log.Error().Err(err).Msg("store close error")
			}
		}
		log.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		defer srvCancel()
		log.Info().Str("addr", s.httpSrv.Addr).Msg("starting Lumina server")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server listen error")
			return err
		}
		return nil
	})

	return eg.Wait()
}
