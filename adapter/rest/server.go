package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nexus-radio/pkg/logger"
)

const (
	shutdownTimeout = 5 * time.Second
)

type ServerConfig struct {
	Addr      string
	DebugMode bool
}

type Server struct {
	cfg  *ServerConfig
	log  *logger.Zerolog
	http *http.Server
}

func NewRESTServer(cfg *ServerConfig, api *API, log *logger.Zerolog) *Server {
	if cfg.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg: cfg,
		log: log,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           SetupRouter(api),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start() {
	go func() {
		s.log.Info().Msgf("http api listening on %s", s.cfg.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Msgf("http api stopped: %v", err)
		}
	}()
}

func (s *Server) Close() {
	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Error().Msgf("failed to shutdown http api: %v", err)
	}
}
