package uds

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"nexus-radio/pkg/logger"
)

const (
	defaultCommandTimeout = 15
	maxLineSize           = 64 * 1024
)

type ServerConfig struct {
	SocketPath string
	// CommandTimeout bounds a single command, in seconds.
	CommandTimeout int
}

// Server accepts line based commands on a unix socket. Each command line is
// answered with exactly one reply line.
type Server struct {
	cfg      *ServerConfig
	log      *logger.Zerolog
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
}

func NewUDSServer(cfg *ServerConfig, log *logger.Zerolog) (*Server, error) {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}

	if err := os.Remove(cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	ln, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		log:      log,
		listener: ln,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	log.Info().Msgf("uds server listening on %s", cfg.SocketPath)

	return s, nil
}

func (s *Server) Close() {
	if s == nil {
		return
	}

	s.cancel()
	if err := s.listener.Close(); err != nil {
		s.log.Error().Msgf("failed to close uds listener: %v", err)
	}

	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	_ = os.Remove(s.cfg.SocketPath)
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		c, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.Error().Msgf("failed to accept uds connection: %v", err)
			continue
		}

		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			_ = c.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(c)
	}
}

func (s *Server) handleConn(c net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = c.Close()
		s.wg.Done()
	}()

	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		reply := s.execute(line)
		if _, err := c.Write([]byte(reply + "\n")); err != nil {
			s.log.Debug().Msgf("failed to write uds reply: %v", err)
			return
		}
	}

	if err := sc.Err(); err != nil && s.ctx.Err() == nil {
		s.log.Debug().Msgf("uds connection closed: %v", err)
	}
}

func (s *Server) execute(line string) string {
	if commandUseCase == nil {
		return "ERR not ready"
	}

	ctx, cancel := context.WithTimeout(s.ctx, time.Duration(s.cfg.CommandTimeout)*time.Second)
	defer cancel()

	return commandUseCase.Execute(ctx, line)
}
