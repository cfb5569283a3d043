package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eternalApril/objectdb/internal/resp"
)

// drainTimeout is how long Serve waits for open connections after the listener closes
const drainTimeout = 5 * time.Second

// Server accepts RESP clients and feeds their commands to an Engine
type Server struct {
	engine *Engine
	logger *zap.Logger

	wg    sync.WaitGroup
	mu    sync.Mutex
	peers map[*Peer]struct{}
}

// NewServer creates a server executing commands on engine
func NewServer(engine *Engine, logger *zap.Logger) *Server {
	return &Server{
		engine: engine,
		logger: logger.Named("server"),
		peers:  make(map[*Peer]struct{}),
	}
}

// Serve accepts connections on ln until ctx is canceled. It then closes ln,
// lets in-flight commands finish and returns once every connection is gone or
// the drain timeout passes.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close() //nolint:errcheck
	}()

	s.logger.Info("listening on", zap.String("address", ln.Addr().String()))

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				acceptErr = err
				s.logger.Error("accept failed", zap.Error(err))
			}
			break
		}

		peer := NewPeer(conn)
		s.track(peer)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(peer)
			s.handleConnection(ctx, peer)
		}()
	}

	s.drain()
	return acceptErr
}

func (s *Server) track(p *Peer) {
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	s.engine.metrics.clientConnected()
}

func (s *Server) untrack(p *Peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
	s.engine.metrics.clientDisconnected()
}

// drain wakes idle readers and waits for the handlers, closing what is left on timeout
func (s *Server) drain() {
	s.mu.Lock()
	for p := range s.peers {
		p.interruptRead()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all connections closed gracefully")
	case <-time.After(drainTimeout):
		s.logger.Warn("drain timed out, closing connections", zap.Duration("timeout", drainTimeout))
		s.mu.Lock()
		for p := range s.peers {
			p.Close() //nolint:errcheck
		}
		s.mu.Unlock()
		<-done
	}
}

// handleConnection serves a single client
func (s *Server) handleConnection(ctx context.Context, peer *Peer) {
	log := s.logger.With(zap.String("peer", peer.ID()))
	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("client connected", zap.String("addr", peer.RemoteAddr()))
	}

	defer func() {
		peer.Close() //nolint:errcheck
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client disconnected")
		}
	}()

	// Commands in flight finish even when shutdown starts
	execCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		cmdValue, err := peer.ReadCommand()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrDeadlineExceeded) && !errors.Is(err, net.ErrClosed) {
				log.Warn("read command failed", zap.Error(err))
			}
			return
		}

		if cmdValue.Type != resp.TypeArray {
			log.Error("invalid request type")
			continue
		}

		if len(cmdValue.Array) == 0 {
			continue
		}

		result := s.engine.Execute(execCtx, string(cmdValue.Array[0].String), cmdValue.Array[1:])

		if err = peer.Send(result); err != nil {
			log.Error("write response failed", zap.Error(err))
			return
		}

		if peer.InputBuffered() == 0 {
			if err := peer.Flush(); err != nil {
				return
			}
		}
	}
}
