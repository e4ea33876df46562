package audit

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/m-mizutani/vault-sync/pkg/usecase"
	"github.com/m-mizutani/vault-sync/pkg/utils/async"
)

// MaxEntrySize caps a single audit entry. Large secrets produce large
// entries, so the default bufio limit of 64KiB is not enough.
const MaxEntrySize = 4 * 1024 * 1024

// Server receives the audit stream of a Vault socket audit device
type Server struct {
	addr    string
	backend model.Backend
	prefix  string
	queue   chan<- model.SecretOp

	listener net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a server that forwards ops for secrets under prefix of
// backend to queue
func NewServer(addr string, backend model.Backend, prefix string, queue chan<- model.SecretOp) *Server {
	return &Server{
		addr:    addr,
		backend: backend,
		prefix:  prefix,
		queue:   queue,
		conns:   map[net.Conn]struct{}{},
	}
}

// Listen binds the address. It is separate from Serve so that the socket is
// open before the audit device is registered on Vault.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return goerr.Wrap(err, "failed to listen", goerr.V("addr", s.addr))
	}
	s.listener = l
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then closes the listener
// and every open connection and waits for their handlers.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return goerr.New("Serve called before Listen")
	}
	logger := ctxlog.From(ctx)
	logger.Info("Audit listener started", "addr", s.listener.Addr().String())

	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
		s.closeConns()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				logger.Info("Audit listener stopped")
				return nil
			}
			logger.Warn("Failed to accept audit connection", "error", err)
			continue
		}

		s.track(conn)
		if ctx.Err() != nil {
			// accepted while closeConns was sweeping
			s.untrack(conn)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			defer async.Recover(ctx, "audit-connection")
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	logger := ctxlog.From(ctx).With("remote", conn.RemoteAddr().String())
	logger.Debug("Audit connection opened")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxEntrySize)

	for scanner.Scan() {
		op, ok := usecase.ParseAuditEntry(scanner.Bytes(), s.backend, s.prefix)
		if !ok {
			continue
		}

		logger.Debug("Audit entry received", "kind", op.Kind, "path", op.Path)
		select {
		case s.queue <- *op:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("Audit connection failed", "error", err)
		return
	}
	logger.Debug("Audit connection closed")
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	_ = conn.Close()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
