package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/domain"
)

// ErrSocketInUse is returned by Start when another server already accepts
// connections on the socket path.
var ErrSocketInUse = errors.New("socket already in use")

// Handler receives every event decoded from a client.
type Handler func(peer *Peer, ev domain.Event)

// ServerConfig configures the IPC server.
type ServerConfig struct {
	SocketPath     string
	MaxConnections int
	// QueueSize is the per-connection outbound queue.
	QueueSize int
	// SendTimeout is how long a full queue may block a send before the
	// client is disconnected.
	SendTimeout time.Duration
}

// DefaultServerConfig returns defaults for socketPath.
func DefaultServerConfig(socketPath string) ServerConfig {
	return ServerConfig{
		SocketPath:     socketPath,
		MaxConnections: 16,
		QueueSize:      128,
		SendTimeout:    2 * time.Second,
	}
}

// Server accepts client connections and fans events out to them.
type Server struct {
	cfg       ServerConfig
	handler   Handler
	onConnect func(*Peer)
	logger    *zap.Logger

	mu       sync.RWMutex
	listener net.Listener
	peers    map[string]*Peer

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// Peer is one connected client.
type Peer struct {
	ID          string
	ConnectedAt time.Time

	conn        *Conn
	queue       chan domain.Event
	closed      chan struct{}
	stopping    <-chan struct{}
	sendTimeout time.Duration
	logger      *zap.Logger
	once        sync.Once
}

// NewServer creates a server. handler is called on the connection's reader
// goroutine.
func NewServer(cfg ServerConfig, handler Handler, logger *zap.Logger) *Server {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultServerConfig(cfg.SocketPath).SendTimeout
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		peers:   make(map[string]*Peer),
	}
}

// OnConnect sets a callback run for each accepted client before its events
// are read. It must be called before Start.
func (s *Server) OnConnect(fn func(*Peer)) {
	s.onConnect = fn
}

// Start listens on the socket and begins accepting connections. It refuses
// to replace a socket another server is still listening on. Canceling ctx
// disconnects every client.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.SocketPath), 0700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if IsSocketListening(s.cfg.SocketPath) {
		return fmt.Errorf("%w: %s", ErrSocketInUse, s.cfg.SocketPath)
	}
	if err := CleanupSocket(s.cfg.SocketPath); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(s.cfg.SocketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(2)
	go s.acceptLoop()
	go s.closeOnCancel()

	s.logger.Info("ipc server listening", zap.String("socket", s.cfg.SocketPath))
	return nil
}

// Stop closes the listener and every connection and removes the socket.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()
	s.listener.Close()

	s.mu.Lock()
	for _, p := range s.peers {
		p.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("ipc server stop timed out")
	}

	os.Remove(s.cfg.SocketPath)
	return nil
}

// SocketPath returns the socket path.
func (s *Server) SocketPath() string {
	return s.cfg.SocketPath
}

// PeerCount returns the number of connected clients.
func (s *Server) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Broadcast queues ev for every connected client. It blocks while a
// client's queue is full, until that client drains it or disconnects.
func (s *Server) Broadcast(ev domain.Event) {
	s.mu.RLock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		p.Send(ev)
	}
}

// Send queues ev for this peer. It returns false if the peer is gone. A
// peer whose queue stays full for the send timeout is disconnected.
func (p *Peer) Send(ev domain.Event) bool {
	select {
	case <-p.closed:
		return false
	case <-p.stopping:
		return false
	case p.queue <- ev:
		return true
	default:
	}

	timer := time.NewTimer(p.sendTimeout)
	defer timer.Stop()
	select {
	case p.queue <- ev:
		return true
	case <-p.closed:
		return false
	case <-p.stopping:
		return false
	case <-timer.C:
		p.logger.Warn("client not reading, disconnecting",
			zap.String("client", p.ID),
			zap.Duration("timeout", p.sendTimeout))
		p.close()
		return false
	}
}

func (p *Peer) close() {
	p.once.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}

		if s.PeerCount() >= s.cfg.MaxConnections {
			s.logger.Warn("too many clients, rejecting connection")
			conn.Close()
			continue
		}

		peer := &Peer{
			ID:          uuid.NewString(),
			ConnectedAt: time.Now(),
			conn:        NewConn(conn),
			queue:       make(chan domain.Event, s.cfg.QueueSize),
			closed:      make(chan struct{}),
			stopping:    s.ctx.Done(),
			sendTimeout: s.cfg.SendTimeout,
			logger:      s.logger,
		}

		s.mu.Lock()
		s.peers[peer.ID] = peer
		s.mu.Unlock()
		if s.ctx.Err() != nil {
			// raced with closeOnCancel
			peer.close()
		}

		s.logger.Info("client connected", zap.String("client", peer.ID))

		s.wg.Add(2)
		go s.writeLoop(peer)
		if s.onConnect != nil {
			s.onConnect(peer)
		}
		go s.readLoop(peer)
	}
}

func (s *Server) closeOnCancel() {
	defer s.wg.Done()
	<-s.ctx.Done()

	s.listener.Close()
	s.mu.RLock()
	for _, p := range s.peers {
		p.close()
	}
	s.mu.RUnlock()
}

func (s *Server) readLoop(peer *Peer) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.peers, peer.ID)
		s.mu.Unlock()
		peer.close()
		s.logger.Info("client disconnected", zap.String("client", peer.ID))
	}()

	for {
		ev, err := peer.conn.ReadEvent()
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				s.logger.Warn("dropping malformed record",
					zap.String("client", peer.ID), zap.Error(err))
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("client read failed", zap.String("client", peer.ID), zap.Error(err))
			}
			return
		}
		if s.handler != nil {
			s.handler(peer, ev)
		}
	}
}

func (s *Server) writeLoop(peer *Peer) {
	defer s.wg.Done()

	for {
		select {
		case <-peer.closed:
			return
		case ev := <-peer.queue:
			if err := peer.conn.WriteEvent(ev); err != nil {
				s.logger.Debug("client write failed", zap.String("client", peer.ID), zap.Error(err))
				peer.close()
				return
			}
		}
	}
}

// CleanupSocket removes a stale socket file. It refuses to remove anything
// that is not a socket.
func CleanupSocket(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket != 0 {
		return os.Remove(path)
	}
	return fmt.Errorf("path exists but is not a socket: %s", path)
}

// IsSocketListening reports whether something accepts connections at path.
func IsSocketListening(path string) bool {
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
