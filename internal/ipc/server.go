package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"courier/internal/daemon"
	"courier/internal/logging"
)

// ServiceName is the RPC receiver name shared by server and client.
const ServiceName = "Courier"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. A stale
// socket file left by a crashed daemon is removed first.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	rpcServer := rpc.NewServer()
	serverCtx, cancel := context.WithCancel(ctx)
	svc := &service{daemon: d, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until Close is called.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
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
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String("impact", "CLI commands may fail to reach the daemon"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file. Open client
// connections finish their current call before the codec sees EOF.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(req StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx, req.Checks)
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	result, err := s.daemon.Enqueue(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	jobs, err := s.daemon.List(s.ctx, req)
	if err != nil {
		return err
	}
	resp.Jobs = jobs
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid job id %d", req.ID)
	}
	result, err := s.daemon.Describe(s.ctx, req.ID)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	s.log().Debug("retry requested", logging.Int("id_count", len(req.IDs)), logging.Bool("all", req.All))
	result, err := s.daemon.Retry(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) Batches(_ BatchesRequest, resp *BatchesResponse) error {
	batches, err := s.daemon.Batches(s.ctx)
	if err != nil {
		return err
	}
	resp.Batches = batches
	return nil
}

func (s *service) Cleanup(req CleanupRequest, resp *CleanupResponse) error {
	result, err := s.daemon.Cleanup(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) Purge(_ PurgeRequest, resp *CleanupResponse) error {
	result, err := s.daemon.Purge(s.ctx)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	*resp = health
	return err
}
