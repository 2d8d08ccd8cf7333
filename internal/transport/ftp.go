package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"courier/internal/config"
)

// FTPConn is the subset of *ftp.ServerConn used for a delivery.
type FTPConn interface {
	Login(user, password string) error
	MakeDir(path string) error
	ChangeDir(path string) error
	CurrentDir() (string, error)
	Stor(path string, r io.Reader) error
	Quit() error
}

// FTPDialer opens a control connection to addr.
type FTPDialer func(ctx context.Context, addr string, cfg config.FTP) (FTPConn, error)

// FTP delivers files over FTP, upgrading to explicit TLS when configured.
type FTP struct {
	cfg  config.FTP
	dial FTPDialer
}

// FTPOption customizes the FTP deliverer.
type FTPOption func(*FTP)

// WithFTPDialer replaces the connection factory.
func WithFTPDialer(dial FTPDialer) FTPOption {
	return func(f *FTP) {
		if dial != nil {
			f.dial = dial
		}
	}
}

// NewFTP constructs an FTP deliverer.
func NewFTP(cfg config.FTP, opts ...FTPOption) *FTP {
	f := &FTP{cfg: cfg, dial: dialFTP}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func dialFTP(ctx context.Context, addr string, cfg config.FTP) (FTPConn, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	opts := []ftp.DialOption{
		ftp.DialWithTimeout(timeout),
		ftp.DialWithContext(ctx),
	}
	if cfg.UseTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: !cfg.VerifySSL, //nolint:gosec
		}))
	}
	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Name identifies the transport in logs.
func (f *FTP) Name() string { return "ftp" }

// Deliver uploads req.LocalPath to remote_dir/batch/type/name. A relative
// remote_dir is resolved against the login directory, and every command after
// that uses absolute paths so the session's working directory never matters.
func (f *FTP) Deliver(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	file, err := os.Open(req.LocalPath)
	if err != nil {
		return Result{}, transportError(f.Name(), "open source", err)
	}
	defer file.Close()

	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
	conn, err := f.dial(ctx, addr, f.cfg)
	if err != nil {
		return Result{}, transportError(f.Name(), "connect "+addr, err)
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login(f.cfg.User, f.cfg.Pass); err != nil {
		return Result{}, transportError(f.Name(), "login", err)
	}
	root, err := absoluteRoot(conn, f.cfg.RemoteDir)
	if err != nil {
		return Result{}, transportError(f.Name(), "resolve remote directory", err)
	}
	remotePath := RemotePath(root, req.BatchID, req.FileType, req.FileName)
	if err := ensureRemoteDir(conn, path.Dir(remotePath)); err != nil {
		return Result{}, transportError(f.Name(), "create remote directory", err)
	}

	reader := newProgressReader(file, sourceSize(file, req.Size), progress)
	if err := conn.Stor(remotePath, reader); err != nil {
		return Result{}, transportError(f.Name(), "store "+remotePath, err)
	}

	return Result{RemotePath: remotePath, RemoteURL: ftpURL(f.cfg.Host, remotePath)}, nil
}

func absoluteRoot(conn FTPConn, remoteDir string) (string, error) {
	remoteDir = strings.ReplaceAll(strings.TrimSpace(remoteDir), "\\", "/")
	if strings.HasPrefix(remoteDir, "/") {
		return path.Clean(remoteDir), nil
	}
	cwd, err := conn.CurrentDir()
	if err != nil {
		return "", err
	}
	return path.Join("/", cwd, remoteDir), nil
}

// ensureRemoteDir creates each segment of dir in turn. A MakeDir failure is
// ignored when the directory can be entered afterwards.
func ensureRemoteDir(conn FTPConn, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	current := "/"
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		if segment == "" {
			continue
		}
		current = path.Join(current, segment)
		if err := conn.MakeDir(current); err != nil {
			if cdErr := conn.ChangeDir(current); cdErr != nil {
				return fmt.Errorf("mkdir %s: %w", current, err)
			}
		}
	}
	return nil
}

func ftpURL(host, remotePath string) string {
	return "ftp://" + host + "/" + strings.TrimPrefix(remotePath, "/")
}
