package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/kardianos/service"
	"go.uber.org/zap"

	"github.com/gajzzs/xstorage/internal/bridge"
)

// Daemon serves the bridge protocol on a unix socket. Each connection is an
// independent JSON-lines session; nothing is shared between requests.
type Daemon struct {
	router *bridge.Router
	socket string
	log    *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	conns    sync.WaitGroup
}

// NewDaemon creates a daemon that will listen on socket.
func NewDaemon(router *bridge.Router, socket string, log *zap.Logger) *Daemon {
	if log == nil {
		log = zap.NewNop()
	}
	return &Daemon{router: router, socket: socket, log: log}
}

// Start implements service.Interface. It must not block.
func (d *Daemon) Start(service.Service) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.listener != nil {
		return fmt.Errorf("daemon already running")
	}

	// A socket file left by a crashed daemon would make Listen fail.
	if err := os.Remove(d.socket); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", d.socket, err)
	}

	ln, err := net.Listen("unix", d.socket)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", d.socket, err)
	}
	if err := os.Chmod(d.socket, 0o666); err != nil {
		d.log.Warn("could not open socket permissions", zap.String("socket", d.socket), zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.listener = ln
	d.cancel = cancel

	d.log.Info("bridge listening", zap.String("socket", d.socket))
	d.conns.Add(1)
	go d.accept(ctx, ln)
	return nil
}

// Stop implements service.Interface.
func (d *Daemon) Stop(service.Service) error {
	d.mu.Lock()
	ln, cancel := d.listener, d.cancel
	d.listener, d.cancel = nil, nil
	d.mu.Unlock()

	if ln == nil {
		return fmt.Errorf("daemon not running")
	}

	d.log.Info("stopping bridge", zap.String("socket", d.socket))
	cancel()
	err := ln.Close()
	d.conns.Wait()
	return err
}

// Accept retry delays, as in net/http.Server.Serve.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func nextAcceptDelay(delay time.Duration) time.Duration {
	if delay == 0 {
		return minAcceptDelay
	}
	return min(delay*2, maxAcceptDelay)
}

func (d *Daemon) accept(ctx context.Context, ln net.Listener) {
	defer d.conns.Done()
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			delay = nextAcceptDelay(delay)
			d.log.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		d.conns.Add(1)
		go func() {
			defer d.conns.Done()
			d.serve(ctx, conn)
		}()
	}
}

func (d *Daemon) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Unblock the read loop when the daemon stops.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := d.router.Serve(ctx, conn, conn); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
		d.log.Debug("bridge session ended", zap.Error(err))
	}
}
