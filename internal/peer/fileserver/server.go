// Package fileserver 实现节点的文件传输服务
//
// 每个连接只服务一个请求：读取一行 "get <name>"，把共享目录中的同名文件原样写回，
// 然后关闭连接。文件不存在时写回 "Error: File not found.\n"。
// 每个连接在独立协程中处理；默认不限制并发，可通过配置启用并发上限与接受速率限制。
package fileserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/metrics"
	"github.com/dep2p/go-peershare/internal/util/logger"
	"github.com/dep2p/go-peershare/pkg/protocol"
)

var log = logger.Logger("peer/fileserver")

// acceptRetryDelay 临时性 Accept 错误后的等待时间
const acceptRetryDelay = 50 * time.Millisecond

// Server 文件服务器
type Server struct {
	cfg      config.TransferConfig
	shareDir string
	counter  *metrics.TransferCounter

	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// Option 文件服务器选项
type Option func(*Server)

// WithCounter 记录发送字节数
func WithCounter(c *metrics.TransferCounter) Option {
	return func(s *Server) {
		s.counter = c
	}
}

// New 创建文件服务器，shareDir 为对外提供文件的目录
func New(cfg config.TransferConfig, shareDir string, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		shareDir: shareDir,
		conns:    make(map[net.Conn]struct{}),
	}
	if cfg.MaxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	if cfg.AcceptRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 绑定监听地址并启动接受循环
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ln = ln
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)

	log.Info("file server listening", "addr", ln.Addr(), "shareDir", s.shareDir)
	return nil
}

// Stop 关闭监听与所有进行中的连接，等待处理协程退出
func (s *Server) Stop() error {
	s.mu.Lock()
	ln, cancel := s.ln, s.cancel
	if ln == nil {
		s.mu.Unlock()
		return nil
	}
	s.ln, s.cancel = nil, nil
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	cancel()
	err := ln.Close()
	s.wg.Wait()

	log.Info("file server stopped")
	return err
}

// Addr 返回监听地址，未启动时为 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Port 返回监听端口，未启动时为 0
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// ============================================================================
//                              接受循环
// ============================================================================

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Debug("accept failed", "err", err)
			time.Sleep(acceptRetryDelay)
			continue
		}

		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				conn.Close()
				return
			}
		}

		if !s.track(conn) {
			conn.Close()
			s.release()
			return
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

// ============================================================================
//                              连接处理
// ============================================================================

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.release()
	defer s.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr()

	if timeout := s.cfg.RequestTimeout.Duration(); timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}
	line, err := readRequestLine(conn)
	if err != nil {
		log.Debug("read transfer request failed", "remote", remote, "err", err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	name, err := protocol.ParseTransferRequest(line)
	if err != nil {
		log.Debug("dropping transfer request", "remote", remote, "err", err)
		return
	}

	f, err := s.open(name)
	if err != nil {
		log.Debug("requested file unavailable", "remote", remote, "resource", name, "err", err)
		if _, err := io.WriteString(conn, protocol.FileNotFound); err != nil {
			log.Debug("write not-found failed", "remote", remote, "err", err)
		}
		return
	}
	defer f.Close()

	n, err := io.Copy(conn, f)
	if s.counter != nil {
		s.counter.LogServed(name, n)
	}
	if err != nil {
		log.Warn("transfer interrupted", "remote", remote, "resource", name, "sent", n, "err", err)
		return
	}
	log.Info("file served", "remote", remote, "resource", name, "bytes", n)
}

// readRequestLine 读取请求行，以换行或对端关闭写方向结束
func readRequestLine(conn net.Conn) (string, error) {
	r := bufio.NewReader(io.LimitReader(conn, protocol.MaxTransferRequestSize))
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

// open 打开共享目录中的普通文件
//
// 名称必须是不含路径分隔符的本地文件名。
func (s *Server) open(name string) (*os.File, error) {
	if name != filepath.Base(name) || !filepath.IsLocal(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	path := filepath.Join(s.shareDir, name)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %q", ErrNotRegularFile, name)
	}
	return os.Open(path)
}
