// Package server 实现目录服务的 UDP 控制通道
//
// 一个协程顺序读取套接字上的数据报，逐个交给 handler 处理并按需回复。
// 同一个套接字也用于发送存活探测，因此节点看到的探测来源就是目录服务的知名端口。
package server

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/directory/handler"
	"github.com/dep2p/go-peershare/internal/util/logger"
	"github.com/dep2p/go-peershare/pkg/protocol"
	"github.com/dep2p/go-peershare/pkg/types"
)

var log = logger.Logger("directory/server")

// Server 目录服务控制通道
type Server struct {
	cfg     config.DirectoryConfig
	handler *handler.Handler
	metrics *Metrics

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool

	wg sync.WaitGroup
}

// New 创建服务，metrics 可以为 nil
func New(cfg config.DirectoryConfig, h *handler.Handler, m *Metrics) *Server {
	return &Server{
		cfg:     cfg,
		handler: h,
		metrics: m,
	}
}

// Start 绑定控制端口并启动读取循环
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return ErrAlreadyStarted
	}

	laddr, err := net.ResolveUDPAddr("udp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	s.conn = conn
	s.closed = false

	s.wg.Add(1)
	go s.serve(conn)

	log.Info("directory listening", "addr", conn.LocalAddr())
	return nil
}

// Stop 关闭套接字并等待读取循环退出
func (s *Server) Stop() error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := conn.Close()
	s.wg.Wait()

	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()

	log.Info("directory stopped")
	return err
}

// LocalAddr 返回控制端口的实际地址
func (s *Server) LocalAddr() netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return netip.AddrPort{}
	}
	return types.Unmap(s.conn.LocalAddr().(*net.UDPAddr).AddrPort())
}

// Probe 向 addr 发送一次 hello 探测
func (s *Server) Probe(_ context.Context, addr netip.AddrPort) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotStarted
	}

	_, err := conn.WriteToUDPAddrPort([]byte(protocol.Hello), addr)
	s.metrics.probeSent(err)
	return err
}

func (s *Server) serve(conn *net.UDPConn) {
	defer s.wg.Done()

	buf := make([]byte, protocol.MaxDatagramSize)
	for {
		n, src, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// 某些平台会把上一次发送触发的 ICMP 不可达报告在读取上
			log.Debug("read datagram failed", "err", err)
			continue
		}
		src = types.Unmap(src)

		res := s.handler.Handle(src, buf[:n])
		s.metrics.requestHandled(res)
		if !res.Reply {
			continue
		}

		if _, err := conn.WriteToUDPAddrPort([]byte(res.Payload), src); err != nil {
			log.Warn("send response failed",
				"to", src,
				"kind", res.Kind,
				"size", len(res.Payload),
				"err", err)
		}
	}
}
