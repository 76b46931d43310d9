// Package control 实现节点与目录服务之间的控制通道客户端
//
// 客户端持有一个 UDP 套接字。后台协程持续读取：收到 hello 立即回复 hello response，
// 其余数据报交给待响应请求表。请求方法在发送后阻塞等待响应，
// 并发调用被串行化，保证同一时刻只有一个请求在途。
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/util/logger"
	"github.com/dep2p/go-peershare/pkg/protocol"
	"github.com/dep2p/go-peershare/pkg/types"
)

var log = logger.Logger("peer/control")

// Client 控制通道客户端
type Client struct {
	cfg config.PeerConfig

	mu        sync.Mutex
	conn      *net.UDPConn
	directory netip.AddrPort
	identity  string

	// reqMu 保证同一时刻只有一个请求在途
	reqMu   sync.Mutex
	pending pendingTable

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New 创建客户端
func New(cfg config.PeerConfig) *Client {
	return &Client{
		cfg:    cfg,
		closed: make(chan struct{}),
	}
}

// Start 解析目录服务地址、绑定本地套接字并启动读取协程
func (c *Client) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}
	if c.conn != nil {
		return ErrAlreadyStarted
	}

	raddr, err := net.ResolveUDPAddr("udp", c.cfg.DirectoryAddr)
	if err != nil {
		return fmt.Errorf("resolve directory address: %w", err)
	}
	c.directory = types.Unmap(raddr.AddrPort())

	laddr, err := net.ResolveUDPAddr("udp", c.cfg.ControlListenAddr)
	if err != nil {
		return fmt.Errorf("resolve control listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	c.conn = conn

	c.wg.Add(1)
	go c.listen(conn)

	log.Debug("control client started", "local", conn.LocalAddr(), "directory", c.directory)
	return nil
}

// Close 关闭套接字，唤醒所有等待中的请求并等待读取协程退出
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			err = conn.Close()
		}
		c.wg.Wait()
	})
	return err
}

// LocalAddr 返回本地控制套接字地址
func (c *Client) LocalAddr() netip.AddrPort {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return netip.AddrPort{}
	}
	return types.Unmap(c.conn.LocalAddr().(*net.UDPAddr).AddrPort())
}

// Directory 返回解析后的目录服务地址
func (c *Client) Directory() netip.AddrPort {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory
}

// Identity 返回注册成功的身份，未注册时为空
func (c *Client) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// ============================================================================
//                              读取协程
// ============================================================================

func (c *Client) listen(conn *net.UDPConn) {
	defer c.wg.Done()

	buf := make([]byte, protocol.MaxDatagramSize)
	for {
		n, src, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Debug("read datagram failed", "err", err)
			continue
		}
		src = types.Unmap(src)
		payload := string(buf[:n])

		if strings.TrimSpace(payload) == protocol.Hello {
			if _, err := conn.WriteToUDPAddrPort([]byte(protocol.HelloResponse), src); err != nil {
				log.Debug("liveness reply failed", "to", src, "err", err)
			}
			continue
		}

		p := c.pending.deliver(payload)
		if p == nil {
			log.Debug("dropping unsolicited datagram", "from", src, "size", n)
			continue
		}
		log.Debug("response delivered", "request", p.id, "kind", p.kind, "size", n)
	}
}

// ============================================================================
//                              请求
// ============================================================================

// request 发送一个请求并等待响应
func (c *Client) request(ctx context.Context, req protocol.Request) (string, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.mu.Lock()
	conn, dir := c.conn, c.directory
	c.mu.Unlock()

	select {
	case <-c.closed:
		return "", ErrClientClosed
	default:
	}
	if conn == nil {
		return "", ErrNotStarted
	}

	if timeout := c.cfg.RequestTimeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p := c.pending.add(req.Kind)
	defer c.pending.remove(p.id)

	if _, err := conn.WriteToUDPAddrPort([]byte(req.Encode()), dir); err != nil {
		return "", fmt.Errorf("send %s: %w", req.Kind, err)
	}

	select {
	case resp := <-p.resp:
		return resp, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", req.Kind, ctx.Err())
	case <-c.closed:
		return "", ErrClientClosed
	}
}

// Register 以 identity 注册，transferPort 为本节点文件服务器端口
func (c *Client) Register(ctx context.Context, identity string, transferPort int) error {
	if err := protocol.ValidateName(identity); err != nil {
		return err
	}

	resp, err := c.request(ctx, protocol.RegisterRequest(identity, transferPort))
	if err != nil {
		return err
	}
	if resp != protocol.RegistrationSuccessful {
		return fmt.Errorf("%w: %q", ErrRegistrationRejected, resp)
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	log.Info("registered with directory", "identity", identity, "transferPort", transferPort)
	return nil
}

// Announce 发布一个资源
func (c *Client) Announce(ctx context.Context, name string) error {
	identity := c.Identity()
	if identity == "" {
		return ErrNotRegistered
	}
	if err := protocol.ValidateName(name); err != nil {
		return err
	}

	resp, err := c.request(ctx, protocol.AnnounceRequest(name, identity))
	if err != nil {
		return err
	}
	if resp != protocol.ResourceAnnounced {
		return fmt.Errorf("%w: announce %s: %q", ErrUnexpectedResponse, name, resp)
	}
	return nil
}

// AnnounceAll 依次发布 names，单个失败不影响其余，返回合并后的错误
func (c *Client) AnnounceAll(ctx context.Context, names []string) error {
	var errs error
	for _, name := range names {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		if err := c.Announce(ctx, name); err != nil {
			log.Warn("announce failed", "resource", name, "err", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		log.Info("resource announced", "resource", name)
	}
	return errs
}

// QueryResources 查询所有可用资源
func (c *Client) QueryResources(ctx context.Context) ([]types.ResourceEntry, error) {
	resp, err := c.request(ctx, protocol.Request{Kind: protocol.KindQueryResources})
	if err != nil {
		return nil, err
	}
	return protocol.ParseResources(resp)
}

// QueryUsers 查询活跃节点
func (c *Client) QueryUsers(ctx context.Context) ([]string, error) {
	resp, err := c.request(ctx, protocol.Request{Kind: protocol.KindQueryUsers})
	if err != nil {
		return nil, err
	}
	return protocol.ParseUsers(resp)
}

// LookupOwners 查询资源的活跃持有者
//
// 资源未发布或持有者全部不活跃时返回 protocol.ErrResourceNotFound。
func (c *Client) LookupOwners(ctx context.Context, name string) ([]types.Owner, error) {
	if err := protocol.ValidateName(name); err != nil {
		return nil, err
	}
	resp, err := c.request(ctx, protocol.ResourceInfoRequest(name))
	if err != nil {
		return nil, err
	}
	return protocol.ParseOwners(resp)
}
