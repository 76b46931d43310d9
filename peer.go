package peershare

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"go.uber.org/fx"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/metrics"
	"github.com/dep2p/go-peershare/internal/peer/control"
	"github.com/dep2p/go-peershare/internal/peer/downloader"
	"github.com/dep2p/go-peershare/internal/peer/fileserver"
	"github.com/dep2p/go-peershare/internal/peer/share"
	"github.com/dep2p/go-peershare/pkg/types"
)

// Selector 从持有者列表中选择一个，返回其序号
type Selector = downloader.Selector

// DownloadResult 下载结果
type DownloadResult = downloader.Result

// TransferStats 传输统计
type TransferStats = metrics.Stats

// Peer 节点实例
//
// 启动成功即表示已在目录注册。并发调用控制方法是安全的，请求按顺序发出。
type Peer struct {
	app *fx.App
	cfg *config.Config

	client     *control.Client
	files      *fileserver.Server
	downloader *downloader.Downloader
	counter    *metrics.TransferCounter
	exporter   *metrics.Exporter

	mu     sync.Mutex
	closed bool
}

// StartPeer 创建节点、启动文件服务器与控制通道并向目录注册
//
// 目录拒绝注册时返回 ErrRegistrationRejected，已启动的组件全部关闭。
func StartPeer(ctx context.Context, opts ...Option) (*Peer, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	p := &Peer{cfg: o.config}
	app, err := buildPeerApp(o, p)
	if err != nil {
		return nil, err
	}
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build peer: %w", err)
	}
	p.app = app

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, fmt.Errorf("start peer: %w", err)
	}

	log.Info("peer started",
		"identity", p.Identity(),
		"transferPort", p.TransferPort(),
		"directory", p.client.Directory())
	return p, nil
}

// Identity 返回节点身份
func (p *Peer) Identity() string {
	return p.cfg.Peer.Identity
}

// TransferPort 返回文件服务器端口
func (p *Peer) TransferPort() int {
	return p.files.Port()
}

// ControlAddr 返回本地控制通道地址
func (p *Peer) ControlAddr() netip.AddrPort {
	return p.client.LocalAddr()
}

// ShareDir 返回共享目录
func (p *Peer) ShareDir() string {
	return p.cfg.Peer.ShareDir
}

// DownloadDir 返回下载目录
func (p *Peer) DownloadDir() string {
	return p.cfg.Transfer.DownloadDir
}

// MetricsAddr 返回指标导出地址，未启用时为 nil
func (p *Peer) MetricsAddr() net.Addr {
	return p.exporter.Addr()
}

// TransferStats 返回传输统计
func (p *Peer) TransferStats() TransferStats {
	return p.counter.Totals()
}

// ════════════════════════════════════════════════════════════════════════════
//                              控制通道
// ════════════════════════════════════════════════════════════════════════════

// Announce 发布一个资源
func (p *Peer) Announce(ctx context.Context, name string) error {
	return p.client.Announce(ctx, name)
}

// AnnounceShared 发布共享目录中的全部文件，返回尝试发布的文件名
//
// 单个文件发布失败不影响其余文件，错误合并返回。
func (p *Peer) AnnounceShared(ctx context.Context) ([]string, error) {
	names, err := share.List(p.ShareDir())
	if err != nil {
		return nil, fmt.Errorf("list share dir: %w", err)
	}
	return names, p.client.AnnounceAll(ctx, names)
}

// QueryResources 查询所有可用资源
func (p *Peer) QueryResources(ctx context.Context) ([]types.ResourceEntry, error) {
	return p.client.QueryResources(ctx)
}

// QueryUsers 查询活跃节点
func (p *Peer) QueryUsers(ctx context.Context) ([]string, error) {
	return p.client.QueryUsers(ctx)
}

// LookupOwners 查询资源的活跃持有者
func (p *Peer) LookupOwners(ctx context.Context, name string) ([]types.Owner, error) {
	return p.client.LookupOwners(ctx, name)
}

// ════════════════════════════════════════════════════════════════════════════
//                              传输
// ════════════════════════════════════════════════════════════════════════════

// Download 查询持有者并下载，sel 为 nil 时选择第一个持有者
func (p *Peer) Download(ctx context.Context, name string, sel Selector) (DownloadResult, error) {
	return p.downloader.Download(ctx, name, sel)
}

// Fetch 直接从指定持有者下载
func (p *Peer) Fetch(ctx context.Context, owner types.Owner, name string) (DownloadResult, error) {
	return p.downloader.Fetch(ctx, owner, name)
}

// Close 关闭控制通道与文件服务器
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := p.app.Stop(ctx); err != nil {
		return fmt.Errorf("stop peer: %w", err)
	}
	log.Info("peer closed", "identity", p.Identity())
	return nil
}
