package peershare

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-peershare/internal/directory/liveness"
	"github.com/dep2p/go-peershare/internal/directory/server"
	"github.com/dep2p/go-peershare/internal/directory/store"
	"github.com/dep2p/go-peershare/internal/metrics"
	"github.com/dep2p/go-peershare/internal/util/logger"
	"github.com/dep2p/go-peershare/pkg/types"
)

var log = logger.Logger("peershare")

const (
	// startTimeout 启动 fx 应用的超时
	startTimeout = 30 * time.Second

	// stopTimeout 停止 fx 应用的超时
	stopTimeout = 10 * time.Second
)

// Directory 目录服务实例
type Directory struct {
	app *fx.App

	server   *server.Server
	store    *store.Store
	monitor  *liveness.Monitor
	exporter *metrics.Exporter

	closeOnce sync.Once
	closeErr  error
}

// StartDirectory 创建并启动目录服务
func StartDirectory(ctx context.Context, opts ...Option) (*Directory, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	d := &Directory{}
	app, err := buildDirectoryApp(o, d)
	if err != nil {
		return nil, err
	}
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build directory: %w", err)
	}
	d.app = app

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, fmt.Errorf("start directory: %w", err)
	}

	log.Info("directory started", "addr", d.Addr())
	return d, nil
}

// Addr 返回控制通道地址
func (d *Directory) Addr() netip.AddrPort {
	return d.server.LocalAddr()
}

// MetricsAddr 返回指标导出地址，未启用时为 nil
func (d *Directory) MetricsAddr() net.Addr {
	return d.exporter.Addr()
}

// ActivePeers 返回活跃节点身份
func (d *Directory) ActivePeers() []string {
	return d.store.ActivePeers()
}

// Peers 返回全部节点记录
func (d *Directory) Peers() []types.PeerInfo {
	return d.store.Peers()
}

// Resources 返回持有者活跃的资源
func (d *Directory) Resources() []types.ResourceEntry {
	return d.store.Resources()
}

// Owners 返回资源的活跃持有者
func (d *Directory) Owners(name string) []types.Owner {
	return d.store.Owners(name)
}

// CheckLiveness 立即执行一轮探测与清理，返回被降级的身份
func (d *Directory) CheckLiveness(ctx context.Context) []string {
	return d.monitor.RunOnce(ctx)
}

// Close 停止存活监测与控制通道
func (d *Directory) Close() error {
	d.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		d.closeErr = d.app.Stop(ctx)
		log.Info("directory closed")
	})
	return d.closeErr
}
