package peershare

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/directory/liveness"
	"github.com/dep2p/go-peershare/internal/directory/server"
	"github.com/dep2p/go-peershare/internal/metrics"
	"github.com/dep2p/go-peershare/internal/peer/control"
	"github.com/dep2p/go-peershare/internal/peer/downloader"
	"github.com/dep2p/go-peershare/internal/peer/fileserver"
	"github.com/dep2p/go-peershare/internal/util/logger"
)

var fxLogger = logger.Logger("peershare/fx")

// commonModules 两种角色共用的模块：配置、时钟、指标注册表与导出器
func commonModules(o *options) []fx.Option {
	modules := []fx.Option{
		fx.Supply(o.config),
	}
	if o.clock != nil {
		clk := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}
	return append(modules, metrics.Module())
}

// fxLogging 禁用 fx 日志输出（避免干扰用户日志）
func fxLogging() fx.Option {
	return fx.WithLogger(newFxEventLogger)
}

func newFxEventLogger() fxevent.Logger {
	return &fxevent.ZapLogger{Logger: zap.NewNop()}
}

// ════════════════════════════════════════════════════════════════════════════
//                              目录服务
// ════════════════════════════════════════════════════════════════════════════

// buildDirectoryApp 构建目录服务的 fx 应用
//
// 启动顺序：指标导出 → 控制通道 → 存活监测。监测器的第一轮探测使用已绑定的套接字。
func buildDirectoryApp(o *options, d *Directory) (*fx.App, error) {
	if err := o.config.Directory.Validate(); err != nil {
		return nil, fmt.Errorf("directory config: %w", err)
	}
	if err := o.config.Liveness.Validate(); err != nil {
		return nil, fmt.Errorf("liveness config: %w", err)
	}
	if err := o.config.Metrics.Validate(); err != nil {
		return nil, fmt.Errorf("metrics config: %w", err)
	}

	modules := commonModules(o)
	modules = append(modules,
		server.Module(),
		liveness.Module(),
	)
	modules = append(modules, o.fxOptions...)
	modules = append(modules,
		fx.Populate(&d.server, &d.store, &d.monitor, &d.exporter),
	)
	modules = append(modules, fxLogging())

	return fx.New(modules...), nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              节点
// ════════════════════════════════════════════════════════════════════════════

// buildPeerApp 构建节点的 fx 应用
//
// 启动顺序：指标导出 → 文件服务器 → 控制通道 → 注册。
// 注册需要文件服务器的实际端口；注册被拒绝时 fx 回滚已启动的组件。
func buildPeerApp(o *options, p *Peer) (*fx.App, error) {
	if o.config.Peer.Identity == "" {
		return nil, ErrIdentityRequired
	}
	if o.config.Peer.DirectoryAddr == "" {
		return nil, ErrDirectoryRequired
	}
	for name, validate := range map[string]func() error{
		"peer":     o.config.Peer.Validate,
		"transfer": o.config.Transfer.Validate,
		"metrics":  o.config.Metrics.Validate,
	} {
		if err := validate(); err != nil {
			return nil, fmt.Errorf("%s config: %w", name, err)
		}
	}

	modules := commonModules(o)
	modules = append(modules,
		metrics.TransferModule(),
		fileserver.Module(),
		control.Module(),
		downloader.Module(),
	)
	modules = append(modules, o.fxOptions...)
	modules = append(modules,
		fx.Invoke(registerWithDirectory),
		fx.Populate(&p.client, &p.files, &p.downloader, &p.counter, &p.exporter),
	)
	modules = append(modules, fxLogging())

	return fx.New(modules...), nil
}

// registerParams 注册依赖
type registerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Client    *control.Client
	Files     *fileserver.Server
}

// registerWithDirectory 在文件服务器与控制通道启动后向目录注册
func registerWithDirectory(p registerParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			identity := p.Config.Peer.Identity
			port := p.Files.Port()
			if err := p.Client.Register(ctx, identity, port); err != nil {
				fxLogger.Error("registration failed", "identity", identity, "err", err)
				return err
			}
			fxLogger.Debug("peer registered", "identity", identity, "transferPort", port)
			return nil
		},
	})
}
