package fileserver

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/metrics"
)

// Params 模块输入依赖
type Params struct {
	fx.In

	Config  *config.Config
	Counter *metrics.TransferCounter `optional:"true"`
}

// ProvideServer 提供文件服务器，共享目录取自节点配置
func ProvideServer(p Params) *Server {
	return New(p.Config.Transfer, p.Config.Peer.ShareDir, WithCounter(p.Counter))
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("fileserver",
		fx.Provide(ProvideServer),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop: func(_ context.Context) error {
			return s.Stop()
		},
	})
}
