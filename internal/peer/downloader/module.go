package downloader

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/metrics"
	"github.com/dep2p/go-peershare/internal/peer/control"
)

// Params 模块输入依赖
type Params struct {
	fx.In

	Config  *config.Config
	Client  *control.Client
	Counter *metrics.TransferCounter `optional:"true"`
}

// ProvideDownloader 提供下载器，持有者通过控制通道客户端查询
func ProvideDownloader(p Params) *Downloader {
	return New(p.Config.Transfer, p.Client, WithCounter(p.Counter))
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("downloader",
		fx.Provide(ProvideDownloader),
	)
}
