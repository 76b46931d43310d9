package control

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-peershare/config"
)

// ProvideClient 提供控制通道客户端
func ProvideClient(cfg *config.Config) *Client {
	return New(cfg.Peer)
}

// Module 返回 fx 模块配置
//
// 模块只负责套接字生命周期，注册由节点在文件服务器就绪后完成。
func Module() fx.Option {
	return fx.Module("control",
		fx.Provide(ProvideClient),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, c *Client) {
	lc.Append(fx.Hook{
		OnStart: c.Start,
		OnStop: func(_ context.Context) error {
			return c.Close()
		},
	})
}
