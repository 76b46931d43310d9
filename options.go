package peershare

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-peershare/config"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	// clock 注入到注册表、存活监测和统计，nil 时使用系统时钟
	clock clock.Clock

	// 用户自定义 fx 选项
	fxOptions []fx.Option
}

func newOptions(opts []Option) (*options, error) {
	o := &options{config: config.NewConfig()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              通用选项
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置作为基础，后续选项在其上覆盖
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithMetrics 启用 Prometheus 导出，addr 为监听地址
func WithMetrics(addr string) Option {
	return func(o *options) error {
		o.config.Metrics.Enable = true
		if addr != "" {
			o.config.Metrics.ListenAddr = addr
		}
		return nil
	}
}

// WithClock 设置时钟，测试中用于控制存活超时
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithFxOptions 追加自定义 fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              目录服务选项
// ════════════════════════════════════════════════════════════════════════════

// WithDirectoryListenAddr 设置目录服务控制通道监听地址
func WithDirectoryListenAddr(addr string) Option {
	return func(o *options) error {
		o.config.Directory.ListenAddr = addr
		return nil
	}
}

// WithLiveness 设置存活探测周期与超时
func WithLiveness(interval, timeout time.Duration) Option {
	return func(o *options) error {
		o.config.Liveness.ProbeInterval = config.Duration(interval)
		o.config.Liveness.Timeout = config.Duration(timeout)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              节点选项
// ════════════════════════════════════════════════════════════════════════════

// WithIdentity 设置节点身份
func WithIdentity(identity string) Option {
	return func(o *options) error {
		o.config.Peer.Identity = identity
		return nil
	}
}

// WithDirectoryAddr 设置目录服务地址 host:port
func WithDirectoryAddr(addr string) Option {
	return func(o *options) error {
		o.config.Peer.DirectoryAddr = addr
		return nil
	}
}

// WithControlListenAddr 设置节点控制通道绑定地址
func WithControlListenAddr(addr string) Option {
	return func(o *options) error {
		o.config.Peer.ControlListenAddr = addr
		return nil
	}
}

// WithRequestTimeout 设置控制请求等待响应的上限，0 表示一直等待
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.config.Peer.RequestTimeout = config.Duration(d)
		return nil
	}
}

// WithShareDir 设置共享目录
func WithShareDir(dir string) Option {
	return func(o *options) error {
		o.config.Peer.ShareDir = dir
		return nil
	}
}

// WithDownloadDir 设置下载目录
func WithDownloadDir(dir string) Option {
	return func(o *options) error {
		o.config.Transfer.DownloadDir = dir
		return nil
	}
}

// WithTransferListenAddr 设置文件服务器监听地址
func WithTransferListenAddr(addr string) Option {
	return func(o *options) error {
		o.config.Transfer.ListenAddr = addr
		return nil
	}
}

// WithTransferLimits 设置文件服务器的并发上限与接受速率，0 表示不限
func WithTransferLimits(maxConcurrent int, acceptRate float64, acceptBurst int) Option {
	return func(o *options) error {
		o.config.Transfer.MaxConcurrent = maxConcurrent
		o.config.Transfer.AcceptRate = acceptRate
		o.config.Transfer.AcceptBurst = acceptBurst
		return nil
	}
}
