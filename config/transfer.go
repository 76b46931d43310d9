package config

import (
	"errors"
	"time"
)

// TransferConfig 传输通道配置
type TransferConfig struct {
	// ListenAddr 文件服务器 TCP 监听地址，端口 0 表示临时端口
	ListenAddr string `json:"listen_addr"`

	// DownloadDir 下载文件保存目录
	DownloadDir string `json:"download_dir"`

	// DialTimeout 连接资源持有者的超时，0 表示不限
	DialTimeout Duration `json:"dial_timeout"`

	// RequestTimeout 文件服务器读取请求行的超时
	RequestTimeout Duration `json:"request_timeout"`

	// MaxConcurrent 同时服务的连接数上限，0 表示不限
	MaxConcurrent int `json:"max_concurrent"`

	// AcceptRate 每秒接受的新连接数上限，0 表示不限
	AcceptRate float64 `json:"accept_rate"`

	// AcceptBurst 接受速率的突发容量
	AcceptBurst int `json:"accept_burst"`
}

// DefaultTransferConfig 默认传输通道配置
func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		ListenAddr:     ":0",
		DownloadDir:    ".",
		DialTimeout:    Duration(10 * time.Second),
		RequestTimeout: Duration(10 * time.Second),
	}
}

// Validate 验证传输通道配置
func (c TransferConfig) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if c.DownloadDir == "" {
		return errors.New("download dir is required")
	}
	if c.DialTimeout < 0 || c.RequestTimeout < 0 {
		return errors.New("timeouts must be non-negative")
	}
	if c.MaxConcurrent < 0 {
		return errors.New("max concurrent must be non-negative")
	}
	if c.AcceptRate < 0 {
		return errors.New("accept rate must be non-negative")
	}
	if c.AcceptRate > 0 && c.AcceptBurst <= 0 {
		return errors.New("accept burst must be positive when accept rate is set")
	}
	return nil
}
