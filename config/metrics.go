package config

import (
	"errors"
	"time"
)

// MetricsConfig Prometheus 指标导出配置
type MetricsConfig struct {
	// Enable 是否启动 HTTP 导出
	Enable bool `json:"enable"`

	// ListenAddr 导出地址
	ListenAddr string `json:"listen_addr"`

	// Path 导出路径
	Path string `json:"path"`

	// TrimInterval 按资源统计的清理周期，0 表示不清理
	TrimInterval Duration `json:"trim_interval"`

	// IdleTimeout 资源统计空闲多久后被清理
	IdleTimeout Duration `json:"idle_timeout"`
}

// DefaultMetricsConfig 默认指标配置（不导出）
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enable:       false,
		ListenAddr:   ":9464",
		Path:         "/metrics",
		TrimInterval: Duration(10 * time.Minute),
		IdleTimeout:  Duration(time.Hour),
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.TrimInterval < 0 {
		return errors.New("trim interval must not be negative")
	}
	if c.TrimInterval > 0 && c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive when trimming is enabled")
	}
	if !c.Enable {
		return nil
	}
	if c.ListenAddr == "" {
		return errors.New("listen address is required when metrics are enabled")
	}
	if c.Path == "" || c.Path[0] != '/' {
		return errors.New("path must start with /")
	}
	return nil
}
