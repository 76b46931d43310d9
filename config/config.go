// Package config 提供 peershare 的统一配置管理
//
// 目录服务和节点共用一个 Config，每个子配置在独立文件中定义：
//   - Directory: 目录服务控制通道
//   - Liveness: 存活探测周期与超时
//   - Peer: 节点身份、目录地址、共享目录
//   - Transfer: 传输通道监听、下载目录、准入限制
//   - Metrics: Prometheus 指标导出
//
// 配置优先级（从高到低）：命令行参数 > 环境变量 (PEERSHARE_*) > JSON 文件 > 默认值。
//
// 使用示例：
//
//	cfg, err := config.LoadFile("peershare.json")
//	if err != nil {
//	    return err
//	}
//	config.ApplyEnv(cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config peershare 完整配置
type Config struct {
	// Directory 目录服务配置
	Directory DirectoryConfig `json:"directory"`

	// Liveness 存活探测配置
	Liveness LivenessConfig `json:"liveness"`

	// Peer 节点配置
	Peer PeerConfig `json:"peer"`

	// Transfer 传输通道配置
	Transfer TransferConfig `json:"transfer"`

	// Metrics 指标导出配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Directory: DefaultDirectoryConfig(),
		Liveness:  DefaultLivenessConfig(),
		Peer:      DefaultPeerConfig(),
		Transfer:  DefaultTransferConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 验证所有子配置
//
// 节点身份、目录地址等只对某一角色必需的字段由对应的启动入口检查。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Directory.Validate(); err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	if err := c.Liveness.Validate(); err != nil {
		return fmt.Errorf("liveness: %w", err)
	}
	if err := c.Peer.Validate(); err != nil {
		return fmt.Errorf("peer: %w", err)
	}
	if err := c.Transfer.Validate(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// Clone 返回配置的深拷贝
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// FromJSON 从 JSON 数据创建配置，未出现的字段保持默认值
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromJSON(data)
}

// ToJSON 将配置序列化为缩进 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
