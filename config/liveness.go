package config

import (
	"errors"
	"time"
)

// LivenessConfig 存活探测配置
//
// 每个周期先向所有活跃节点发送探测，再清理超过 Timeout 未应答的节点。
// Timeout 必须大于 ProbeInterval，默认留出三个探测周期的余量。
type LivenessConfig struct {
	// ProbeInterval 探测周期
	ProbeInterval Duration `json:"probe_interval"`

	// Timeout 判定节点不活跃的静默时长
	Timeout Duration `json:"timeout"`
}

// DefaultLivenessConfig 默认存活探测配置
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		ProbeInterval: Duration(5 * time.Second),
		Timeout:       Duration(15 * time.Second),
	}
}

// Validate 验证存活探测配置
func (c LivenessConfig) Validate() error {
	if c.ProbeInterval <= 0 {
		return errors.New("probe interval must be positive")
	}
	if c.Timeout <= c.ProbeInterval {
		return errors.New("timeout must be greater than probe interval")
	}
	return nil
}
