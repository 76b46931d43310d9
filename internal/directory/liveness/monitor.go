// Package liveness 实现目录服务的存活监测
//
// 每个周期分两步执行：先向所有活跃节点发送 hello 探测，
// 再把超过超时时长未应答的节点降级为不活跃并清理其资源。
// 应答由控制处理器通过 Store.MarkAlive 记录，监测器本身不接收数据报。
package liveness

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-peershare/config"
	"github.com/dep2p/go-peershare/internal/util/logger"
	"github.com/dep2p/go-peershare/pkg/types"
)

var log = logger.Logger("directory/liveness")

// ErrAlreadyStarted 监测器已启动
var ErrAlreadyStarted = errors.New("liveness: monitor already started")

// ============================================================================
//                              依赖接口
// ============================================================================

// Store 监测器所需的注册表操作
type Store interface {
	ActiveEndpoints() []types.PeerEndpoint
	SweepExpired(now time.Time, timeout time.Duration) []string
}

// Prober 发送存活探测
type Prober interface {
	Probe(ctx context.Context, addr netip.AddrPort) error
}

// ============================================================================
//                              Monitor
// ============================================================================

// Monitor 周期性探测与清理
type Monitor struct {
	interval time.Duration
	timeout  time.Duration

	store  Store
	prober Prober
	clock  clock.Clock

	onDemote func(identities []string)

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option 监测器选项
type Option func(*Monitor)

// WithClock 设置时钟，测试中使用 clock.NewMock()
func WithClock(clk clock.Clock) Option {
	return func(m *Monitor) {
		if clk != nil {
			m.clock = clk
		}
	}
}

// WithDemoteHook 设置降级回调，在清理步骤之后同步调用
func WithDemoteHook(fn func(identities []string)) Option {
	return func(m *Monitor) {
		m.onDemote = fn
	}
}

// NewMonitor 创建监测器
func NewMonitor(cfg config.LivenessConfig, store Store, prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		interval: cfg.ProbeInterval.Duration(),
		timeout:  cfg.Timeout.Duration(),
		store:    store,
		prober:   prober,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start 启动监测循环
//
// 第一个周期立即执行，之后每个探测周期执行一次。
func (m *Monitor) Start(_ context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	// 使用独立的 context，不受启动 context 的取消影响
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	// 在启动协程之前创建 ticker，保证 mock 时钟推进时已被注册
	ticker := m.clock.Ticker(m.interval)

	m.wg.Add(1)
	go m.loop(ctx, ticker)

	log.Info("liveness monitor started",
		"interval", m.interval,
		"timeout", m.timeout)
	return nil
}

// Stop 停止监测循环并等待当前周期结束
func (m *Monitor) Stop() error {
	if !m.running.CompareAndSwap(true, false) {
		return nil
	}
	m.cancel()
	m.wg.Wait()
	log.Info("liveness monitor stopped")
	return nil
}

func (m *Monitor) loop(ctx context.Context, ticker *clock.Ticker) {
	defer m.wg.Done()
	defer ticker.Stop()

	m.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一个完整周期：探测所有活跃节点，然后清理超时节点
//
// 返回本周期被降级的身份。
func (m *Monitor) RunOnce(ctx context.Context) []string {
	m.probe(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return m.sweep()
}

func (m *Monitor) probe(ctx context.Context) {
	for _, ep := range m.store.ActiveEndpoints() {
		if ctx.Err() != nil {
			return
		}
		if err := m.prober.Probe(ctx, ep.ControlAddr); err != nil {
			log.Debug("probe failed",
				"identity", ep.Identity,
				"addr", ep.ControlAddr,
				"err", err)
		}
	}
}

func (m *Monitor) sweep() []string {
	demoted := m.store.SweepExpired(m.clock.Now(), m.timeout)
	for _, id := range demoted {
		log.Info("peer marked inactive", "identity", id)
	}
	if len(demoted) > 0 && m.onDemote != nil {
		m.onDemote(demoted)
	}
	return demoted
}
