package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats 传输统计快照
type Stats struct {
	Served       int64   // 文件服务发送的字节
	Downloaded   int64   // 下载接收的字节
	ServeRate    float64 // 发送速率（字节/秒）
	DownloadRate float64 // 接收速率（字节/秒）
	Transfers    int64   // 完成的发送次数
	Downloads    int64   // 完成的下载次数
}

type resourceMeters struct {
	served     *RateMeter
	downloaded *RateMeter
	transfers  int64
	downloads  int64
}

// TransferCounter 传输计数器
//
// 记录文件服务发送与下载接收的字节数，总量与按资源分别统计。
type TransferCounter struct {
	clock clock.Clock

	served     *RateMeter
	downloaded *RateMeter

	mu         sync.RWMutex
	transfers  int64
	downloads  int64
	byResource map[string]*resourceMeters

	bytesDesc         *prometheus.Desc
	rateDesc          *prometheus.Desc
	countDesc         *prometheus.Desc
	resourceBytesDesc *prometheus.Desc
	resourceCountDesc *prometheus.Desc
}

var _ prometheus.Collector = (*TransferCounter)(nil)

// NewTransferCounter 创建传输计数器，clk 为 nil 时使用系统时钟
func NewTransferCounter(clk clock.Clock) *TransferCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &TransferCounter{
		clock:      clk,
		served:     NewRateMeter(clk),
		downloaded: NewRateMeter(clk),
		byResource: make(map[string]*resourceMeters),
		bytesDesc: prometheus.NewDesc("peershare_transfer_bytes_total",
			"Bytes moved over the transfer channel.", []string{"direction"}, nil),
		rateDesc: prometheus.NewDesc("peershare_transfer_rate_bytes",
			"Average transfer rate over the last minute in bytes per second.", []string{"direction"}, nil),
		countDesc: prometheus.NewDesc("peershare_transfers_total",
			"Completed transfers.", []string{"direction"}, nil),
		resourceBytesDesc: prometheus.NewDesc("peershare_resource_transfer_bytes_total",
			"Bytes moved per resource. Idle resources are dropped.", []string{"resource", "direction"}, nil),
		resourceCountDesc: prometheus.NewDesc("peershare_resource_transfers_total",
			"Completed transfers per resource.", []string{"resource", "direction"}, nil),
	}
}

// meters 返回资源的计量器，不存在时创建，调用方必须持有 mu 写锁
func (c *TransferCounter) meters(name string) *resourceMeters {
	m := c.byResource[name]
	if m == nil {
		m = &resourceMeters{served: NewRateMeter(c.clock), downloaded: NewRateMeter(c.clock)}
		c.byResource[name] = m
	}
	return m
}

// LogServed 记录一次文件发送
func (c *TransferCounter) LogServed(name string, n int64) {
	c.served.Add(n)

	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.meters(name)
	m.served.Add(n)
	m.transfers++
	c.transfers++
}

// LogDownloaded 记录一次下载
func (c *TransferCounter) LogDownloaded(name string, n int64) {
	c.downloaded.Add(n)

	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.meters(name)
	m.downloaded.Add(n)
	m.downloads++
	c.downloads++
}

// Totals 返回总体统计
func (c *TransferCounter) Totals() Stats {
	c.mu.RLock()
	transfers, downloads := c.transfers, c.downloads
	c.mu.RUnlock()

	return Stats{
		Served:       c.served.Total(),
		Downloaded:   c.downloaded.Total(),
		ServeRate:    c.served.Rate(),
		DownloadRate: c.downloaded.Rate(),
		Transfers:    transfers,
		Downloads:    downloads,
	}
}

// ForResource 返回单个资源的统计
func (c *TransferCounter) ForResource(name string) Stats {
	c.mu.RLock()
	m := c.byResource[name]
	var transfers, downloads int64
	if m != nil {
		transfers, downloads = m.transfers, m.downloads
	}
	c.mu.RUnlock()

	if m == nil {
		return Stats{}
	}
	return Stats{
		Served:       m.served.Total(),
		Downloaded:   m.downloaded.Total(),
		ServeRate:    m.served.Rate(),
		DownloadRate: m.downloaded.Rate(),
		Transfers:    transfers,
		Downloads:    downloads,
	}
}

// Resources 返回有统计记录的资源名，按名称排序
func (c *TransferCounter) Resources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.byResource))
	for name := range c.byResource {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TrimIdle 清理 since 之后没有活动的资源统计
func (c *TransferCounter) TrimIdle(since time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, m := range c.byResource {
		if m.served.LastUpdate().Before(since) && m.downloaded.LastUpdate().Before(since) {
			delete(c.byResource, name)
		}
	}
}

// StartTrim 每隔 interval 清理空闲超过 idle 的资源统计，返回停止函数
func (c *TransferCounter) StartTrim(interval, idle time.Duration) (stop func()) {
	ticker := c.clock.Ticker(interval)
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.TrimIdle(c.clock.Now().Add(-idle))
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}

// Describe 实现 prometheus.Collector
func (c *TransferCounter) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytesDesc
	ch <- c.rateDesc
	ch <- c.countDesc
	ch <- c.resourceBytesDesc
	ch <- c.resourceCountDesc
}

// Collect 实现 prometheus.Collector
func (c *TransferCounter) Collect(ch chan<- prometheus.Metric) {
	st := c.Totals()
	ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(st.Served), "served")
	ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(st.Downloaded), "downloaded")
	ch <- prometheus.MustNewConstMetric(c.rateDesc, prometheus.GaugeValue, st.ServeRate, "served")
	ch <- prometheus.MustNewConstMetric(c.rateDesc, prometheus.GaugeValue, st.DownloadRate, "downloaded")
	ch <- prometheus.MustNewConstMetric(c.countDesc, prometheus.CounterValue, float64(st.Transfers), "served")
	ch <- prometheus.MustNewConstMetric(c.countDesc, prometheus.CounterValue, float64(st.Downloads), "downloaded")

	// 只导出实际发生过该方向传输的资源，空闲被清理的资源不再出现
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, m := range c.byResource {
		if m.transfers > 0 {
			ch <- prometheus.MustNewConstMetric(c.resourceBytesDesc, prometheus.CounterValue, float64(m.served.Total()), name, "served")
			ch <- prometheus.MustNewConstMetric(c.resourceCountDesc, prometheus.CounterValue, float64(m.transfers), name, "served")
		}
		if m.downloads > 0 {
			ch <- prometheus.MustNewConstMetric(c.resourceBytesDesc, prometheus.CounterValue, float64(m.downloaded.Total()), name, "downloaded")
			ch <- prometheus.MustNewConstMetric(c.resourceCountDesc, prometheus.CounterValue, float64(m.downloads), name, "downloaded")
		}
	}
}
