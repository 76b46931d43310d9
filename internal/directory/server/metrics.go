package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dep2p/go-peershare/internal/directory/handler"
	"github.com/dep2p/go-peershare/internal/directory/store"
	"github.com/dep2p/go-peershare/pkg/protocol"
)

// Metrics 目录服务指标
type Metrics struct {
	requests    *prometheus.CounterVec
	dropped     prometheus.Counter
	probes      prometheus.Counter
	probeErrors prometheus.Counter
	demotions   prometheus.Counter
}

// NewMetrics 在 reg 上注册目录服务指标，注册表统计通过函数指标读取
func NewMetrics(reg prometheus.Registerer, st *store.Store) *Metrics {
	f := promauto.With(reg)

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "peershare_directory_active_peers",
		Help: "Peers currently marked active.",
	}, func() float64 { return float64(st.Stats().ActivePeers) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "peershare_directory_peers",
		Help: "Peer records ever registered.",
	}, func() float64 { return float64(st.Stats().TotalPeers) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "peershare_directory_resources",
		Help: "Resource records held by the directory.",
	}, func() float64 { return float64(st.Stats().Resources) })

	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "peershare_directory_requests_total",
			Help: "Control datagrams handled, by command.",
		}, []string{"command"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "peershare_directory_dropped_total",
			Help: "Control datagrams dropped as unknown or malformed.",
		}),
		probes: f.NewCounter(prometheus.CounterOpts{
			Name: "peershare_directory_probes_total",
			Help: "Liveness probes sent.",
		}),
		probeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "peershare_directory_probe_errors_total",
			Help: "Liveness probes that failed to send.",
		}),
		demotions: f.NewCounter(prometheus.CounterOpts{
			Name: "peershare_directory_demotions_total",
			Help: "Peers demoted to inactive by the liveness monitor.",
		}),
	}
}

func (m *Metrics) requestHandled(res handler.Result) {
	if m == nil {
		return
	}
	if res.Kind == protocol.KindUnknown {
		m.dropped.Inc()
		return
	}
	m.requests.WithLabelValues(res.Kind.String()).Inc()
}

func (m *Metrics) probeSent(err error) {
	if m == nil {
		return
	}
	m.probes.Inc()
	if err != nil {
		m.probeErrors.Inc()
	}
}

// demoted 作为存活监测的降级回调
func (m *Metrics) demoted(identities []string) {
	if m == nil {
		return
	}
	m.demotions.Add(float64(len(identities)))
}
