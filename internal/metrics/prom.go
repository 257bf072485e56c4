package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prom exports the latest sensor values and failed polls of one sensor.
type Prom struct {
	reg      *prometheus.Registry
	values   *prometheus.GaugeVec
	failures prometheus.Counter
	polls    prometheus.Counter
}

func NewProm(sensor string) *Prom {
	labels := prometheus.Labels{"sensor": sensor}
	p := &Prom{
		reg: prometheus.NewRegistry(),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "meep",
			Name:        "sensor_value",
			Help:        "Latest compensated sensor value, by quantity.",
			ConstLabels: labels,
		}, []string{"quantity"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "meep",
			Name:        "sensor_read_failures_total",
			Help:        "Sensor polls that returned an error.",
			ConstLabels: labels,
		}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "meep",
			Name:        "sensor_polls_total",
			Help:        "Sensor polls attempted.",
			ConstLabels: labels,
		}),
	}
	p.reg.MustRegister(p.values, p.failures, p.polls)

	return p
}

func (p *Prom) Gauge(key string, val float64) {
	p.values.WithLabelValues(key).Set(val)
}

// Poll counts one poll, failed or not.
func (p *Prom) Poll(err error) {
	p.polls.Inc()
	if err != nil {
		p.failures.Inc()
	}
}

func (p *Prom) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}
