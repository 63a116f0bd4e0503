package wallet

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const (
	resultOK      = "ok"
	resultError   = "error"
	resultDenied  = "denied"
	resultInvalid = "invalid"
)

// Metrics counts wallet operations. Labels never carry key material.
type Metrics struct {
	registry *prometheus.Registry

	generated   *prometheus.CounterVec
	genDuration prometheus.Histogram
	keyReads    *prometheus.CounterVec
	validations *prometheus.CounterVec
	exports     *prometheus.CounterVec
	restores    *prometheus.CounterVec
	wipes       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.generated = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voterkey",
		Subsystem: "wallet",
		Name:      "keypairs_generated_total",
		Help:      "Key pairs generated, by generation method",
	}, []string{"method"})

	m.genDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: "voterkey",
		Subsystem: "wallet",
		Name:      "generation_duration_seconds",
		Help:      "Time spent walking the generation strategy chain",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	m.keyReads = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voterkey",
		Subsystem: "wallet",
		Name:      "private_key_reads_total",
		Help:      "Private key reads, by result",
	}, []string{"result"})

	m.validations = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voterkey",
		Subsystem: "wallet",
		Name:      "validations_total",
		Help:      "Stored key validations, by result",
	}, []string{"result"})

	m.exports = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voterkey",
		Subsystem: "wallet",
		Name:      "exports_total",
		Help:      "Backup exports, by result",
	}, []string{"result"})

	m.restores = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voterkey",
		Subsystem: "wallet",
		Name:      "restores_total",
		Help:      "Backup restores, by result",
	}, []string{"result"})

	m.wipes = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voterkey",
		Subsystem: "wallet",
		Name:      "wipes_total",
		Help:      "Secure wipes, by result",
	}, []string{"result"})

	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func resultOf(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}

// WriteText writes the registry in the Prometheus text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
