package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/sensors"
	"codeberg.org/mutker/thermalctl/internal/thermal"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter owns a private registry so several exporters can coexist in
// one process.
type Exporter struct {
	registry *prometheus.Registry
	source   StatusSource

	temperature *prometheus.GaugeVec
	fanRPM      *prometheus.GaugeVec
	fanPercent  *prometheus.GaugeVec
	power       *prometheus.GaugeVec
	voltage     *prometheus.GaugeVec
	mode        prometheus.Gauge
	band        prometheus.Gauge
	escalation  prometheus.Gauge
	alerts      prometheus.Gauge
	samples     prometheus.Counter
}

func NewExporter(source StatusSource) *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		source:   source,
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Selected CPU and GPU temperature in Celsius.",
		}, []string{"device"}),
		fanRPM: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fan_rpm",
			Help:      "Selected CPU fan speed.",
		}, []string{"device"}),
		fanPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fan_speed_percent",
			Help:      "Selected GPU fan speed as a percentage.",
		}, []string{"device"}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_watts",
			Help:      "Selected CPU and GPU power draw in watts.",
		}, []string{"device"}),
		voltage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voltage_volts",
			Help:      "Labeled voltage readings.",
		}, []string{"sensor"}),
		mode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_mode",
			Help:      "Current power mode (0=performance, 1=balanced, 2=powersaver, 3=emergency).",
		}),
		band: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "thermal_band",
			Help:      "Current thermal band (0=comfort, 1=warning, 2=critical, 3=high-risk, 4=emergency).",
		}),
		escalation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "escalation_counter",
			Help:      "Consecutive critical ticks.",
		}),
		alerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_active",
			Help:      "Number of alerts in the latest snapshot.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total snapshots recorded.",
		}),
	}

	e.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		e.temperature, e.fanRPM, e.fanPercent, e.power, e.voltage,
		e.mode, e.band, e.escalation, e.alerts, e.samples,
	)

	return e
}

func (e *Exporter) Record(ctx context.Context, status thermal.Status) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(ErrOperationTimeout, err)
	}

	snap := status.Snapshot
	setOptional(e.temperature, "cpu", snap.CPUTemp)
	setOptional(e.temperature, "gpu", snap.GPUTemp)
	setOptional(e.fanRPM, "cpu", snap.FanRPM)
	setOptional(e.fanPercent, "gpu", snap.GPUFan)
	setOptional(e.power, "cpu", snap.CPUPower)
	setOptional(e.power, "gpu", snap.GPUPower)

	e.voltage.Reset()
	for name, v := range snap.Voltages {
		e.voltage.WithLabelValues(name).Set(v)
	}

	e.mode.Set(float64(status.Mode))
	e.band.Set(float64(status.Band))
	e.escalation.Set(float64(status.Escalation))
	e.alerts.Set(float64(len(snap.Alerts)))
	e.samples.Inc()

	return nil
}

// Missing readings are removed rather than reported as zero.
func setOptional(vec *prometheus.GaugeVec, label string, v *float64) {
	if v == nil {
		vec.DeleteLabelValues(label)
		return
	}
	vec.WithLabelValues(label).Set(*v)
}

// Handler serves the Prometheus scrape endpoint plus JSON status and history.
func (e *Exporter) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	r.Get("/status", e.handleStatus)
	r.Get("/history", e.handleHistory)

	return r
}

type statusResponse struct {
	thermal.Status
	Readings []readingResponse `json:"readings,omitempty"`
}

type readingResponse struct {
	Kind   string  `json:"kind"`
	Chip   string  `json:"chip"`
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Source string  `json:"source"`
}

func (e *Exporter) handleStatus(w http.ResponseWriter, r *http.Request) {
	if e.source == nil {
		http.Error(w, "status unavailable", http.StatusServiceUnavailable)
		return
	}

	status := e.source.GetStatus()
	resp := statusResponse{Status: status}
	if strings.EqualFold(r.URL.Query().Get("readings"), "true") {
		resp.Readings = readings(status.Snapshot.Readings)
	}

	writeJSON(w, resp)
}

func (e *Exporter) handleHistory(w http.ResponseWriter, _ *http.Request) {
	if e.source == nil {
		http.Error(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}

	history := e.source.History()
	if history == nil {
		history = []sensors.Snapshot{}
	}
	writeJSON(w, history)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func readings(in []sensors.Reading) []readingResponse {
	out := make([]readingResponse, 0, len(in))
	for _, r := range in {
		out = append(out, readingResponse{
			Kind:   r.Kind.String(),
			Chip:   r.Chip,
			Label:  r.Label,
			Value:  r.Value,
			Unit:   r.Unit,
			Source: r.Source,
		})
	}

	return out
}
