package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/lguibr/clinic/clinic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of a run
type Metrics struct {
	// Pipeline metrics
	EventsTotal         *prometheus.CounterVec
	QueueDepth          *prometheus.GaugeVec
	ConsultationsActive prometheus.Gauge
	VisitDuration       prometheus.Histogram
	PatientsDeparted    prometheus.Counter

	// Live feed metrics
	SubscribersActive prometheus.Gauge

	// Arrival time per patient still in the clinic
	arrivals map[int]time.Time

	snapshot Snapshot

	mu sync.Mutex
}

// Snapshot holds current values for the JSON report
type Snapshot struct {
	Events              int64 `json:"events"`
	Departed            int64 `json:"departed"`
	ConsultationsActive int64 `json:"consultationsActive"`
	Subscribers         int64 `json:"subscribers"`
}

// NewMetrics registers the clinic metrics with reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		arrivals: make(map[int]time.Time),

		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_events_total",
				Help: "Total number of stage transitions by kind",
			},
			[]string{"kind"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clinic_nurse_queue_depth",
				Help: "Patients registered to a nurse and not yet escorted",
			},
			[]string{"nurse"},
		),
		ConsultationsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "clinic_consultations_active",
				Help: "Doctors currently holding a patient",
			},
		),
		VisitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clinic_visit_duration_seconds",
				Help:    "Time from arrival to departure",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		PatientsDeparted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "clinic_patients_departed_total",
				Help: "Patients that left a doctor's office",
			},
		),
		SubscribersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "clinic_feed_subscribers",
				Help: "Open live event feed connections",
			},
		),
	}
}

// Record implements clinic.Sink.
func (m *Metrics) Record(ev clinic.Event) {
	m.EventsTotal.WithLabelValues(ev.Kind.String()).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Events++

	switch ev.Kind {
	case clinic.Arrived:
		m.arrivals[ev.Patient] = ev.At
	case clinic.Registered:
		m.QueueDepth.WithLabelValues(strconv.Itoa(ev.Nurse)).Inc()
	case clinic.Escorted:
		m.QueueDepth.WithLabelValues(strconv.Itoa(ev.Nurse)).Dec()
	case clinic.SymptomsReported:
		m.ConsultationsActive.Inc()
		m.snapshot.ConsultationsActive++
	case clinic.Departed:
		m.PatientsDeparted.Inc()
		m.snapshot.Departed++
		if at, ok := m.arrivals[ev.Patient]; ok {
			m.VisitDuration.Observe(ev.At.Sub(at).Seconds())
			delete(m.arrivals, ev.Patient)
		}
	case clinic.DoctorFreed:
		m.ConsultationsActive.Dec()
		m.snapshot.ConsultationsActive--
	}
}

// IncSubscribers increments the live feed connection gauge
func (m *Metrics) IncSubscribers() {
	m.SubscribersActive.Inc()
	m.mu.Lock()
	m.snapshot.Subscribers++
	m.mu.Unlock()
}

// DecSubscribers decrements the live feed connection gauge
func (m *Metrics) DecSubscribers() {
	m.SubscribersActive.Dec()
	m.mu.Lock()
	m.snapshot.Subscribers--
	m.mu.Unlock()
}

// Snapshot returns the current values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}
