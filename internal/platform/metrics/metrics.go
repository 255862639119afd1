package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa los collectors del servicio.
// Se registran contra un Registerer propio para que los tests no choquen con el default.
type Metrics struct {
	LifecycleOps      *prometheus.CounterVec
	LifecycleDuration *prometheus.HistogramVec
	UsersCreated      prometheus.Counter
	PhotosUploaded    prometheus.Counter
	RateLimited       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		LifecycleOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petclinic_lifecycle_operations_total",
			Help: "Pet archive/restore/purge operations by result",
		}, []string{"op", "result"}),
		LifecycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "petclinic_lifecycle_duration_seconds",
			Help:    "Latency of pet lifecycle transactions",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "petclinic_users_created_total",
			Help: "Users created through signup or admin",
		}),
		PhotosUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "petclinic_pet_photos_uploaded_total",
			Help: "Pet photos stored",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petclinic_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		}, []string{"scope"}),
	}
}

// ObserveLifecycle registra resultado y duración de una operación de ciclo de vida.
func (m *Metrics) ObserveLifecycle(op, result string, seconds float64) {
	if m == nil {
		return
	}
	m.LifecycleOps.WithLabelValues(op, result).Inc()
	m.LifecycleDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) IncUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

func (m *Metrics) IncPhotosUploaded() {
	if m == nil {
		return
	}
	m.PhotosUploaded.Inc()
}

func (m *Metrics) IncRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}
