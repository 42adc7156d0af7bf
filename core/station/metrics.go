package station

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	admissionsTotal        *prometheus.CounterVec
	cancellationsTotal     prometheus.Counter
	assignmentsTotal       *prometheus.CounterVec
	sessionsFinalizedTotal *prometheus.CounterVec
	faultReportsTotal      prometheus.Counter
	waitingOccupancy       prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Gauge) {
	adm := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_admissions_total",
			Help: "Number of requests admitted to the waiting area",
		},
		[]string{"tier"},
	)
	can := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "station_cancellations_total",
			Help: "Number of waiting requests cancelled",
		},
	)
	asn := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_assignments_total",
			Help: "Number of requests assigned to pile queues",
		},
		[]string{"strategy"},
	)
	fin := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "station_sessions_finalized_total",
			Help: "Number of charging sessions finalized, by cause",
		},
		[]string{"cause"},
	)
	flt := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "station_fault_reports_total",
			Help: "Number of pile faults reported",
		},
	)
	occ := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "station_waiting_occupancy",
			Help: "Current number of requests in the waiting area",
		},
	)
	return adm, can, asn, fin, flt, occ
}

func init() {
	admissionsTotal, cancellationsTotal, assignmentsTotal, sessionsFinalizedTotal, faultReportsTotal, waitingOccupancy = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers station metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(admissionsTotal, cancellationsTotal, assignmentsTotal, sessionsFinalizedTotal, faultReportsTotal, waitingOccupancy)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	admissionsTotal, cancellationsTotal, assignmentsTotal, sessionsFinalizedTotal, faultReportsTotal, waitingOccupancy = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
