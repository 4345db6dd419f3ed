package controllers

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	outcomeActive  = "active"
	outcomeWaiting = "waiting"
	outcomeError   = "error"
	outcomeRemoved = "removed"
)

var reconcilesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "upf_operator_reconciles_total",
		Help: "Number of UPFConfig reconciliations by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	metrics.Registry.MustRegister(reconcilesTotal)
}
